// Package coordinator implements the Batch Coordinator: the top-level
// orchestration dedupe → resolve → classify → stage → commit → notify
// → acknowledge. Step granularity is strictly sequential; independent
// per-object work inside resolve and stage fans out with
// golang.org/x/sync/errgroup, cancelling the rest of the step on first
// error.
package coordinator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/localstore"
	"github.com/preservica/dr-replicator/internal/logging"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/notify"
	"github.com/preservica/dr-replicator/internal/queue"
	"github.com/preservica/dr-replicator/internal/resolver"
	"github.com/preservica/dr-replicator/internal/transfer"
	"github.com/preservica/dr-replicator/internal/upstream"
)

// BatchReport summarizes one batch's outcome for operator visibility.
// It doesn't change reconciliation semantics; nothing downstream reads
// it back.
type BatchReport struct {
	Received  int
	Decoded   int
	Resolved  int
	Missing   int
	Changed   int
	Unchanged int
	Staged    int
	Committed int
	Published int
	Acked     int
}

// Coordinator wires every stage of the pipeline together.
type Coordinator struct {
	Resolver  *resolver.Resolver
	Store     *localstore.Store
	Entities  upstream.EntityClient
	Notifier  *notify.Notifier
	WorkDir   string
	Concurrency int
}

// Process runs one batch to completion. A non-nil error means the
// batch aborts before any carrier is acked, relying on queue
// redelivery for retry rather than any per-object retry logic.
func (c *Coordinator) Process(ctx context.Context, carriers []*queue.Carrier) (BatchReport, error) {
	report := BatchReport{Received: len(carriers)}

	// 1. drop undecodable carriers (left for redelivery).
	decoded := make([]*queue.Carrier, 0, len(carriers))
	for _, carrier := range carriers {
		if carrier.Decoded != nil {
			decoded = append(decoded, carrier)
		}
	}
	report.Decoded = len(decoded)
	if len(decoded) == 0 {
		return report, nil
	}

	// 2. dedupe by canonical text form.
	seen := map[string]bool{}
	type unit struct {
		carriers []*queue.Carrier
		message  queue.Message
	}
	units := []unit{}
	byKey := map[string]int{}
	for _, carrier := range decoded {
		key := carrier.Decoded.CanonicalText()
		if idx, ok := byKey[key]; ok {
			units[idx].carriers = append(units[idx].carriers, carrier)
			continue
		}
		byKey[key] = len(units)
		units = append(units, unit{carriers: []*queue.Carrier{carrier}, message: carrier.Decoded})
		seen[key] = true
	}

	// 3. resolve each unique message into DR Objects, in parallel.
	resolved := make([][]model.DRObject, len(units))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency(c.Concurrency))
	for i, u := range units {
		i, u := i, u
		grp.Go(func() error {
			objs, err := resolveMessage(gctx, c.Resolver, u.message)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", u.message.CanonicalText(), err)
			}
			resolved[i] = objs
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return report, err
	}

	// 4. flatten into the candidate set, enforcing the batch-unique
	// destination-path invariant.
	candidates := make([]model.DRObject, 0)
	byDest := map[string]model.DRObject{}
	for _, objs := range resolved {
		for _, obj := range objs {
			if prior, exists := byDest[obj.ObjectDestinationPath()]; exists && !sameContent(prior, obj) {
				return report, &errs.InvariantError{Message: fmt.Sprintf("conflicting DR objects at destination %q", obj.ObjectDestinationPath())}
			}
			byDest[obj.ObjectDestinationPath()] = obj
			candidates = append(candidates, obj)
		}
	}
	report.Resolved = len(candidates)

	// 5. classify against the local store.
	classified, err := c.Store.Classify(ctx, candidates)
	if err != nil {
		return report, err
	}
	var missing, changed []localstore.Classified
	for _, cl := range classified {
		switch cl.Classification {
		case localstore.Missing:
			missing = append(missing, cl)
			report.Missing++
		case localstore.Changed:
			changed = append(changed, cl)
			report.Changed++
		default:
			report.Unchanged++
		}
	}
	toStage := append(append([]localstore.Classified{}, missing...), changed...)
	if len(toStage) == 0 {
		// nothing to stage, commit, or publish: the batch is a no-op
		// and every carrier of a resolved message is acked.
		for _, u := range units {
			for _, carrier := range u.carriers {
				carrier.Delete()
				report.Acked++
			}
		}
		return report, nil
	}

	// 6. stage missing and changed objects, in parallel.
	staging, err := transfer.New(c.WorkDir)
	if err != nil {
		return report, err
	}
	defer staging.Close()

	writes := make([]model.StagedWrite, len(toStage))
	sgrp, sctx := errgroup.WithContext(ctx)
	sgrp.SetLimit(concurrency(c.Concurrency))
	for i, cl := range toStage {
		i, cl := i, cl
		sgrp.Go(func() error {
			w, err := stageOne(sctx, staging, c.Entities, cl.Object)
			if err != nil {
				return err
			}
			writes[i] = w
			return nil
		})
	}
	if err := sgrp.Wait(); err != nil {
		return report, err
	}
	report.Staged = len(writes)

	// 7. commit: missing objects' writes, then changed objects'
	// writes, grouped by ioRef, one version per affected object.
	byIORef := map[model.EntityRef][]model.StagedWrite{}
	order := []model.EntityRef{}
	for i, cl := range toStage {
		ref := cl.Object.ObjectIORef()
		if _, ok := byIORef[ref]; !ok {
			order = append(order, ref)
		}
		byIORef[ref] = append(byIORef[ref], writes[i])
	}
	for _, ref := range order {
		if err := c.Store.Commit(ctx, ref, staging.FS(), byIORef[ref], "dr-replicator batch commit"); err != nil {
			return report, err
		}
		report.Committed += len(byIORef[ref])
	}

	// 8. publish one event per staged object.
	committed := make([]notify.Committed, 0, len(toStage))
	for _, cl := range toStage {
		status := model.StatusCreated
		if cl.Classification == localstore.Changed {
			status = model.StatusUpdated
		}
		bitstreamName := ""
		identifier := ""
		switch o := cl.Object.(type) {
		case *model.FileObject:
			bitstreamName = o.Filename
			identifier = o.Identifier.String()
		case *model.MetadataObject:
			identifier = o.Identifier
		}
		committed = append(committed, notify.Committed{
			Object:        cl.Object,
			Status:        status,
			Identifier:    identifier,
			BitstreamName: bitstreamName,
		})
	}
	if err := c.Notifier.Publish(ctx, committed); err != nil {
		return report, err
	}
	report.Published = len(committed)

	// 9. ack every carrier belonging to a resolved message.
	for _, u := range units {
		for _, carrier := range u.carriers {
			carrier.Delete()
			report.Acked++
		}
	}
	logging.DefaultLogger().InfoContext(ctx, "batch processed",
		"received", report.Received, "resolved", report.Resolved,
		"missing", report.Missing, "changed", report.Changed,
		"unchanged", report.Unchanged, "committed", report.Committed,
		"published", report.Published, "acked", report.Acked)
	return report, nil
}

func resolveMessage(ctx context.Context, r *resolver.Resolver, msg queue.Message) ([]model.DRObject, error) {
	switch m := msg.(type) {
	case queue.InformationObjectMessage:
		return r.ResolveIO(ctx, m.Ref)
	case queue.ContentObjectMessage:
		return r.ResolveCO(ctx, m.Ref)
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
}

func stageOne(ctx context.Context, staging *transfer.Staging, entities upstream.EntityClient, obj model.DRObject) (model.StagedWrite, error) {
	switch o := obj.(type) {
	case *model.FileObject:
		return staging.Bitstream(ctx, entities, o)
	case *model.MetadataObject:
		return staging.Metadata(ctx, o)
	default:
		return model.StagedWrite{}, fmt.Errorf("unsupported DR object type %T", obj)
	}
}

func sameContent(a, b model.DRObject) bool {
	switch av := a.(type) {
	case *model.FileObject:
		bv, ok := b.(*model.FileObject)
		return ok && av.Fixity == bv.Fixity
	case *model.MetadataObject:
		bv, ok := b.(*model.MetadataObject)
		return ok && av.Digest == bv.Digest
	default:
		return false
	}
}

func concurrency(n int) int {
	if n < 1 {
		return 4
	}
	return n
}
