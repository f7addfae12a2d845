package coordinator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/matryer/is"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mem"

	"github.com/preservica/dr-replicator/internal/coordinator"
	"github.com/preservica/dr-replicator/internal/fake"
	"github.com/preservica/dr-replicator/internal/localstore"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/notify"
	"github.com/preservica/dr-replicator/internal/ocfl"
	"github.com/preservica/dr-replicator/internal/queue"
	"github.com/preservica/dr-replicator/internal/resolver"
)

const (
	ioRefStr = "00000000-0000-0000-0000-0000000000a1"
	coRefStr = "00000000-0000-0000-0000-0000000000a2"
	bsRefStr = "00000000-0000-0000-0000-0000000000a3"
	fixity   = "d34db33f"
)

type harness struct {
	entities   *fake.EntityClient
	coord      *coordinator.Coordinator
	queueTopic *pubsub.Topic
	queueCli   *queue.Client
	eventsSub  *pubsub.Subscription
}

// newHarness wires one Coordinator against a real temp-dir OCFL store,
// an in-memory upstream.EntityClient fixture, and real mem:// pubsub
// topics for both the inbound queue and the outbound event channel.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	is := is.New(t)

	repoFS, err := ocfl.NewLocalFS(t.TempDir())
	is.NoErr(err)
	is.NoErr(localstore.Init(ctx, repoFS, ".", "test repo"))
	store, err := localstore.Open(ctx, repoFS, ".")
	is.NoErr(err)

	entities := fake.NewEntityClient()

	queueURL := fmt.Sprintf("mem://coord-queue-%s", t.Name())
	queueTopic, err := pubsub.OpenTopic(ctx, queueURL)
	is.NoErr(err)
	queueSub, err := pubsub.OpenSubscription(ctx, queueURL)
	is.NoErr(err)

	eventsURL := fmt.Sprintf("mem://coord-events-%s", t.Name())
	eventsTopic, err := pubsub.OpenTopic(ctx, eventsURL)
	is.NoErr(err)
	eventsSub, err := pubsub.OpenSubscription(ctx, eventsURL)
	is.NoErr(err)

	t.Cleanup(func() {
		queueTopic.Shutdown(ctx)
		queueSub.Shutdown(ctx)
		eventsTopic.Shutdown(ctx)
		eventsSub.Shutdown(ctx)
	})

	coord := &coordinator.Coordinator{
		Resolver:    resolver.New(entities, nil),
		Store:       store,
		Entities:    entities,
		Notifier:    notify.New(eventsTopic),
		WorkDir:     t.TempDir(),
		Concurrency: 4,
	}

	return &harness{entities: entities, coord: coord, queueTopic: queueTopic, queueCli: queue.New(queueSub), eventsSub: eventsSub}
}

func (h *harness) send(t *testing.T, msgType, ref string) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"type": msgType, "ref": ref})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.queueTopic.Send(context.Background(), &pubsub.Message{Body: body}); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) sendIO(t *testing.T, ref string)  { h.send(t, "InformationObjectMessage", ref) }
func (h *harness) sendCO(t *testing.T, ref string)  { h.send(t, "ContentObjectMessage", ref) }

// receiveAndProcess pulls exactly n carriers (the harness's tests never
// send more than they immediately consume) and runs one batch.
func (h *harness) receiveAndProcess(t *testing.T, n int) (coordinator.BatchReport, error) {
	t.Helper()
	ctx := context.Background()
	carriers, err := h.queueCli.Receive(ctx, n)
	if err != nil {
		t.Fatal(err)
	}
	return h.coord.Process(ctx, carriers)
}

// drainEvents reads exactly n events, failing the test if fewer arrive
// within the deadline.
func (h *harness) drainEvents(t *testing.T, n int) []notify.Event {
	t.Helper()
	events := make([]notify.Event, 0, n)
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		msg, err := h.eventsSub.Receive(ctx)
		cancel()
		if err != nil {
			t.Fatalf("expected %d events, got %d: %v", n, i, err)
		}
		var evt notify.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			t.Fatal(err)
		}
		msg.Ack()
		events = append(events, evt)
	}
	return events
}

// assertNoEvent confirms no event arrives within a short deadline.
func (h *harness) assertNoEvent(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := h.eventsSub.Receive(ctx)
	if err == nil {
		t.Fatal("expected no event, got one")
	}
}

func mustRef(t *testing.T, s string) model.EntityRef {
	t.Helper()
	ref, err := model.ParseEntityRef(s)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func seedFreshIO(t *testing.T, entities *fake.EntityClient, extraIdentifier bool) {
	t.Helper()
	ioRef := mustRef(t, ioRefStr)
	ids := []model.Identifier{{Type: model.SourceIDType, Value: "SRC-1"}}
	if extraIdentifier {
		ids = append(ids, model.Identifier{Type: "Other", Value: "extra-node"})
	}
	entities.Entities[ioRef] = &model.Entity{Ref: ioRef, Kind: model.InformationObject}
	entities.Metadata[ioRef] = &model.EntityMetadata{
		IO: model.NewIoMetadata(model.EntityNode{XML: "<Entity/>"}, nil, ids, nil, nil, nil),
	}
}

func seedFreshCO(t *testing.T, entities *fake.EntityClient) {
	t.Helper()
	ioRef := mustRef(t, ioRefStr)
	coRef := mustRef(t, coRefStr)

	entities.Entities[coRef] = &model.Entity{Ref: coRef, Kind: model.ContentObject, Parent: &ioRef}
	entities.Bitstreams[coRef] = []model.BitstreamInfo{
		{
			Name:              bsRefStr + ".tif",
			Fixity:            fixity,
			URL:               "https://example/bitstreams/" + bsRefStr,
			GenerationType:    model.Original,
			GenerationVersion: 1,
			ParentRef:         ioRef,
		},
	}
	entities.Metadata[coRef] = &model.EntityMetadata{
		CO: model.NewCoMetadata(model.EntityNode{XML: "<Entity/>"}, nil, nil, nil, nil, nil, nil),
	}
	entities.RepURLs[ioRef] = []string{"https://example/io/" + ioRefStr + "/representations/preservation/1"}
	entities.RepMembers[fake.RepKey(ioRef, model.Preservation, 1)] = []model.EntityRef{coRef}
	entities.Payloads["https://example/bitstreams/"+bsRefStr] = []byte("bitstream payload")
}

// TestCoordinatorScenarios runs a full batch lifecycle as ordered
// subtests against one shared store, since several subtests ("replay",
// "metadata change") are explicitly re-submissions of the state a
// prior subtest left behind.
func TestCoordinatorScenarios(t *testing.T) {
	h := newHarness(t)
	ioRef := mustRef(t, ioRefStr)

	t.Run("fresh IO", func(t *testing.T) {
		is := is.New(t)
		seedFreshIO(t, h.entities, false)

		h.sendIO(t, ioRefStr)
		report, err := h.receiveAndProcess(t, 1)
		is.NoErr(err)
		is.Equal(report.Missing, 1)
		is.Equal(report.Committed, 1)
		is.Equal(report.Published, 1)
		is.Equal(report.Acked, 1)

		events := h.drainEvents(t, 1)
		is.Equal(events[0].EntityType, "CO") // constant regardless of object kind
		is.Equal(events[0].IORef, ioRef.String())
		is.Equal(events[0].ObjectType, string(model.ObjectTypeMetadata))
		is.Equal(events[0].Status, string(model.StatusCreated))
	})

	t.Run("fresh CO preservation rep 1", func(t *testing.T) {
		is := is.New(t)
		seedFreshCO(t, h.entities)

		h.sendCO(t, coRefStr)
		report, err := h.receiveAndProcess(t, 1)
		is.NoErr(err)
		is.Equal(report.Missing, 2) // CO_Metadata.xml + the one bitstream
		is.Equal(report.Committed, 2)
		is.Equal(report.Published, 2)
		is.Equal(report.Acked, 1)

		events := h.drainEvents(t, 2)
		metaEvt, fileEvt := events[0], events[1]
		is.Equal(metaEvt.ObjectType, string(model.ObjectTypeMetadata))
		is.Equal(metaEvt.Status, string(model.StatusCreated))
		is.Equal(fileEvt.ObjectType, string(model.ObjectTypeBitstream))
		is.Equal(fileEvt.Status, string(model.StatusCreated))
		is.Equal(fileEvt.BitstreamName, bsRefStr+".tif")
	})

	t.Run("replay leaves head unchanged", func(t *testing.T) {
		is := is.New(t)
		callsBefore := h.entities.CallCounts["bitstreamInfo:"+coRefStr]

		h.sendCO(t, coRefStr)
		report, err := h.receiveAndProcess(t, 1)
		is.NoErr(err)
		is.Equal(report.Missing, 0)
		is.Equal(report.Changed, 0)
		is.Equal(report.Unchanged, 2)
		is.Equal(report.Committed, 0)
		is.Equal(report.Published, 0)
		is.Equal(report.Acked, 1)
		h.assertNoEvent(t)

		is.Equal(h.entities.CallCounts["bitstreamInfo:"+coRefStr], callsBefore+1) // upstream still consulted once
	})

	t.Run("metadata change produces a new version", func(t *testing.T) {
		is := is.New(t)
		seedFreshIO(t, h.entities, true) // upstream now reports an extra identifier node

		h.sendIO(t, ioRefStr)
		report, err := h.receiveAndProcess(t, 1)
		is.NoErr(err)
		is.Equal(report.Missing, 0)
		is.Equal(report.Changed, 1)
		is.Equal(report.Committed, 1)
		is.Equal(report.Published, 1)
		is.Equal(report.Acked, 1)

		events := h.drainEvents(t, 1)
		is.Equal(events[0].ObjectType, string(model.ObjectTypeMetadata))
		is.Equal(events[0].Status, string(model.StatusUpdated))
	})

	t.Run("conflicting representation membership aborts the batch", func(t *testing.T) {
		is := is.New(t)
		entities := h.entities
		entities.RepURLs[ioRef] = []string{
			"https://example/io/" + ioRefStr + "/representations/preservation/1",
			"https://example/io/" + ioRefStr + "/representations/access/2",
		}
		entities.RepMembers[fake.RepKey(ioRef, model.Access, 2)] = []model.EntityRef{mustRef(t, coRefStr)}

		h.sendCO(t, coRefStr)
		report, err := h.receiveAndProcess(t, 1)
		is.True(err != nil)
		is.Equal(report.Committed, 0)
		is.Equal(report.Acked, 0) // no carrier deleted; redelivery is the retry path
		h.assertNoEvent(t)

		// restore single-group membership for the remaining scenarios
		entities.RepURLs[ioRef] = []string{"https://example/io/" + ioRefStr + "/representations/preservation/1"}
		delete(entities.RepMembers, fake.RepKey(ioRef, model.Access, 2))
	})

	t.Run("duplicated messages resolve once", func(t *testing.T) {
		is := is.New(t)
		callsBefore := h.entities.CallCounts["bitstreamInfo:"+coRefStr]

		h.sendCO(t, coRefStr)
		h.sendCO(t, coRefStr)
		h.sendCO(t, coRefStr)
		report, err := h.receiveAndProcess(t, 3)
		is.NoErr(err)
		is.Equal(report.Received, 3)
		is.Equal(report.Unchanged, 2) // already committed in the earlier subtest, dedupe collapses to one unit
		is.Equal(report.Committed, 0)
		is.Equal(report.Published, 0)
		is.Equal(report.Acked, 3) // every carrier belonging to the deduped unit is acked
		h.assertNoEvent(t)

		is.Equal(h.entities.CallCounts["bitstreamInfo:"+coRefStr], callsBefore+1) // one resolve, not three
	})
}

// TestCoordinatorAbortLeavesStoreUntouched covers the no-partial-commit
// invariant directly: an invariant violation mid-batch must not mutate
// the store, regardless of how many other candidates in the same batch
// would otherwise have succeeded.
func TestCoordinatorAbortLeavesStoreUntouched(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	ioRef := mustRef(t, ioRefStr)
	coRef := mustRef(t, coRefStr)
	seedFreshIO(t, h.entities, false)
	h.entities.Entities[coRef] = &model.Entity{Ref: coRef, Kind: model.ContentObject, Parent: &ioRef}
	h.entities.Bitstreams[coRef] = nil // triggers the resolver's "no bitstreams" InvariantError

	h.sendIO(t, ioRefStr)
	h.sendCO(t, coRefStr)
	report, err := h.receiveAndProcess(t, 2)
	is.True(err != nil)
	is.Equal(report.Committed, 0)
	is.Equal(report.Acked, 0)
	h.assertNoEvent(t)
}
