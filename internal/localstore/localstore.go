// Package localstore is the Local Store / OCFL adapter: it binds to a
// filesystem OCFL repository using HashedNTupleLayout and SHA-256
// digests, classifies candidate DR Objects against the current HEAD
// version, and commits staged writes as new object versions,
// serialized per-ioRef so two goroutines never open concurrent
// versions of the same object.
package localstore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/logging"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/ocfl"
)

// Classification is the result bucket for one candidate DR Object.
type Classification int

const (
	Missing Classification = iota
	Changed
	Unchanged
)

func (c Classification) String() string {
	switch c {
	case Missing:
		return "missing"
	case Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

// Classified pairs a candidate DR Object with its classification.
type Classified struct {
	Object         model.DRObject
	Classification Classification
	ExpectedDigest string
}

// Store wraps an ocfl.Store with the batch-oriented classify/commit
// operations the Coordinator needs, and a per-ioRef commit mutex so
// concurrent goroutines serialize writes to the same object.
type Store struct {
	engine *ocfl.Store

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open binds to an existing OCFL repository rooted at dir.
func Open(ctx context.Context, fsys ocfl.WriteFS, dir string) (*Store, error) {
	engine, err := ocfl.GetStore(ctx, fsys, dir)
	if err != nil {
		return nil, &errs.StorageError{IORef: dir, Err: err}
	}
	return &Store{engine: engine, locks: map[string]*sync.Mutex{}}, nil
}

// Init creates a fresh OCFL repository rooted at dir.
func Init(ctx context.Context, fsys ocfl.WriteFS, dir string, description string) error {
	return ocfl.InitStore(ctx, fsys, dir, &ocfl.InitStoreConf{Description: description})
}

// Healthy checks the bound repository is present and reachable.
func (s *Store) Healthy(ctx context.Context) error {
	return s.engine.Healthy(ctx)
}

// Classify groups candidates by ioRef and compares each against the
// object's HEAD version state. Unchanged candidates are included
// (classification Unchanged) so callers can verify idempotence; only
// Missing and Changed need staging.
func (s *Store) Classify(ctx context.Context, candidates []model.DRObject) ([]Classified, error) {
	byIORef := map[model.EntityRef][]model.DRObject{}
	order := []model.EntityRef{}
	for _, obj := range candidates {
		ref := obj.ObjectIORef()
		if _, seen := byIORef[ref]; !seen {
			order = append(order, ref)
		}
		byIORef[ref] = append(byIORef[ref], obj)
	}

	results := make([]Classified, 0, len(candidates))
	grp, ctx := errgroup.WithContext(ctx)
	resultsByRef := make(map[model.EntityRef][]Classified, len(order))
	var mu sync.Mutex
	for _, ref := range order {
		ref := ref
		objs := byIORef[ref]
		grp.Go(func() error {
			classified, err := s.classifyGroup(ctx, ref, objs)
			if err != nil {
				return err
			}
			mu.Lock()
			resultsByRef[ref] = classified
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	for _, ref := range order {
		results = append(results, resultsByRef[ref]...)
	}
	return results, nil
}

func (s *Store) classifyGroup(ctx context.Context, ioRef model.EntityRef, objs []model.DRObject) ([]Classified, error) {
	inv, err := s.engine.GetInventory(ctx, ioRef.String())
	if err != nil {
		return nil, &errs.StorageError{IORef: ioRef.String(), Err: err}
	}
	out := make([]Classified, 0, len(objs))
	if inv == nil {
		for _, obj := range objs {
			out = append(out, Classified{Object: obj, Classification: Missing, ExpectedDigest: expectedDigest(obj)})
		}
		return out, nil
	}
	head := inv.HeadVersion()
	paths, err := head.State.Paths()
	if err != nil {
		return nil, &errs.StorageError{IORef: ioRef.String(), Err: err}
	}
	for _, obj := range objs {
		expected := expectedDigest(obj)
		actual, present := paths[obj.ObjectDestinationPath()]
		switch {
		case !present:
			out = append(out, Classified{Object: obj, Classification: Missing, ExpectedDigest: expected})
		case actual == expected:
			out = append(out, Classified{Object: obj, Classification: Unchanged, ExpectedDigest: expected})
		default:
			out = append(out, Classified{Object: obj, Classification: Changed, ExpectedDigest: expected})
		}
	}
	return out, nil
}

func expectedDigest(obj model.DRObject) string {
	switch o := obj.(type) {
	case *model.FileObject:
		return o.Fixity
	case *model.MetadataObject:
		return o.Digest
	default:
		return ""
	}
}

// Commit writes one new OCFL version of ioRef containing every staged
// write plus every HEAD file the writes don't replace. Concurrent commits to distinct ioRefs may run in parallel;
// commits to the same ioRef are serialized.
func (s *Store) Commit(ctx context.Context, ioRef model.EntityRef, stagingFS ocfl.FS, writes []model.StagedWrite, message string) error {
	if len(writes) == 0 {
		return nil
	}
	lock := s.lockFor(ioRef.String())
	lock.Lock()
	defer lock.Unlock()

	state := ocfl.DigestMap{}
	locs := map[string]string{}
	for _, w := range writes {
		if err := state.Add(w.ID, w.DestinationPath); err != nil {
			return &errs.StorageError{IORef: ioRef.String(), Err: fmt.Errorf("duplicate destination path %q in batch", w.DestinationPath)}
		}
		locs[w.ID] = w.StagingPath
	}
	// carry every HEAD file the batch doesn't overwrite into the new version
	prev, err := s.engine.GetInventory(ctx, ioRef.String())
	if err != nil {
		return &errs.StorageError{IORef: ioRef.String(), Err: err}
	}
	if prev != nil {
		prevPaths, err := prev.HeadVersion().State.Paths()
		if err != nil {
			return &errs.StorageError{IORef: ioRef.String(), Err: err}
		}
		for p, d := range prevPaths {
			if state.GetDigest(p) == "" {
				state[d] = append(state[d], p)
			}
		}
	}
	stage, err := ocfl.NewStage(state, ocfl.NewMapContentSource(stagingFS, locs))
	if err != nil {
		return &errs.StorageError{IORef: ioRef.String(), Err: err}
	}
	commit := &ocfl.Commit{
		ID:      ioRef.String(),
		Stage:   stage,
		Message: message,
		User:    ocfl.User{Name: "dr-replicator"},
		Logger:  logging.DefaultLogger(),
	}
	if err := s.engine.Commit(ctx, commit); err != nil {
		return &errs.StorageError{IORef: ioRef.String(), Err: err}
	}
	return nil
}

func (s *Store) lockFor(ioRef string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ioRef]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ioRef] = l
	}
	return l
}
