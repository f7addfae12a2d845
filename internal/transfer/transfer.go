// Package transfer implements the Staging Transfer stage: streams
// bitstream payloads and serializes composed metadata into a per-batch
// temporary staging area, producing StagedWrite tuples for the commit
// stage. A failed transfer aborts the batch; no carrier is acked.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/ocfl"
	"github.com/preservica/dr-replicator/internal/upstream"
)

// Staging is a per-batch temporary directory and the local FS rooted
// there, satisfying ocfl.FS so the local store can read staged content
// directly during commit.
type Staging struct {
	dir  string
	fsys *ocfl.LocalFS
}

// New creates a fresh temporary directory under workDir for one batch.
func New(workDir string) (*Staging, error) {
	dir, err := os.MkdirTemp(workDir, "batch-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	fsys, err := ocfl.NewLocalFS(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("opening staging directory: %w", err)
	}
	return &Staging{dir: dir, fsys: fsys}, nil
}

// FS returns the staging area as an ocfl.FS, for use as a commit
// ContentSource.
func (s *Staging) FS() *ocfl.LocalFS { return s.fsys }

// Close removes the staging directory and everything written to it.
// Safe to call after commit completes, or on abort.
func (s *Staging) Close() error {
	return os.RemoveAll(s.dir)
}

// Bitstream streams obj's payload from its upstream URL into a fresh
// staging file and returns the resulting StagedWrite.
func (s *Staging) Bitstream(ctx context.Context, entities upstream.EntityClient, obj *model.FileObject) (model.StagedWrite, error) {
	name := stagingName(obj.Identifier.String())
	f, err := os.CreateTemp(s.dir, name)
	if err != nil {
		return model.StagedWrite{}, &errs.StorageError{IORef: obj.IORef.String(), Err: err}
	}
	defer f.Close()
	if err := entities.StreamBitstream(ctx, obj.URL, f); err != nil {
		os.Remove(f.Name())
		return model.StagedWrite{}, &errs.UpstreamError{Op: "streamBitstream", Err: err}
	}
	rel, err := filepath.Rel(s.dir, f.Name())
	if err != nil {
		return model.StagedWrite{}, &errs.StorageError{IORef: obj.IORef.String(), Err: err}
	}
	return model.StagedWrite{ID: obj.Fixity, StagingPath: filepath.ToSlash(rel), DestinationPath: obj.DestinationPath}, nil
}

// Metadata writes obj's already-composed XML bytes to a fresh staging
// file and returns the resulting StagedWrite.
func (s *Staging) Metadata(ctx context.Context, obj *model.MetadataObject) (model.StagedWrite, error) {
	if err := ctx.Err(); err != nil {
		return model.StagedWrite{}, err
	}
	name := stagingName(obj.Identifier)
	f, err := os.CreateTemp(s.dir, name)
	if err != nil {
		return model.StagedWrite{}, &errs.StorageError{IORef: obj.IORef.String(), Err: err}
	}
	defer f.Close()
	if _, err := f.Write(obj.XMLTree); err != nil {
		os.Remove(f.Name())
		return model.StagedWrite{}, &errs.StorageError{IORef: obj.IORef.String(), Err: err}
	}
	rel, err := filepath.Rel(s.dir, f.Name())
	if err != nil {
		return model.StagedWrite{}, &errs.StorageError{IORef: obj.IORef.String(), Err: err}
	}
	return model.StagedWrite{ID: obj.Digest, StagingPath: filepath.ToSlash(rel), DestinationPath: obj.DestinationPath}, nil
}

func stagingName(identifier string) string {
	return identifier + "-*.tmp"
}
