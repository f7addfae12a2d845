package ocfl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/preservica/dr-replicator/internal/logging"
)

// CommitError wraps an error encountered while committing an object
// version. Dirty indicates the object root may have been left
// incomplete as a result of the error.
type CommitError struct {
	Err   error
	Dirty bool
}

func (c *CommitError) Error() string { return c.Err.Error() }
func (c *CommitError) Unwrap() error { return c.Err }

// Commit describes a request to write a new version of an object.
type Commit struct {
	ID      string
	Stage   *Stage
	Message string
	User    User
	Created time.Time // time.Now() used if zero

	ContentDirectory string // "content" if empty
	Concurrency      int    // content-transfer fan-out, 1 if <1

	Logger *slog.Logger
}

type commitPlan struct {
	fs            WriteFS
	path          string
	newInventory  *Inventory
	prevInventory *Inventory
	newContent    DigestMap
	contentSource ContentSource
	concurrency   int
}

// run performs the file-system side effects of a commit: object
// declaration, content transfer, and inventory writes, in that order so
// that a crash mid-commit leaves the previous version fully readable.
func (p *commitPlan) run(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.DisabledLogger()
	}
	if p.prevInventory == nil {
		decl := Namaste{Type: NamasteTypeObject, Version: Spec1_1}
		logger.DebugContext(ctx, "writing new OCFL object declaration", "name", decl.Name())
		if err := WriteDeclaration(ctx, p.fs, p.path, decl); err != nil {
			return &CommitError{Err: err, Dirty: true}
		}
	}
	if len(p.newContent) > 0 {
		logger.DebugContext(ctx, "copying new object files", "count", len(p.newContent))
		if err := copyContent(ctx, p.fs, p.path, p.newContent, p.contentSource, p.concurrency); err != nil {
			return &CommitError{Err: fmt.Errorf("transferring new object contents: %w", err), Dirty: true}
		}
	}
	logger.DebugContext(ctx, "writing inventories for new object version")
	versionDir := path.Join(p.path, p.newInventory.Head.String())
	if err := WriteInventory(ctx, p.fs, p.newInventory, p.path, versionDir); err != nil {
		return &CommitError{Err: fmt.Errorf("writing new inventories: %w", err), Dirty: true}
	}
	return nil
}

// newContentManifest returns the subset of inv.Manifest that belongs to
// inv.Head's content directory: the files genuinely new in this version.
func newContentManifest(inv *Inventory) (DigestMap, error) {
	pm := PathMap{}
	for p, d := range mustPaths(inv.Manifest) {
		if !strings.HasPrefix(p, inv.Head.String()+"/") {
			continue
		}
		pm[p] = d
	}
	dm := pm.DigestMap()
	if err := dm.Valid(); err != nil {
		return nil, err
	}
	return dm, nil
}

func mustPaths(dm DigestMap) map[string]string {
	p, err := dm.Paths()
	if err != nil {
		return nil
	}
	return p
}

func copyContent(ctx context.Context, dst WriteFS, dstRoot string, manifest DigestMap, src ContentSource, concurrency int) error {
	if src == nil {
		return errors.New("missing content source")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)
	for dig, dstNames := range manifest {
		dig := dig
		srcFS, srcPath := src.GetContent(dig)
		if srcFS == nil {
			return fmt.Errorf("content source doesn't provide digest %q", dig)
		}
		for _, dstName := range dstNames {
			dstPath := path.Join(dstRoot, dstName)
			grp.Go(func() error {
				_, err := Copy(ctx, dst, dstPath, srcFS, srcPath)
				return err
			})
		}
	}
	return grp.Wait()
}
