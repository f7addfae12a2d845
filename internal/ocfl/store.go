package ocfl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"
)

const storageRootConfigFile = "ocfl_layout.json"

// Store is a local OCFL storage root using a HashedNTupleLayout to map
// object IDs to paths. It is the engine `internal/localstore` wraps;
// callers outside this package never see raw paths.
type Store struct {
	fsys        WriteFS
	root        string
	description string
	layout      Layout
}

// InitStoreConf configures a new storage root.
type InitStoreConf struct {
	Description string
	Layout      Layout // NewHashedNTupleLayout() used if nil
}

// InitStore creates a new, empty OCFL storage root at fsys/root.
func InitStore(ctx context.Context, fsys WriteFS, root string, conf *InitStoreConf) error {
	if conf == nil {
		conf = &InitStoreConf{}
	}
	layout := conf.Layout
	if layout == nil {
		layout = NewHashedNTupleLayout()
	}
	entries, err := fsys.ReadDir(ctx, root)
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("reading storage root directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory %q is not empty", root)
	}
	decl := Namaste{Type: NamasteTypeRoot, Version: Spec1_1}
	if err := WriteDeclaration(ctx, fsys, root, decl); err != nil {
		return err
	}
	layoutJSON, err := json.MarshalIndent(map[string]any{
		"extension":   layout.Name(),
		"description": conf.Description,
	}, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fsys.Write(ctx, path.Join(root, "ocfl_layout.json"), bytes.NewReader(layoutJSON)); err != nil {
		return fmt.Errorf("writing storage root layout declaration: %w", err)
	}
	extDir := path.Join(root, "extensions", layout.Name())
	layoutConfig, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fsys.Write(ctx, path.Join(extDir, "config.json"), bytes.NewReader(layoutConfig)); err != nil {
		return fmt.Errorf("writing layout extension config: %w", err)
	}
	return nil
}

// GetStore opens an existing OCFL storage root, validating its NAMASTE
// declaration and reading its layout extension config.
func GetStore(ctx context.Context, fsys WriteFS, root string) (*Store, error) {
	entries, err := fsys.ReadDir(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("reading storage root: %w", err)
	}
	decl, err := FindNamaste(entries)
	if err != nil {
		return nil, err
	}
	if !decl.IsRoot() {
		return nil, fmt.Errorf("%q is not an OCFL storage root declaration", decl.Name())
	}
	store := &Store{fsys: fsys, root: root, layout: NewHashedNTupleLayout()}
	raw, err := ReadAll(ctx, fsys, path.Join(root, storageRootConfigFile))
	if err == nil {
		var meta struct {
			Extension   string `json:"extension"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(raw, &meta); err == nil {
			store.description = meta.Description
			if meta.Extension == ExtFlatDirectLayout {
				store.layout = FlatDirectLayout{}
			}
		}
	}
	return store, nil
}

// Healthy checks that the storage root is present, declared, and its
// filesystem is reachable. It's the startup precondition every
// long-running worker in the corpus performs before its main loop.
func (s *Store) Healthy(ctx context.Context) error {
	entries, err := s.fsys.ReadDir(ctx, s.root)
	if err != nil {
		return fmt.Errorf("storage root %q unreachable: %w", s.root, err)
	}
	if _, err := FindNamaste(entries); err != nil {
		return fmt.Errorf("storage root %q: %w", s.root, err)
	}
	return nil
}

// ResolveID maps an object ID to its path under the storage root.
func (s *Store) ResolveID(id string) (string, error) {
	rel, err := s.layout.Resolve(id)
	if err != nil {
		return "", fmt.Errorf("resolving object path for %q: %w", id, err)
	}
	return path.Join(s.root, rel), nil
}

// ObjectExists reports whether an object with the given ID has an
// object root in the store already.
func (s *Store) ObjectExists(ctx context.Context, id string) (bool, error) {
	objRoot, err := s.ResolveID(id)
	if err != nil {
		return false, err
	}
	entries, err := s.fsys.ReadDir(ctx, objRoot)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	_, err = FindNamaste(entries)
	return err == nil, nil
}

// GetInventory reads and parses the HEAD inventory of an existing
// object, or returns nil if the object does not yet exist.
func (s *Store) GetInventory(ctx context.Context, id string) (*Inventory, error) {
	exists, err := s.ObjectExists(ctx, id)
	if err != nil || !exists {
		return nil, err
	}
	objRoot, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	raw, err := ReadAll(ctx, s.fsys, path.Join(objRoot, "inventory.json"))
	if err != nil {
		return nil, fmt.Errorf("reading inventory for %q: %w", id, err)
	}
	var inv Inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decoding inventory for %q: %w", id, err)
	}
	return &inv, nil
}

// Commit writes a new object version (or creates the object, if it
// doesn't exist yet) as described by c.
func (s *Store) Commit(ctx context.Context, c *Commit) error {
	if c.Stage == nil {
		return &CommitError{Err: fmt.Errorf("commit for %q: missing stage", c.ID)}
	}
	objRoot, err := s.ResolveID(c.ID)
	if err != nil {
		return &CommitError{Err: err}
	}
	created := c.Created
	if created.IsZero() {
		created = time.Now()
	}
	contentDir := c.ContentDirectory
	if contentDir == "" {
		contentDir = "content"
	}
	prev, err := s.GetInventory(ctx, c.ID)
	if err != nil {
		return &CommitError{Err: err}
	}
	var next *Inventory
	if prev == nil {
		next, err = NewInventory(c.ID, contentDir, c.Stage, created, c.Message, &c.User)
	} else {
		next, err = NextVersionInventory(prev, c.Stage, created, c.Message, &c.User)
	}
	if err != nil {
		return &CommitError{Err: err}
	}
	newContent, err := newContentManifest(next)
	if err != nil {
		return &CommitError{Err: err}
	}
	plan := &commitPlan{
		fs:            s.fsys,
		path:          objRoot,
		newInventory:  next,
		prevInventory: prev,
		newContent:    newContent,
		contentSource: c.Stage.Content,
		concurrency:   c.Concurrency,
	}
	return plan.run(ctx, c.Logger)
}

func isNotExist(err error) bool {
	return err != nil && errors.Is(err, fs.ErrNotExist)
}
