package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

var ErrOpUnsupported = errors.New("operation not supported by the file system")

// FS is the minimal file system abstraction used to read an OCFL
// storage root or object.
type FS interface {
	OpenFile(ctx context.Context, name string) (fs.File, error)
	ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error)
}

// WriteFS is a storage backend that also supports write and remove.
type WriteFS interface {
	FS
	Write(ctx context.Context, name string, src io.Reader) (int64, error)
	Remove(ctx context.Context, name string) error
	RemoveAll(ctx context.Context, name string) error
}

// ReadAll returns the contents of the named file.
func ReadAll(ctx context.Context, fsys FS, name string) ([]byte, error) {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// StatFile returns file info for the named file.
func StatFile(ctx context.Context, fsys FS, name string) (fs.FileInfo, error) {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Stat()
}

// Copy copies src in srcFS to dst in dstFS.
func Copy(ctx context.Context, dstFS WriteFS, dst string, srcFS FS, src string) (size int64, err error) {
	srcF, err := srcFS.OpenFile(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("opening for copy: %w", err)
	}
	defer func() {
		if closeErr := srcF.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	size, err = dstFS.Write(ctx, dst, srcF)
	if err != nil {
		return size, fmt.Errorf("writing during copy: %w", err)
	}
	return size, nil
}

// LocalFS is a WriteFS backed by a directory on the local filesystem.
type LocalFS struct {
	path string
}

var _ WriteFS = (*LocalFS)(nil)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// NewLocalFS returns a WriteFS rooted at path.
func NewLocalFS(path string) (*LocalFS, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("new local fs: %w", err)
	}
	return &LocalFS{path: abs}, nil
}

// Root returns the OS path this FS is rooted at.
func (l *LocalFS) Root() string { return l.path }

func (l *LocalFS) osPath(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", fs.ErrInvalid
	}
	return filepath.Join(l.path, filepath.FromSlash(name)), nil
}

func (l *LocalFS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	full, err := l.osPath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("is a directory")}
	}
	return f, nil
}

func (l *LocalFS) ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	full, err := l.osPath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (l *LocalFS) Write(ctx context.Context, name string, src io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	full, err := l.osPath(name)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	dst, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return n, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if err := dst.Close(); err != nil {
		return n, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	return n, nil
}

func (l *LocalFS) Remove(ctx context.Context, name string) error {
	full, err := l.osPath(name)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("cannot remove top-level directory")}
	}
	if err := os.Remove(full); err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

func (l *LocalFS) RemoveAll(ctx context.Context, name string) error {
	full, err := l.osPath(name)
	if err != nil {
		return &fs.PathError{Op: "remove_all", Path: name, Err: err}
	}
	if name == "." {
		return &fs.PathError{Op: "remove_all", Path: name, Err: errors.New("cannot remove top-level directory")}
	}
	if err := os.RemoveAll(full + string(filepath.Separator)); err != nil {
		return &fs.PathError{Op: "remove_all", Path: name, Err: err}
	}
	return nil
}

// joinPath joins OCFL-relative path segments using forward slashes,
// matching the NAMASTE/inventory path conventions regardless of OS.
func joinPath(elem ...string) string { return path.Join(elem...) }
