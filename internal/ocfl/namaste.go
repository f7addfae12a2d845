package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

const (
	NamasteTypeObject = "ocfl_object" // declares an OCFL object root
	NamasteTypeRoot   = "ocfl"        // declares an OCFL storage root
)

var (
	// ErrDeclarationMissing is returned when a directory has no "0=TYPE_VERSION"
	// file, or a candidate filename doesn't parse as one.
	ErrDeclarationMissing = fmt.Errorf("NAMASTE declaration not found: %w", fs.ErrNotExist)
	// ErrDeclarationMismatch is returned when a declaration file's contents
	// don't match what its own filename promises.
	ErrDeclarationMismatch = errors.New("NAMASTE declaration contents do not match filename")
	// ErrDeclarationAmbiguous is returned when a directory carries more than
	// one "0=TYPE_VERSION" file.
	ErrDeclarationAmbiguous = errors.New("directory has more than one NAMASTE declaration")
)

// Namaste is a parsed "0=TYPE_VERSION" declaration file: the marker OCFL
// uses to tag a directory as a storage root or an object root, and to pin
// the spec version it was written against.
type Namaste struct {
	Type    string
	Version Spec
}

// Name is the declaration's filename, e.g. "0=ocfl_1.1".
func (n Namaste) Name() string {
	if n.Type == "" || n.Version.Empty() {
		return ""
	}
	return "0=" + n.Type + "_" + string(n.Version)
}

// Body is the declaration file's required contents: Name without the
// "0=" marker, plus a trailing newline.
func (n Namaste) Body() string {
	if n.Type == "" || n.Version.Empty() {
		return ""
	}
	return n.Type + "_" + string(n.Version) + "\n"
}

func (n Namaste) IsObject() bool { return n.Type == NamasteTypeObject }
func (n Namaste) IsRoot() bool   { return n.Type == NamasteTypeRoot }

// ParseNamaste extracts the declaration type and spec version from a
// "0=TYPE_VERSION" filename. The version is validated with Spec.Valid
// rather than a second regular expression, since the two must agree on
// what a version number looks like.
func ParseNamaste(name string) (Namaste, error) {
	rest, ok := strings.CutPrefix(name, "0=")
	if !ok {
		return Namaste{}, ErrDeclarationMissing
	}
	sep := strings.LastIndexByte(rest, '_')
	if sep < 0 {
		return Namaste{}, ErrDeclarationMissing
	}
	typ, ver := rest[:sep], Spec(rest[sep+1:])
	if typ == "" || !ver.Valid() {
		return Namaste{}, ErrDeclarationMissing
	}
	return Namaste{Type: typ, Version: ver}, nil
}

// FindNamaste scans a directory listing for its NAMASTE declaration. An
// OCFL directory must carry exactly one; zero or more than one is an
// error. The scan exits as soon as a second candidate turns up rather
// than collecting every entry first.
func FindNamaste(entries []fs.DirEntry) (Namaste, error) {
	var candidate Namaste
	matches := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parsed, err := ParseNamaste(entry.Name())
		if err != nil {
			continue
		}
		matches++
		if matches > 1 {
			return Namaste{}, ErrDeclarationAmbiguous
		}
		candidate = parsed
	}
	if matches == 0 {
		return Namaste{}, ErrDeclarationMissing
	}
	return candidate, nil
}

// ValidateNamaste opens the declaration file at name and checks that its
// contents match what the filename itself promises.
func ValidateNamaste(ctx context.Context, fsys FS, name string) (err error) {
	want, parseErr := ParseNamaste(path.Base(name))
	if parseErr != nil {
		return parseErr
	}
	f, openErr := fsys.OpenFile(ctx, name)
	if openErr != nil {
		if errors.Is(openErr, fs.ErrNotExist) {
			return fmt.Errorf("opening %q: %w", name, ErrDeclarationMissing)
		}
		return fmt.Errorf("opening %q: %w", name, openErr)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	body, readErr := io.ReadAll(f)
	if readErr != nil {
		return fmt.Errorf("reading %q: %w", name, readErr)
	}
	if string(body) != want.Body() {
		return fmt.Errorf("contents of %q: %w", name, ErrDeclarationMismatch)
	}
	return nil
}

// WriteDeclaration writes d's declaration file into dir.
func WriteDeclaration(ctx context.Context, root WriteFS, dir string, d Namaste) error {
	if _, err := root.Write(ctx, path.Join(dir, d.Name()), strings.NewReader(d.Body())); err != nil {
		return fmt.Errorf("writing NAMASTE declaration: %w", err)
	}
	return nil
}
