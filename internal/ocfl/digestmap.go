package ocfl

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var digestRE = regexp.MustCompile("^[0-9a-fA-F]+$")

// DigestMap is the data structure OCFL uses for content-addressable
// storage: it backs the Manifest, version State, and Fixity fields of
// an object Inventory.
type DigestMap map[string][]string

// Add adds a digest->path mapping. Returns an error if path is already
// present under any digest.
func (dm *DigestMap) Add(digest, p string) error {
	if err := validPath(p); err != nil {
		return err
	}
	if dm.GetDigest(p) != "" {
		return fmt.Errorf("already exists: %s", p)
	}
	if *dm == nil {
		*dm = DigestMap{}
	}
	(*dm)[digest] = append((*dm)[digest], p)
	return nil
}

// GetDigest returns the digest associated with path p, or "" if none.
func (dm DigestMap) GetDigest(p string) string {
	for d, paths := range dm {
		for _, pth := range paths {
			if pth == p {
				return d
			}
		}
	}
	return ""
}

// Paths returns a path->digest mapping. Errors if any path repeats.
func (dm DigestMap) Paths() (map[string]string, error) {
	inv := make(map[string]string, len(dm))
	for d, paths := range dm {
		for _, p := range paths {
			if _, exists := inv[p]; exists {
				return nil, fmt.Errorf("duplicate path in digest map: %s", p)
			}
			inv[p] = d
		}
	}
	return inv, nil
}

// Valid reports whether dm normalizes without error.
func (dm DigestMap) Valid() error {
	_, err := dm.Normalize()
	return err
}

// Normalize returns a copy of dm with lowercased digests, validating
// every path in the process.
func (dm DigestMap) Normalize() (DigestMap, error) {
	if dm == nil {
		return nil, errors.New("digest map cannot be nil")
	}
	out := make(DigestMap, len(dm))
	allDirs := make(map[string]bool)
	for d, paths := range dm {
		if !digestRE.MatchString(d) {
			return nil, fmt.Errorf("invalid digest: %s", d)
		}
		lower := strings.ToLower(d)
		if _, exists := out[lower]; exists {
			return nil, fmt.Errorf("duplicate digests: %s", lower)
		}
		out[lower] = make([]string, len(paths))
		for i, p := range paths {
			if err := validPath(p); err != nil {
				return nil, err
			}
			out[lower][i] = p
			for _, dir := range parentDirs(p) {
				allDirs[dir] = true
			}
		}
	}
	for _, paths := range out {
		for _, p := range paths {
			if allDirs[p] {
				return nil, fmt.Errorf("path %s also used as a directory", p)
			}
		}
	}
	return out, nil
}

func validPath(p string) error {
	clean := path.Clean(p)
	if p != clean || strings.HasPrefix(p, ".") {
		return fmt.Errorf("path includes invalid elements ('.','..','//'): %s", p)
	}
	if path.IsAbs(clean) {
		return fmt.Errorf("path must be relative: %s", clean)
	}
	return nil
}

func parentDirs(p string) []string {
	dir := path.Dir(p)
	if dir == "." {
		return nil
	}
	names := strings.Split(dir, "/")
	var out []string
	for i, n := range names {
		if n == "" {
			continue
		}
		out = append(out, strings.Join(names[:i+1], "/"))
	}
	return out
}

// PathMap is the inverse of DigestMap: path->digest.
type PathMap map[string]string

// DigestMap converts a PathMap back into a DigestMap.
func (pm PathMap) DigestMap() DigestMap {
	dm := DigestMap{}
	for p, d := range pm {
		dm[d] = append(dm[d], p)
	}
	return dm
}
