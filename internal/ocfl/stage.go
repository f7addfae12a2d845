package ocfl

import "fmt"

// Stage is the logical version state proposed for a new object version:
// a digest map from content digest to logical paths, plus the content
// source that can supply bytes for each digest.
type Stage struct {
	State   DigestMap
	Content ContentSource
}

// ContentSource supplies file contents for digests referenced by a
// Stage. GetContent returns the FS and path where the digest's bytes
// can be read, or (nil, "") if the source doesn't have it.
type ContentSource interface {
	GetContent(digest string) (FS, string)
}

// NewStage builds a Stage from a digest map and content source,
// validating the digest map in the process.
func NewStage(state DigestMap, content ContentSource) (*Stage, error) {
	norm, err := state.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid stage state: %w", err)
	}
	return &Stage{State: norm, Content: content}, nil
}

// mapContentSource is a ContentSource backed by a fixed digest->(FS,path)
// table, used when staged content has already been written to a known
// location (e.g. the transfer package's temp files).
type mapContentSource struct {
	fsys FS
	locs map[string]string
}

// NewMapContentSource returns a ContentSource that resolves digests to
// paths within a single FS.
func NewMapContentSource(fsys FS, digestToPath map[string]string) ContentSource {
	return &mapContentSource{fsys: fsys, locs: digestToPath}
}

func (m *mapContentSource) GetContent(digest string) (FS, string) {
	p, ok := m.locs[digest]
	if !ok {
		return nil, ""
	}
	return m.fsys, p
}
