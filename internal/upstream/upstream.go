// Package upstream declares the external collaborator interfaces the
// reconciliation core depends on: the preservation repository's
// entity/metadata/bitstream client and the XIP schema validator. The
// core only ever sees these interfaces. internal/preservica provides
// the production EntityClient binding; test doubles live in
// internal/fake. No concrete Validator ships here — XIP schema binding
// needs an XSD toolchain this module doesn't carry, so `run` wires a
// nil Validator and composition proceeds unvalidated (see DESIGN.md).
package upstream

import (
	"context"
	"io"

	"github.com/preservica/dr-replicator/internal/model"
)

// EntityClient is every operation the core needs from the upstream
// preservation repository.
type EntityClient interface {
	EntityByTypeAndRef(ctx context.Context, kind model.EntityKind, ref model.EntityRef, parentHint *model.EntityRef) (*model.Entity, error)
	BitstreamInfo(ctx context.Context, coRef model.EntityRef) ([]model.BitstreamInfo, error)
	MetadataForEntity(ctx context.Context, e *model.Entity) (*model.EntityMetadata, error)
	RepresentationURLsForIO(ctx context.Context, ioRef model.EntityRef) ([]string, error)
	ContentObjectsFromRepresentation(ctx context.Context, ioRef model.EntityRef, repType model.RepresentationType, index int) ([]model.EntityRef, error)
	StreamBitstream(ctx context.Context, url string, sink io.Writer) error
}

// Validator checks a composed XML envelope against the XIP v7 schema.
type Validator interface {
	Validate(ctx context.Context, xml string) error
}
