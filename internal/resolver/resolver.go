// Package resolver implements the Entity Resolver: expanding an IO or
// CO message into the DR Objects that the rest of the pipeline
// persists. Every invariant violation is surfaced as an
// *errs.InvariantError rather than crashing.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/preservica/dr-replicator/internal/compose"
	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/pathplan"
	"github.com/preservica/dr-replicator/internal/upstream"
)

// Resolver expands messages into DR Objects using an entity client and
// a schema validator.
type Resolver struct {
	Entities  upstream.EntityClient
	Validator upstream.Validator
}

// New returns a Resolver wired to the given collaborators.
func New(entities upstream.EntityClient, validator upstream.Validator) *Resolver {
	return &Resolver{Entities: entities, Validator: validator}
}

// ResolveIO expands an InformationObjectMessage(ref) into its single
// MetadataObject.
func (r *Resolver) ResolveIO(ctx context.Context, ref model.EntityRef) ([]model.DRObject, error) {
	entity, err := r.Entities.EntityByTypeAndRef(ctx, model.InformationObject, ref, nil)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "entityByTypeAndRef", Err: err}
	}
	meta, err := r.Entities.MetadataForEntity(ctx, entity)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "metadataForEntity", Err: err}
	}
	if meta.IO == nil {
		return nil, &errs.InvariantError{Ref: ref.String(), Message: "upstream returned non-IoMetadata for an IO message"}
	}
	sourceID, ok := model.SourceID(meta.IO.Identifiers())
	if !ok {
		return nil, &errs.InvariantError{Ref: ref.String(), Message: "missing mandatory SourceID identifier"}
	}
	envelope, err := compose.IO(ctx, r.Validator, meta.IO)
	if err != nil {
		return nil, &errs.SchemaError{Err: err}
	}
	obj := &model.MetadataObject{
		IORef:           ref,
		Filename:        "IO_Metadata.xml",
		Digest:          envelope.Digest,
		XMLTree:         envelope.Bytes,
		DestinationPath: pathplan.IOMetadata(ref),
		Identifier:      sourceID,
	}
	return []model.DRObject{obj}, nil
}

// ResolveCO expands a ContentObjectMessage(ref) into one MetadataObject
// plus one FileObject per bitstream.
func (r *Resolver) ResolveCO(ctx context.Context, ref model.EntityRef) ([]model.DRObject, error) {
	bitstreams, err := r.Entities.BitstreamInfo(ctx, ref)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "bitstreamInfo", Err: err}
	}
	if len(bitstreams) == 0 {
		return nil, &errs.InvariantError{Ref: ref.String(), Message: "content object has no bitstreams"}
	}
	parentHint := bitstreams[0].ParentRef
	entity, err := r.Entities.EntityByTypeAndRef(ctx, model.ContentObject, ref, &parentHint)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "entityByTypeAndRef", Err: err}
	}
	if entity.Parent == nil {
		return nil, &errs.InvariantError{Ref: ref.String(), Message: "content object missing parent"}
	}
	ioRef := *entity.Parent

	group, err := r.resolveGroup(ctx, ioRef, ref)
	if err != nil {
		return nil, err
	}

	coUUID, err := bitstreamIdentifier(ref, bitstreams)
	if err != nil {
		return nil, err
	}

	meta, err := r.Entities.MetadataForEntity(ctx, entity)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "metadataForEntity", Err: err}
	}
	if meta.CO == nil {
		return nil, &errs.InvariantError{Ref: ref.String(), Message: "upstream returned non-CoMetadata for a CO message"}
	}
	envelope, err := compose.CO(ctx, r.Validator, meta.CO)
	if err != nil {
		return nil, &errs.SchemaError{Err: err}
	}

	objects := make([]model.DRObject, 0, 1+len(bitstreams))
	objects = append(objects, &model.MetadataObject{
		IORef:                       ioRef,
		OptionalRepresentationGroup: group,
		Filename:                    "CO_Metadata.xml",
		Digest:                      envelope.Digest,
		XMLTree:                     envelope.Bytes,
		DestinationPath:             pathplan.COMetadata(ioRef, group, ref),
		Identifier:                  coUUID.String(),
	})
	for _, bs := range bitstreams {
		bsUUID, err := pathplan.ParseBitstreamIdentifier(bs.Name)
		if err != nil {
			return nil, &errs.InvariantError{Ref: ref.String(), Message: fmt.Sprintf("bitstream name %q doesn't embed a UUID: %s", bs.Name, err)}
		}
		objects = append(objects, &model.FileObject{
			IORef:           ioRef,
			Filename:        bs.Name,
			Fixity:          bs.Fixity,
			URL:             bs.URL,
			DestinationPath: pathplan.Bitstream(ioRef, group, ref, bs),
			Identifier:      bsUUID,
		})
	}
	return objects, nil
}

// resolveGroup enumerates the parent IO's representation URLs looking
// for the one membership group this CO belongs to. At most one match
// is acceptable; more than one is a fatal InvariantError.
func (r *Resolver) resolveGroup(ctx context.Context, ioRef, coRef model.EntityRef) (*model.RepresentationGroup, error) {
	urls, err := r.Entities.RepresentationURLsForIO(ctx, ioRef)
	if err != nil {
		return nil, &errs.UpstreamError{Op: "representationUrlsForIo", Err: err}
	}
	var matches []model.RepresentationGroup
	for _, u := range urls {
		repType, index, err := parseRepresentationURL(u)
		if err != nil {
			continue
		}
		members, err := r.Entities.ContentObjectsFromRepresentation(ctx, ioRef, repType, index)
		if err != nil {
			return nil, &errs.UpstreamError{Op: "contentObjectsFromRepresentation", Err: err}
		}
		for _, m := range members {
			if m == coRef {
				matches = append(matches, model.RepresentationGroup{Type: repType, Index: index})
				break
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, &errs.InvariantError{Ref: coRef.String(), Message: "content object belongs to more than one representation group"}
	}
}

// parseRepresentationURL extracts (type, index) from the trailing two
// path segments of a representation URL, e.g. ".../preservation/1".
func parseRepresentationURL(u string) (model.RepresentationType, int, error) {
	trimmed := strings.TrimRight(u, "/")
	segs := strings.Split(trimmed, "/")
	if len(segs) < 2 {
		return 0, 0, fmt.Errorf("malformed representation url: %q", u)
	}
	indexSeg, typeSeg := segs[len(segs)-1], segs[len(segs)-2]
	index := 0
	for _, c := range indexSeg {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("malformed representation index: %q", u)
		}
		index = index*10 + int(c-'0')
	}
	if index == 0 {
		return 0, 0, fmt.Errorf("malformed representation index: %q", u)
	}
	repType, err := model.ParseRepresentationType(typeSeg)
	if err != nil {
		return 0, 0, err
	}
	return repType, index, nil
}

// bitstreamIdentifier computes the single UUID that every bitstream
// name (minus extension) must parse to; disagreement is a fatal
// invariant violation.
func bitstreamIdentifier(coRef model.EntityRef, bitstreams []model.BitstreamInfo) (uuid.UUID, error) {
	set := map[string]uuid.UUID{}
	for _, bs := range bitstreams {
		id, err := pathplan.ParseBitstreamIdentifier(bs.Name)
		if err != nil {
			return uuid.UUID{}, &errs.InvariantError{Ref: coRef.String(), Message: fmt.Sprintf("bitstream name %q doesn't embed a UUID: %s", bs.Name, err)}
		}
		set[id.String()] = id
	}
	if len(set) != 1 {
		return uuid.UUID{}, &errs.InvariantError{Ref: coRef.String(), Message: "bitstream names disagree on identifier"}
	}
	for _, v := range set {
		return v, nil
	}
	panic("unreachable")
}
