// Package model defines the data types shared across the replicator:
// entity references and kinds, the upstream metadata tree fragments,
// and the DR Object sum type that the Local Store and Staging Transfer
// stages operate on. Types are closed sum types expressed as tagged Go
// structs/interfaces rather than open class hierarchies.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntityRef names a logical archival entity by UUID.
type EntityRef uuid.UUID

func (r EntityRef) String() string { return uuid.UUID(r).String() }

// ParseEntityRef parses a canonical UUID string into an EntityRef.
func ParseEntityRef(s string) (EntityRef, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntityRef{}, fmt.Errorf("invalid entity ref %q: %w", s, err)
	}
	return EntityRef(u), nil
}

// EntityKind distinguishes an InformationObject from a ContentObject.
type EntityKind int

const (
	InformationObject EntityKind = iota
	ContentObject
)

func (k EntityKind) String() string {
	switch k {
	case InformationObject:
		return "InformationObject"
	case ContentObject:
		return "ContentObject"
	default:
		return "Unknown"
	}
}

// RepresentationType is Preservation or Access, each indexed 1-based
// per IO.
type RepresentationType int

const (
	Preservation RepresentationType = iota
	Access
)

func (t RepresentationType) String() string {
	switch t {
	case Preservation:
		return "Preservation"
	case Access:
		return "Access"
	default:
		return "Unknown"
	}
}

// ParseRepresentationType parses the case-insensitive upstream
// representation type name ("preservation"/"access").
func ParseRepresentationType(s string) (RepresentationType, error) {
	switch strings.ToLower(s) {
	case "preservation":
		return Preservation, nil
	case "access":
		return Access, nil
	default:
		return 0, fmt.Errorf("unknown representation type: %q", s)
	}
}

// RepresentationGroup identifies a (type, 1-based index) pair a CO may
// belong to. A CO with no group is "ungrouped".
type RepresentationGroup struct {
	Type  RepresentationType
	Index int
}

// String renders the group the way destination paths expect it:
// "Preservation_1".
func (g RepresentationGroup) String() string {
	return fmt.Sprintf("%s_%d", g.Type, g.Index)
}

// GenerationType is Original or Derived.
type GenerationType int

const (
	Original GenerationType = iota
	Derived
)

func (g GenerationType) String() string {
	if g == Derived {
		return "Derived"
	}
	return "Original"
}

// lower renders the generation type the way destination paths expect
// it: "original" or "derived".
func (g GenerationType) lower() string {
	if g == Derived {
		return "derived"
	}
	return "original"
}

// Lower is the path-segment rendering of g.
func (g GenerationType) Lower() string { return g.lower() }

// BitstreamInfo is a per-CO payload descriptor.
type BitstreamInfo struct {
	Name              string // original filename, embeds the bitstream UUID
	Fixity            string // hex SHA-256 of the payload as declared upstream
	URL               string // fetch location
	GenerationType    GenerationType
	GenerationVersion int // 1-based
	ParentRef         EntityRef
}

// IdentifierType distinguishes the kinds of identifiers an entity can
// carry. SourceID is the only type this system's logic inspects.
type IdentifierType string

const SourceIDType IdentifierType = "SourceID"

// Identifier is one (Type, Value) pair from an entity's identifier
// fragment.
type Identifier struct {
	Type  IdentifierType
	Value string
}

// Link, MetadataNode, and EventAction are opaque upstream XML tree
// fragments carried through to the composed envelope unmodified; this
// system never inspects their internals, only assembles and serializes
// them in order.
type Link struct{ XML string }
type MetadataNode struct{ XML string }
type EventAction struct{ XML string }

// EntityNode is the serialized XML fragment describing the entity
// itself (the first child of the composed envelope).
type EntityNode struct{ XML string }

// RepresentationNode is one representation fragment of an IoMetadata
// tree.
type RepresentationNode struct{ XML string }

// GenerationNode is one generation fragment of a CoMetadata tree.
type GenerationNode struct{ XML string }

// BitstreamNode is one bitstream fragment of a CoMetadata tree.
type BitstreamNode struct{ XML string }

// EntityMetadata is the upstream-provided tree fragment for an entity;
// exactly one of IO or CO is non-nil.
type EntityMetadata struct {
	IO *IoMetadata
	CO *CoMetadata
}

// commonFragments is embedded in both metadata variants.
type commonFragments struct {
	Identifiers   []Identifier
	Links         []Link
	MetadataNodes []MetadataNode
	EventActions  []EventAction
}

// IoMetadata is an entity node plus a sequence of representation
// nodes.
type IoMetadata struct {
	Entity          EntityNode
	Representations []RepresentationNode
	commonFragments
}

// Identifiers returns io's common identifier fragments.
func (io *IoMetadata) Identifiers() []Identifier { return io.commonFragments.Identifiers }

// CoMetadata is an entity node plus generation and bitstream nodes.
type CoMetadata struct {
	Entity      EntityNode
	Generations []GenerationNode
	Bitstreams  []BitstreamNode
	commonFragments
}

// NewIoMetadata and NewCoMetadata let callers build metadata with
// common fragments populated, since commonFragments is unexported.
func NewIoMetadata(entity EntityNode, reps []RepresentationNode, ids []Identifier, links []Link, nodes []MetadataNode, events []EventAction) *IoMetadata {
	return &IoMetadata{
		Entity:          entity,
		Representations: reps,
		commonFragments: commonFragments{Identifiers: ids, Links: links, MetadataNodes: nodes, EventActions: events},
	}
}

func NewCoMetadata(entity EntityNode, gens []GenerationNode, bitstreams []BitstreamNode, ids []Identifier, links []Link, nodes []MetadataNode, events []EventAction) *CoMetadata {
	return &CoMetadata{
		Entity:          entity,
		Generations:     gens,
		Bitstreams:      bitstreams,
		commonFragments: commonFragments{Identifiers: ids, Links: links, MetadataNodes: nodes, EventActions: events},
	}
}

// Identifiers returns co's common identifier fragments.
func (co *CoMetadata) Identifiers() []Identifier { return co.commonFragments.Identifiers }

// SourceID returns the first identifier with Type == SourceID. Its
// absence is surfaced by callers as an *errs.InvariantError rather
// than treated as acceptable.
func SourceID(ids []Identifier) (string, bool) {
	for _, id := range ids {
		if id.Type == SourceIDType {
			return id.Value, true
		}
	}
	return "", false
}

// Entity is the descriptor fetched from the upstream entity client.
type Entity struct {
	Ref    EntityRef
	Kind   EntityKind
	Parent *EntityRef // set for ContentObject entities
}

// DRObject is the unit of work handed to the Local Store: either a
// FileObject (a bitstream) or a MetadataObject (a composed envelope).
type DRObject interface {
	ObjectIORef() EntityRef
	ObjectDestinationPath() string
	drObject()
}

// FileObject is a bitstream payload to be fetched and stored.
type FileObject struct {
	IORef           EntityRef
	Filename        string
	Fixity          string // expected SHA-256
	URL             string
	DestinationPath string
	Identifier      uuid.UUID // the bitstream UUID parsed from Filename
}

func (f *FileObject) ObjectIORef() EntityRef           { return f.IORef }
func (f *FileObject) ObjectDestinationPath() string    { return f.DestinationPath }
func (f *FileObject) drObject()                        {}

var _ DRObject = (*FileObject)(nil)

// MetadataObject is a composed XML envelope to be serialized and
// stored.
type MetadataObject struct {
	IORef                       EntityRef
	OptionalRepresentationGroup *RepresentationGroup
	Filename                    string
	Digest                      string // SHA-256 of the serialized envelope
	XMLTree                     []byte // the exact bytes to write
	DestinationPath             string
	Identifier                  string // SourceID for IO-metadata, bitstream UUID string for CO-metadata
}

func (m *MetadataObject) ObjectIORef() EntityRef        { return m.IORef }
func (m *MetadataObject) ObjectDestinationPath() string { return m.DestinationPath }
func (m *MetadataObject) drObject()                     {}

var _ DRObject = (*MetadataObject)(nil)

// StagedWrite is produced by the transfer stage and consumed by commit.
type StagedWrite struct {
	ID              string
	StagingPath     string
	DestinationPath string
}

// ObjectType is the Change Notifier's object-kind enumeration.
type ObjectType string

const (
	ObjectTypeBitstream ObjectType = "Bitstream"
	ObjectTypeMetadata  ObjectType = "Metadata"
)

// ChangeStatus is the Change Notifier's status enumeration.
type ChangeStatus string

const (
	StatusCreated ChangeStatus = "Created"
	StatusUpdated ChangeStatus = "Updated"
)
