// Package ocfl implements the storage-root and object layer of the
// Oxford Common File Layout: NAMASTE declarations, versioned object
// inventories, content-addressed manifests, and the hashed n-tuple
// storage layout extension. It is a local-filesystem-only engine; the
// replicator never writes anywhere but a local OCFL storage root.
package ocfl

import "regexp"

// Spec1_0 and Spec1_1 are the OCFL specification versions this package
// writes. New objects and storage roots are always declared at Spec1_1.
const (
	Spec1_0 Spec = "1.0"
	Spec1_1 Spec = "1.1"
)

var specRE = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Spec is an OCFL specification version number, e.g. "1.1".
type Spec string

// Empty reports whether s is the zero value.
func (s Spec) Empty() bool { return s == "" }

// Valid reports whether s has the form of an OCFL spec version.
func (s Spec) Valid() bool { return specRE.MatchString(string(s)) }
