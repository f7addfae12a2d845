// Package errs defines the replicator's typed error kinds: wrapped
// errors that carry enough context for a batch failure to be
// attributed to the pipeline stage that raised it.
package errs

import "fmt"

// DecodeError means an incoming message carrier couldn't be parsed.
// The Coordinator skips the carrier without acking it; it stays on the
// queue for redelivery.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode: %s", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// UpstreamError means a network or protocol failure talking to the
// entity service. Propagates; the batch aborts without ack.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %s", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// SchemaError means composed metadata failed schema validation. Fatal
// for the batch.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema: %s", e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// InvariantError is one of: missing parent on a CO, bitstream filenames
// disagreeing on identifier, more than one representation group, or a
// missing SourceID. Fatal for the batch.
type InvariantError struct {
	Ref     string
	Message string
}

func (e *InvariantError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("invariant violated: %s", e.Message)
	}
	return fmt.Sprintf("invariant violated for %s: %s", e.Ref, e.Message)
}

// StorageError means an OCFL commit or local write failed. Fatal for
// the batch; no partial version is ever exposed.
type StorageError struct {
	IORef string
	Err   error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage for %s: %s", e.IORef, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// NotifyError means publishing an event failed after commit. Fatal for
// the batch; redelivery may cause a duplicate event, which downstream
// consumers must tolerate.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string { return fmt.Sprintf("notify: %s", e.Err) }
func (e *NotifyError) Unwrap() error { return e.Err }
