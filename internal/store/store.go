// Package store persists named JSON documents.  A document store performs
// no locking of its own: writes are only safe because the atomic mutator
// always performs them under the resource's lock.
package store

import "encoding/json"

// DocumentStore reads and replaces whole named JSON documents.
//
// Read returns the stored value and true, or nil and false when the
// resource has never been written or its stored content is not parseable
// JSON.  Absence is not an error; callers supply a default.
//
// Write replaces the document's entire content.  A write must never be
// observable half-applied: concurrent readers see either the previous or
// the new value.
type DocumentStore interface {
	Read(name string) (json.RawMessage, bool, error)
	Write(name string, value json.RawMessage) error
}
