// Package mutate composes the lock manager and the document store into
// atomic read-modify-write mutations on one resource at a time.
package mutate

import (
	"encoding/json"

	"github.com/iliyamo/event-planner/internal/lock"
	"github.com/iliyamo/event-planner/internal/store"
)

// Transform computes the new document from the current one.  It may fail
// with a domain error (e.g. a seat conflict), in which case nothing is
// written.  The current value is always valid JSON: absent resources are
// replaced by the caller-supplied default before the transform runs.
type Transform func(current json.RawMessage) (json.RawMessage, error)

// Replace returns a transform that ignores the current value and stores
// value wholesale.  Used for every resource without domain validation.
func Replace(value json.RawMessage) Transform {
	return func(json.RawMessage) (json.RawMessage, error) {
		return value, nil
	}
}

// Mutator serializes mutations per resource name.  Mutations on different
// resources proceed fully in parallel; mutations on the same resource
// serialize through that resource's lock.  Plain reads bypass the lock
// entirely and may observe the value just before or just after a mutation,
// never a torn one.
type Mutator struct {
	locks *lock.Manager
	docs  store.DocumentStore
}

// New returns a Mutator over the given lock manager and store.
func New(locks *lock.Manager, docs store.DocumentStore) *Mutator {
	return &Mutator{locks: locks, docs: docs}
}

// Mutate runs transform against the current value of resource inside the
// resource's critical section: acquire, read (def when absent), transform,
// write, release.  The lock is released on every exit path, so no error
// can leave the resource wedged.  The stored value is returned on success.
func (m *Mutator) Mutate(resource string, def json.RawMessage, transform Transform) (json.RawMessage, error) {
	token, err := m.locks.Acquire(resource)
	if err != nil {
		return nil, err
	}
	defer m.locks.Release(token)

	current, found, err := m.docs.Read(resource)
	if err != nil {
		return nil, err
	}
	if !found {
		current = def
	}
	next, err := transform(current)
	if err != nil {
		return nil, err
	}
	if err := m.docs.Write(resource, next); err != nil {
		return nil, err
	}
	return next, nil
}
