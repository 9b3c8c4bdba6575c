// Package client implements the subscribing side of the synchronization
// protocol: a per-session reconciler that merges local edits and remote
// broadcasts into one cache without feeding received updates back to the
// server, and a Session that binds reconcilers to the HTTP+WebSocket API.
package client

import (
	"encoding/json"
	"sync"
	"time"
)

// SaveFunc persists a locally edited value.  The reconciler invokes it only
// for genuine local edits, never for values that arrived from the server.
type SaveFunc func(value json.RawMessage)

// Reconciler tracks one resource for one session.  It guards against two
// failure loops: saving a default placeholder before the initial load has
// completed, and re-saving a value that was just received from a remote
// broadcast (which would ping-pong between open sessions forever).
type Reconciler struct {
	resource string
	window   time.Duration
	save     SaveFunc
	now      func() time.Time

	mu            sync.Mutex
	cache         json.RawMessage
	suppressUntil time.Time
	loaded        bool
}

// NewReconciler returns a reconciler for resource.  window is the
// suppression span opened by each remote update; 100ms suits fast-changing
// resources, up to ~500ms where recomputing derived state is slower.
func NewReconciler(resource string, window time.Duration, save SaveFunc) *Reconciler {
	return &Reconciler{resource: resource, window: window, save: save, now: time.Now}
}

// OnInitialLoad installs the server's current value and unlocks saving.
// Until it has run, every local edit is cached but not persisted, so a
// session whose first fetch is slow or failed cannot overwrite real server
// state with an empty default.
func (r *Reconciler) OnInitialLoad(value json.RawMessage) {
	if !json.Valid(value) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = value
	r.loaded = true
}

// OnRemoteUpdate applies a broadcast value to the cache and opens the
// suppression window.  Malformed payloads are dropped rather than applied.
// A remote value must never cause this reconciler to issue a save.
func (r *Reconciler) OnRemoteUpdate(value json.RawMessage) {
	if !json.Valid(value) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = value
	r.suppressUntil = r.now().Add(r.window)
}

// OnLocalEdit records a locally produced value and persists it unless the
// session has not finished its initial load or a remote update landed
// within the suppression window.
func (r *Reconciler) OnLocalEdit(value json.RawMessage) {
	r.mu.Lock()
	r.cache = value
	suppressed := r.now().Before(r.suppressUntil)
	allowed := r.loaded && !suppressed && r.save != nil
	save := r.save
	r.mu.Unlock()
	if allowed {
		save(value)
	}
}

// Cache returns the last known value for the resource.
func (r *Reconciler) Cache() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache
}

// Loaded reports whether the initial load has completed.
func (r *Reconciler) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Resource returns the resource name this reconciler tracks.
func (r *Reconciler) Resource() string { return r.resource }
