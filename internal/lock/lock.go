// Package lock provides per-resource mutual exclusion backed by marker
// files.  The exclusive-create of the marker is the lock primitive: at most
// one holder exists per resource name at any instant.  There is no fairness
// or queueing — all waiters race on every retry tick, so under heavy
// contention a caller may exhaust its retry budget and fail with
// ErrLockTimeout rather than block indefinitely.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock could not be acquired within the
// manager's retry budget.  It signals transient contention; callers may
// surface it as "busy, try again" but must not auto-retry at this level.
var ErrLockTimeout = errors.New("lock: timed out waiting for resource lock")

// Manager acquires and releases resource locks under a single directory.
type Manager struct {
	dir        string
	retryDelay time.Duration
	maxRetries int
	staleAge   time.Duration

	// reclaimMu makes the stat-and-remove of a stale marker atomic with
	// respect to other reclaimers.  Without it a waiter that observed the
	// orphan could be descheduled, miss a rival's reclaim and a fresh
	// acquire, and then remove the live holder's marker.
	reclaimMu sync.Mutex
}

// Token is the ephemeral ownership token for one acquired lock.  It carries
// no owner identity beyond possession.
type Token struct {
	resource string
	path     string

	mu       sync.Mutex
	released bool
}

// Resource returns the name of the locked resource.
func (t *Token) Resource() string { return t.resource }

// NewManager returns a Manager writing markers under dir.  retryDelay is
// the wait between acquisition attempts, maxRetries bounds the attempts
// after the first, and staleAge is the marker age beyond which an orphaned
// lock (crashed holder) is reclaimed.  staleAge must be far above any
// transform duration; zero disables reclamation.
func NewManager(dir string, retryDelay time.Duration, maxRetries int, staleAge time.Duration) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &Manager{dir: dir, retryDelay: retryDelay, maxRetries: maxRetries, staleAge: staleAge}, nil
}

func (m *Manager) markerPath(resource string) string {
	return filepath.Join(m.dir, resource+".lock")
}

// Acquire obtains the exclusive lock for resource, waiting retryDelay
// between attempts up to the retry budget.  It returns ErrLockTimeout when
// the budget is exhausted.
func (m *Manager) Acquire(resource string) (*Token, error) {
	path := m.markerPath(resource)
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.retryDelay)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			// Marker content is informational only; possession of the
			// exclusive create is what grants the lock.
			fmt.Fprintf(f, "locked %s\n", time.Now().UTC().Format(time.RFC3339Nano))
			f.Close()
			return &Token{resource: resource, path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock marker for %s: %w", resource, err)
		}
		m.reclaimIfStale(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrLockTimeout, resource)
}

// reclaimIfStale removes a marker whose holder has evidently crashed.  The
// stat and the remove run under reclaimMu, so a marker can only be removed
// by the reclaimer that just observed it stale: a fresh marker created in
// the meantime is stat'ed fresh by the next reclaimer and left alone.
// Removal only clears the way — all waiters still race on the exclusive
// create, so at most one of them wins the next attempt.
func (m *Manager) reclaimIfStale(path string) {
	if m.staleAge <= 0 {
		return
	}
	m.reclaimMu.Lock()
	defer m.reclaimMu.Unlock()
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) > m.staleAge {
		_ = os.Remove(path)
	}
}

// Release gives up the lock.  It is idempotent: releasing an already
// released token is a no-op, and removal errors are ignored because the
// caller can do nothing useful with them.
func (m *Manager) Release(t *Token) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	_ = os.Remove(t.path)
}
