// Package broadcast fans committed resource values out to subscribed
// sessions.  Delivery is best-effort and at-most-once: subscribers that
// cannot keep up lose updates, and late joiners receive nothing
// retroactively — they must fetch current state explicitly.
package broadcast

import (
	"encoding/json"
	"sync"
)

// Update is one pushed value: the resource name and its full new content.
// Updates are produced only after a lock-protected write commits, so for a
// given resource each subscriber observes them in commit order.
type Update struct {
	Resource string          `json:"resource"`
	Value    json.RawMessage `json:"value"`
}

// Subscriber receives updates for a single resource until closed.
type Subscriber struct {
	hub      *Hub
	resource string
	ch       chan Update
}

// Updates returns the channel on which this subscriber receives pushes.
// The channel is closed when the subscriber is closed.
func (s *Subscriber) Updates() <-chan Update { return s.ch }

// Close detaches the subscriber from the hub and closes its channel.  Safe
// to call once per subscriber.
func (s *Subscriber) Close() { s.hub.unsubscribe(s) }

// Hub tracks the subscriber sets per resource name.  It is owned by the
// composition root and shared by the HTTP layer; there is no package-level
// instance.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers interest in one resource.  buffer bounds how many
// undelivered updates may queue before further ones are dropped for this
// subscriber.
func (h *Hub) Subscribe(resource string, buffer int) *Subscriber {
	s := &Subscriber{hub: h, resource: resource, ch: make(chan Update, buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[resource]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[resource] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.resource]
	if !ok {
		return
	}
	if _, member := set[s]; !member {
		return
	}
	delete(set, s)
	close(s.ch)
}

// Publish delivers value to every current subscriber of resource.  It
// never blocks: a subscriber whose buffer is full simply misses this
// update.  Called once per successful write, never on failed ones.
func (h *Hub) Publish(resource string, value json.RawMessage) {
	u := Update{Resource: resource, Value: value}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[resource] {
		select {
		case s.ch <- u:
		default:
		}
	}
}

// SubscriberCount reports how many sessions are currently subscribed to
// resource.  Used by tests and the health surface.
func (h *Hub) SubscriberCount(resource string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[resource])
}
