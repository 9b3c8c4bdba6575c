// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// ResourceUpdatedEvent is published after a mutation commits.  It carries
// enough for downstream consumers to audit who changed what and when
// without shipping the document body through the broker.
type ResourceUpdatedEvent struct {
	Resource  string `json:"resource"`
	Actor     string `json:"actor"`
	SizeBytes int    `json:"size_bytes"`
	UpdatedAt string `json:"updated_at"`
}

// NewResourceUpdatedEvent stamps an event with the current UTC time.
func NewResourceUpdatedEvent(resource, actor string, size int) ResourceUpdatedEvent {
	return ResourceUpdatedEvent{
		Resource:  resource,
		Actor:     actor,
		SizeBytes: size,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
