// Package model defines the named resources managed by the event planner
// and the record types needed to state the seating invariant.
package model

import "encoding/json"

// Resource names.  Every shared document the application synchronizes is
// identified by one of these stable names.  Names are unique within the
// store and resources are independent of each other: there are no
// cross-resource transactions.
const (
	ResourceRSVPs       = "rsvps"       // guest RSVP list, seat-conflict validated
	ResourceConfig      = "config"      // seating configuration (tables, seats per table)
	ResourceMenu        = "menu"        // menu category list
	ResourceLiftShares  = "liftshares"  // lift-sharing offers and requests
	ResourceNominations = "nominations" // award nominations
)

// defaults maps each known resource name to the JSON value returned when
// the resource has never been written.  Callers must never observe "no
// value" for a known resource; absence always resolves to the default.
var defaults = map[string]string{
	ResourceRSVPs:       `[]`,
	ResourceConfig:      `{"tables":0,"seatsPerTable":0}`,
	ResourceMenu:        `[]`,
	ResourceLiftShares:  `[]`,
	ResourceNominations: `[]`,
}

// Known reports whether name identifies a managed resource.
func Known(name string) bool {
	_, ok := defaults[name]
	return ok
}

// Default returns the default JSON value for a known resource name.  The
// second return value is false for unknown names.
func Default(name string) (json.RawMessage, bool) {
	d, ok := defaults[name]
	if !ok {
		return nil, false
	}
	return json.RawMessage(d), true
}

// Names returns all managed resource names.  The order is not significant.
func Names() []string {
	out := make([]string, 0, len(defaults))
	for n := range defaults {
		out = append(out, n)
	}
	return out
}
