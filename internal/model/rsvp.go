package model

import "fmt"

// RSVP represents a single guest's reply as stored in the "rsvps" resource.
// A record is created unseated when the guest submits the form and is
// mutated in place by seat assignment and menu edits.  Email is the logical
// key used for lookups and conflict attribution; it is not structurally
// enforced as unique.
//
// Fields:
//  ID          – record identifier assigned at submission.
//  Name        – guest display name, used in conflict messages.
//  Email       – logical unique key for the guest.
//  Table, Seat – seat slot; both set or both nil ("unseated").
//  MenuChoices – course name to dish choice.
//  Dietary     – free-form dietary flags.
//  SubmittedAt – RFC 3339 submission timestamp.
type RSVP struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Table       *int              `json:"table,omitempty"`
	Seat        *int              `json:"seat,omitempty"`
	MenuChoices map[string]string `json:"menuChoices,omitempty"`
	Dietary     []string          `json:"dietary,omitempty"`
	SubmittedAt string            `json:"submittedAt,omitempty"`
}

// Seated reports whether the record claims a seat slot.  A record with only
// one of table/seat set is treated as unseated rather than rejected; the
// pair is meaningful only when complete.
func (r RSVP) Seated() bool {
	return r.Table != nil && r.Seat != nil
}

// SlotKey returns the map key identifying the (table, seat) pair.  Only
// valid for seated records.
func (r RSVP) SlotKey() string {
	return fmt.Sprintf("%d/%d", *r.Table, *r.Seat)
}

// DisplayName returns the guest name for user-facing messages, falling back
// to the email when the name is empty.
func (r RSVP) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Email
}
