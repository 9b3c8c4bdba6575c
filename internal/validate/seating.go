// Package validate holds the domain validation applied to RSVP writes: no
// two guests may occupy the same table/seat slot.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/event-planner/internal/model"
	"github.com/iliyamo/event-planner/internal/mutate"
)

// ConflictError reports that an incoming RSVP claims a seat slot already
// owned by a different guest.  The whole write is rejected; nothing is
// partially applied.
type ConflictError struct {
	Table    int
	Seat     int
	Occupant string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("table %d seat %d is already taken by %s", e.Table, e.Seat, e.Occupant)
}

// ReplaceRSVPs returns the transform used for bulk "replace RSVP list"
// writes.  incoming is the decoded view of raw; the decode extracts only
// the fields the invariant needs, so raw — not a re-marshal of the structs
// — is what gets stored, preserving record fields this service does not
// model.  Every seated record is checked against a slot-ownership map
// seeded from the stored list:
//
//   - a slot owned by a different email fails the entire write with a
//     ConflictError naming the occupant;
//   - re-claiming your own slot is not a conflict;
//   - each accepted claim overwrites the map entry, so two records inside
//     the same batch claiming one slot under different emails also collide.
//
// When no conflict is found raw becomes the stored value verbatim.
// Revalidating slots that did not change is accepted cost at this scale;
// the whole-list write lets a client submit its full local copy as one
// logical transaction.
func ReplaceRSVPs(incoming []model.RSVP, raw json.RawMessage) mutate.Transform {
	return func(current json.RawMessage) (json.RawMessage, error) {
		var stored []model.RSVP
		// A stored value that does not decode as a list contributes no
		// prior claims; the incoming list still self-checks.
		_ = json.Unmarshal(current, &stored)

		owners := make(map[string]model.RSVP, len(stored))
		for _, r := range stored {
			if r.Seated() {
				owners[r.SlotKey()] = r
			}
		}
		for _, r := range incoming {
			if !r.Seated() {
				continue
			}
			key := r.SlotKey()
			if prev, ok := owners[key]; ok && prev.Email != r.Email {
				return nil, &ConflictError{Table: *r.Table, Seat: *r.Seat, Occupant: prev.DisplayName()}
			}
			owners[key] = r
		}
		return raw, nil
	}
}
