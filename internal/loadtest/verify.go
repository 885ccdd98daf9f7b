package loadtest

import (
	"fmt"
	"time"
)

// Slot mirrors one entry of the search response.
type Slot struct {
	StartISO string `json:"start_time"`
	EndISO   string `json:"end_time"`
}

// Violation is a returned slot that overlaps generated busy time.
type Violation struct {
	Email string
	Slot  Slot
	Block Block
}

func (v Violation) String() string {
	return fmt.Sprintf("%s busy %s-%s overlaps slot %s-%s",
		v.Email, v.Block.Start.Format(time.RFC3339), v.Block.End.Format(time.RFC3339), v.Slot.StartISO, v.Slot.EndISO)
}

// Verify checks that no slot overlaps a busy block of any participant.
// Intervals are half-open, so a slot may start exactly when a block ends.
func Verify(users []*User, slots map[string][]Slot) ([]Violation, error) {
	var out []Violation
	for _, daySlots := range slots {
		for _, s := range daySlots {
			start, err := time.Parse(time.RFC3339, s.StartISO)
			if err != nil {
				return nil, fmt.Errorf("slot start %q: %w", s.StartISO, err)
			}
			end, err := time.Parse(time.RFC3339, s.EndISO)
			if err != nil {
				return nil, fmt.Errorf("slot end %q: %w", s.EndISO, err)
			}
			for _, u := range users {
				for _, b := range u.Busy {
					if start.Before(b.End) && b.Start.Before(end) {
						out = append(out, Violation{Email: u.Email, Slot: s, Block: b})
					}
				}
			}
		}
	}
	return out, nil
}
