// Package conflict reports which of a user's existing events overlap a
// proposed time range on the same day.
package conflict

import (
	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/types"
)

// Detect returns the events in existing whose span overlaps proposed.
// Intervals are half-open, so an event ending at 10:00 does not conflict with
// one starting at 10:00. The event whose ID equals excludeID is ignored,
// which lets an edit be checked against everything but itself.
//
// A stored event with unreadable times fails the check rather than being
// treated as free.
func Detect(existing []model.ScheduleEvent, proposed interval.Interval, excludeID string) ([]types.Conflict, error) {
	if !proposed.Valid() {
		return nil, model.NewValidationError("end", interval.Clock(proposed.End).String(), "must be after start")
	}
	var out []types.Conflict
	for _, ev := range existing {
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		span, err := ev.Span()
		if err != nil {
			return nil, err
		}
		if span.Overlaps(proposed) {
			out = append(out, types.Conflict{ID: ev.ID, Title: ev.Title, Start: ev.Start, End: ev.End})
		}
	}
	return out, nil
}
