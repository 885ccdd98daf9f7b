// Package repository persists users, meetings and personal schedule events.
package repository

import (
	"context"
	"time"

	"github.com/okian/huddle/internal/domain/model"
)

// Store provides read/write access to scheduling state.
//
// Ranges are inclusive calendar dates. Implementations must be safe for
// concurrent use; callers serialise check-then-insert per user and day.
type Store interface {
	// CreateUser registers a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, email, name string) (model.User, error)
	// UserByEmail resolves an identity. Returns ErrNotFound if unknown.
	UserByEmail(ctx context.Context, email string) (model.User, error)

	// SaveMeeting attaches a meeting to userID's calendar.
	SaveMeeting(ctx context.Context, userID string, m model.Meeting) (model.Meeting, error)
	// Meetings returns userID's meetings overlapping [from, to].
	Meetings(ctx context.Context, userID string, from, to time.Time) ([]model.Meeting, error)

	// EventsInRange returns userID's events with day in [from, to], ordered by day and start.
	EventsInRange(ctx context.Context, userID string, from, to time.Time) ([]model.ScheduleEvent, error)
	// EventsForDay returns userID's events on day, skipping excludeID when set.
	EventsForDay(ctx context.Context, userID, day, excludeID string) ([]model.ScheduleEvent, error)
	// SaveEvent inserts ev, assigning an ID and creation time when missing.
	SaveEvent(ctx context.Context, ev model.ScheduleEvent) (model.ScheduleEvent, error)
	// DeleteEvent removes an event owned by userID and returns it. Returns
	// ErrNotFound if it does not exist or belongs to someone else.
	DeleteEvent(ctx context.Context, userID, id string) (model.ScheduleEvent, error)

	// SaveRecurrence stores the audit record of a recurring request and returns its ID.
	SaveRecurrence(ctx context.Context, rec model.RecurrenceRecord) (string, error)

	// Counts reports the number of stored users and events.
	Counts(ctx context.Context) (users, events int, err error)

	Close() error
}
