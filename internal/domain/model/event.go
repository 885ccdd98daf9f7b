// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/huddle/internal/domain/interval"
)

// DefaultColor is the display color given to events created without one.
const DefaultColor = "#409EFF"

// MaxTitleLength bounds event titles, counted in runes.
const MaxTitleLength = 100

// User is the identity the collaborators resolve participants to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EventKind says how a schedule event came to exist.
type EventKind string

// Event kinds.
const (
	KindSingle    EventKind = "single"
	KindRecurring EventKind = "recurring"
	KindImported  EventKind = "imported"
)

// ScheduleEvent is one entry on a single user's personal calendar. Start and
// End are stored as "HH:MM" and parsed on use.
type ScheduleEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Day         string    `json:"day"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Color       string    `json:"color"`
	Kind        EventKind `json:"kind"`
	RecurringID string    `json:"recurring_id,omitempty"`
	SourceUID   string    `json:"source_uid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Span parses the stored start and end times.
func (e ScheduleEvent) Span() (interval.Interval, error) {
	start, err := interval.ParseClock(e.Start)
	if err != nil {
		return interval.Interval{}, InvalidField("start", e.Start, err)
	}
	end, err := interval.ParseClock(e.End)
	if err != nil {
		return interval.Interval{}, InvalidField("end", e.End, err)
	}
	return interval.Span(start, end), nil
}

// Entry returns the event as a busy-time source.
func (e ScheduleEvent) Entry() PersonalEntry {
	return PersonalEntry{Day: e.Day, Start: e.Start, End: e.End}
}

// EventSource is either a Meeting or a PersonalEntry. The busy aggregator
// switches on the concrete type instead of sniffing fields.
type EventSource interface {
	eventSource()
}

// Meeting is a multi-party meeting occupying an instant range. StartISO and
// EndISO are RFC 3339 timestamps.
type Meeting struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	StartISO string `json:"start_time"`
	EndISO   string `json:"end_time"`
}

// PersonalEntry is a personal schedule row on one calendar day.
type PersonalEntry struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (Meeting) eventSource()       {}
func (PersonalEntry) eventSource() {}

// ImportEntry is one busy block extracted from an external calendar, waiting
// to be written to a user's schedule.
type ImportEntry struct {
	BatchID     string
	UserID      string
	UID         string
	Title       string
	Day         string
	Start       string
	End         string
	ForceCreate bool
}

// Key identifies the instance for idempotent re-imports.
func (e ImportEntry) Key() string {
	return e.UserID + "|" + e.UID + "|" + e.Day + "|" + e.Start
}
