// Package workwindow computes the still-open part of the daily work window
// for each day of a date range.
package workwindow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
)

// Default work window.
const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// DefaultWorkdays is Monday through Friday.
var DefaultWorkdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Availability maps an ISO date to the minutes still available for work on
// that day. It describes open time, not busy time.
type Availability map[string][]interval.Interval

// Dates returns the dates present, in calendar order.
func (a Availability) Dates() []string {
	out := make([]string, 0, len(a))
	for d := range a {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Option applies a configuration option to the Window.
type Option func(*Window)

// WithWorkdays replaces the set of working weekdays.
func WithWorkdays(days ...time.Weekday) Option {
	return func(w *Window) {
		if len(days) == 0 {
			return
		}
		w.workdays = make(map[time.Weekday]bool, len(days))
		for _, d := range days {
			w.workdays[d] = true
		}
	}
}

// WithHours sets the daily window in whole hours, 0 <= start < end <= 24.
func WithHours(startHour, endHour int) Option {
	return func(w *Window) {
		if startHour >= 0 && startHour < endHour && endHour <= 24 {
			w.startHour = startHour
			w.endHour = endHour
		}
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLocation sets the zone in which "now" is read.
func WithLocation(loc *time.Location) Option {
	return func(w *Window) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// Window is the configurable daily work window.
type Window struct {
	workdays  map[time.Weekday]bool
	startHour int
	endHour   int
	now       func() time.Time
	loc       *time.Location
}

// New creates a Window with the 09:00-17:00 Monday-Friday default.
func New(opts ...Option) *Window {
	w := &Window{
		startHour: DefaultStartHour,
		endHour:   DefaultEndHour,
		now:       time.Now,
		loc:       time.UTC,
	}
	WithWorkdays(DefaultWorkdays...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Compute returns the open work window for every working day in [from, to].
// Past days and non-working days are omitted. Today's window starts at the
// later of "now" and the configured start hour and is omitted once empty.
func (w *Window) Compute(from, to time.Time) Availability {
	now := w.now().In(w.loc)
	today := model.DateOf(now)
	nowMinutes := now.Hour()*interval.MinutesPerHour + now.Minute()

	open := interval.New(w.startHour*interval.MinutesPerHour, w.endHour*interval.MinutesPerHour)
	out := make(Availability)
	for _, day := range model.Days(from, to) {
		if day.Before(today) || !w.workdays[day.Weekday()] {
			continue
		}
		slot := open
		if day.Equal(today) {
			slot.Start = max(nowMinutes, open.Start)
		}
		if slot.Empty() {
			continue
		}
		out[model.FormatDate(day)] = []interval.Interval{slot}
	}
	return out
}

// Today returns the current date in the window's location.
func (w *Window) Today() time.Time {
	return model.DateOf(w.now().In(w.loc))
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || (len(n) == 3 && strings.HasPrefix(full, n)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
