// Package busy turns a participant's meetings and personal schedule rows into
// merged per-day busy intervals.
package busy

import (
	"fmt"
	"time"

	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/workwindow"
)

// Layouts accepted for meeting instants that carry no zone offset; those
// are read in the aggregator's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// BusyMap maps an ISO date to one participant's merged busy intervals.
type BusyMap map[string][]interval.Interval

// Free subtracts the busy time from each day of the available window. Days
// absent from avail are absent from the result; a fully booked day maps to
// an empty list.
func (b BusyMap) Free(avail workwindow.Availability) workwindow.Availability {
	out := make(workwindow.Availability, len(avail))
	for day, open := range avail {
		out[day] = interval.Subtract(open, b[day])
	}
	return out
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLocation sets the zone meeting instants are converted into before
// their minutes of day are taken.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator converts event sources into a BusyMap.
type Aggregator struct {
	loc *time.Location
}

// New creates an Aggregator reading instants in UTC unless configured otherwise.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate collects the busy intervals of sources that fall inside
// [from, to] and merges them per day. A malformed date or time in any source
// fails the whole aggregation.
//
// Meetings that run past midnight are split into one interval per day.
func (a *Aggregator) Aggregate(sources []model.EventSource, from, to time.Time) (BusyMap, error) {
	first, last := model.DateOf(from), model.DateOf(to)
	inRange := func(day time.Time) bool {
		return !day.Before(first) && !day.After(last)
	}

	raw := make(map[string][]interval.Interval)
	for _, src := range sources {
		switch ev := src.(type) {
		case model.Meeting:
			pieces, err := a.meetingPieces(ev)
			if err != nil {
				return nil, err
			}
			for _, p := range pieces {
				if inRange(p.Day) {
					key := model.FormatDate(p.Day)
					raw[key] = append(raw[key], p.Span)
				}
			}
		case model.PersonalEntry:
			day, span, err := personalSpan(ev)
			if err != nil {
				return nil, err
			}
			if inRange(day) {
				key := model.FormatDate(day)
				raw[key] = append(raw[key], span)
			}
		case nil:
			continue
		default:
			return nil, fmt.Errorf("busy: unsupported event source %T", src)
		}
	}

	out := make(BusyMap, len(raw))
	for day, spans := range raw {
		out[day] = interval.Merge(spans)
	}
	return out, nil
}

// Piece is the part of an instant range that falls on one calendar day.
type Piece struct {
	Day  time.Time
	Span interval.Interval
}

// SplitDays cuts [start, end) at each midnight in loc. The first piece runs
// to 24:00, full days in between cover the whole day and the last piece
// starts at 00:00. A trailing partial minute is rounded up.
func SplitDays(start, end time.Time, loc *time.Location) []Piece {
	start, end = start.In(loc), end.In(loc)
	var pieces []Piece
	y, mo, d := start.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, loc)
	for midnight.Before(end) {
		next := midnight.AddDate(0, 0, 1)
		segStart := start
		if segStart.Before(midnight) {
			segStart = midnight
		}
		startMin := segStart.Hour()*interval.MinutesPerHour + segStart.Minute()
		endMin := interval.MinutesPerDay
		if end.Before(next) {
			endMin = end.Hour()*interval.MinutesPerHour + end.Minute()
			if end.Second() > 0 || end.Nanosecond() > 0 {
				endMin++
			}
		}
		if startMin < endMin {
			pieces = append(pieces, Piece{Day: model.DateOf(midnight), Span: interval.New(startMin, endMin)})
		}
		midnight = next
	}
	return pieces
}

func (a *Aggregator) meetingPieces(m model.Meeting) ([]Piece, error) {
	start, err := a.parseInstant("start_time", m.StartISO)
	if err != nil {
		return nil, err
	}
	end, err := a.parseInstant("end_time", m.EndISO)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, model.NewValidationError("end_time", m.EndISO, "must be after start_time")
	}
	return SplitDays(start, end, a.loc), nil
}

func (a *Aggregator) parseInstant(field, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(a.loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, a.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.NewValidationError(field, value, "expected an ISO 8601 timestamp")
}

func personalSpan(p model.PersonalEntry) (time.Time, interval.Interval, error) {
	day, err := model.ParseDate("day", p.Day)
	if err != nil {
		return time.Time{}, interval.Interval{}, err
	}
	start, err := interval.ParseClock(p.Start)
	if err != nil {
		return time.Time{}, interval.Interval{}, model.InvalidField("start", p.Start, err)
	}
	end, err := interval.ParseClock(p.End)
	if err != nil {
		return time.Time{}, interval.Interval{}, model.InvalidField("end", p.End, err)
	}
	if end <= start {
		return time.Time{}, interval.Interval{}, model.NewValidationError("end", p.End, "must be after start")
	}
	return day, interval.Span(start, end), nil
}
