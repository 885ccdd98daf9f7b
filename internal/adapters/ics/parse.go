// Package ics imports busy time from iCalendar feeds and exports candidate
// meeting slots as iCalendar.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/okian/huddle/internal/domain/busy"
	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
)

// ErrEmptyCalendar is returned for an empty payload.
var ErrEmptyCalendar = errors.New("empty ICS body")

// maxOccurrencesPerEvent caps RRULE expansion of a single VEVENT.
const maxOccurrencesPerEvent = 1000

// ParseResult is what a calendar payload yields for one user.
type ParseResult struct {
	// Entries are busy blocks on calendar days inside the requested range.
	// BatchID, UserID and ForceCreate are left for the caller to fill.
	Entries []model.ImportEntry
	// Events is the number of VEVENTs read.
	Events int
	// Rejected counts VEVENTs that could not be interpreted.
	Rejected int
}

// Parse reads an iCalendar payload and returns one entry per event instance
// and calendar day that falls in [from, to] once converted to loc.
//
// Recurring events are expanded with their RRULE and EXDATEs. Cancelled and
// transparent (free) events are ignored. Events spanning midnight, including
// all-day events, are split per day.
func Parse(body []byte, from, to time.Time, loc *time.Location) (ParseResult, error) {
	var res ParseResult
	if len(bytes.TrimSpace(body)) == 0 {
		return res, ErrEmptyCalendar
	}
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("parse calendar: %w", err)
	}

	first, last := model.DateOf(from), model.DateOf(to)
	rangeStart := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	rangeEnd := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	for _, ve := range cal.Events() {
		res.Events++
		ev, err := readEvent(ve, loc)
		if err != nil {
			res.Rejected++
			continue
		}
		if ev.skip {
			continue
		}
		starts, err := ev.instances(rangeStart, rangeEnd)
		if err != nil {
			res.Rejected++
			continue
		}
		dur := ev.end.Sub(ev.start)
		for _, s := range starts {
			for _, p := range busy.SplitDays(s, s.Add(dur), loc) {
				if p.Day.Before(first) || p.Day.After(last) {
					continue
				}
				res.Entries = append(res.Entries, model.ImportEntry{
					UID:   ev.uid,
					Title: ev.summary,
					Day:   model.FormatDate(p.Day),
					Start: interval.Clock(p.Span.Start).String(),
					End:   interval.Clock(p.Span.End).String(),
				})
			}
		}
	}
	return res, nil
}

type vevent struct {
	uid     string
	summary string
	start   time.Time
	end     time.Time
	allDay  bool
	rrule   string
	exdates []time.Time
	skip    bool
}

func readEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var ev vevent
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return ev, errors.New("missing UID")
	}
	ev.uid = strings.TrimSpace(uid.Value)
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		ev.skip = true
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		ev.skip = true
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.allDay = isDateValue(dtStart)

	if ev.allDay {
		day, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
		if err != nil {
			return ev, fmt.Errorf("DTSTART: %w", err)
		}
		ev.start = day
		ev.end = day.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if endDay, err := time.ParseInLocation("20060102", strings.TrimSpace(dtEnd.Value), loc); err == nil && endDay.After(day) {
				ev.end = endDay
			}
		}
	} else {
		start, err := eventTime(dtStart, ve.GetStartAt, loc)
		if err != nil {
			return ev, fmt.Errorf("DTSTART: %w", err)
		}
		dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd)
		if dtEnd == nil {
			return ev, errors.New("missing DTEND")
		}
		end, err := eventTime(dtEnd, ve.GetEndAt, loc)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.start, ev.end = start, end
	}
	if !ev.end.After(ev.start) {
		return ev, errors.New("DTEND not after DTSTART")
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), ev.start.Location()); err == nil {
				ev.exdates = append(ev.exdates, t)
			}
		}
	}
	return ev, nil
}

// instances returns the start of every instance overlapping [lo, hi).
func (ev vevent) instances(lo, hi time.Time) ([]time.Time, error) {
	dur := ev.end.Sub(ev.start)
	if ev.rrule == "" {
		if ev.start.Before(hi) && ev.end.After(lo) {
			return []time.Time{ev.start}, nil
		}
		return nil, nil
	}

	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}
	// Widen by one duration so instances that started before lo but run into it are kept.
	starts := set.Between(lo.Add(-dur).In(ev.start.Location()), hi.In(ev.start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}
	out := starts[:0]
	for _, s := range starts {
		if s.Before(hi) && s.Add(dur).After(lo) {
			out = append(out, s)
		}
	}
	return out, nil
}

// eventTime reads a DATE-TIME property. Values with a TZID or a UTC suffix
// are resolved by the library; floating values are read in loc rather than
// the process zone.
func eventTime(p *ical.IANAProperty, get func() (time.Time, error), loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if _, ok := p.ICalParameters["TZID"]; ok || strings.HasSuffix(v, "Z") {
		return get()
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses the DATE and DATE-TIME forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
