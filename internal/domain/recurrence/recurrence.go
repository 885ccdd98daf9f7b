// Package recurrence expands a recurrence rule into concrete calendar dates.
package recurrence

import (
	"fmt"
	"time"

	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/types"
	"github.com/teambition/rrule-go"
)

// Expansion is the outcome of expanding one rule. Failed holds inputs that
// could not become a date; they never abort the rest.
type Expansion struct {
	Dates  []string
	Failed []types.FailedOccurrence
}

// Option applies a configuration option to an expansion.
type Option func(*config)

type config struct {
	maxOccurrences int
}

// WithMaxOccurrences caps how many dates a rule may ask for. Rules over the
// cap are rejected rather than truncated.
func WithMaxOccurrences(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxOccurrences = n
		}
	}
}

// Expand generates occurrence dates for rule, anchored at start.
//
// Daily and weekly rules step by one day or week. Monthly rules keep the
// day of month of start and clamp to the last day of shorter months, so a
// series anchored on the 31st lands on Feb 28 (or 29) and Apr 30. Custom
// rules take their dates verbatim; unparsable or repeated entries are
// reported in Failed.
func Expand(rule model.RecurrenceRule, start time.Time, opts ...Option) (Expansion, error) {
	cfg := config{maxOccurrences: model.DefaultMaxOccurrences}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := rule.ValidateWithin(cfg.maxOccurrences); err != nil {
		return Expansion{}, err
	}
	rule.Frequency, _ = model.ParseFrequency(string(rule.Frequency))
	anchor := model.DateOf(start)

	if rule.Frequency == model.Custom {
		return expandCustom(rule.CustomDates), nil
	}

	opt := rrule.ROption{
		Dtstart: anchor,
		Count:   rule.Count(),
	}
	switch rule.Frequency {
	case model.Daily:
		opt.Freq = rrule.DAILY
	case model.Weekly:
		opt.Freq = rrule.WEEKLY
	case model.Monthly:
		opt.Freq = rrule.MONTHLY
		if d := anchor.Day(); d > 28 {
			// Pick the latest of 28..d that exists in each month.
			for md := 28; md <= d; md++ {
				opt.Bymonthday = append(opt.Bymonthday, md)
			}
			opt.Bysetpos = []int{-1}
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return Expansion{}, fmt.Errorf("build %s rule: %w", rule.Frequency, err)
	}
	var out Expansion
	for _, t := range r.All() {
		out.Dates = append(out.Dates, model.FormatDate(t))
	}
	return out, nil
}

func expandCustom(dates []string) Expansion {
	var out Expansion
	seen := make(map[string]bool, len(dates))
	for _, raw := range dates {
		d, err := model.ParseDate("custom_dates", raw)
		if err != nil {
			out.Failed = append(out.Failed, types.FailedOccurrence{Input: raw, Reason: err.Error()})
			continue
		}
		key := model.FormatDate(d)
		if seen[key] {
			out.Failed = append(out.Failed, types.FailedOccurrence{Input: raw, Reason: "duplicate date"})
			continue
		}
		seen[key] = true
		out.Dates = append(out.Dates, key)
	}
	return out
}
