package model

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the repetition pattern of a recurrence rule.
type Frequency string

// Supported frequencies.
const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

// Default occurrence counts when a rule does not set one.
const (
	DefaultDailyCount   = 30
	DefaultWeeklyCount  = 12
	DefaultMonthlyCount = 12
)

// DefaultMaxOccurrences caps repeat_count and the number of custom_dates.
const DefaultMaxOccurrences = 366

// ParseFrequency accepts a frequency name, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Custom:
		return f, nil
	default:
		return "", NewValidationError("frequency", s, "expected daily, weekly, monthly or custom")
	}
}

// RecurrenceRule describes how to generate occurrence dates. It only lives
// for the duration of an expansion; RecurrenceRecord is the persisted audit form.
type RecurrenceRule struct {
	Frequency   Frequency `json:"frequency"`
	CustomDates []string  `json:"custom_dates,omitempty"`
	RepeatCount int       `json:"repeat_count,omitempty"`
}

// Count returns the number of occurrences to generate for non-custom rules.
func (r RecurrenceRule) Count() int {
	if r.RepeatCount > 0 {
		return r.RepeatCount
	}
	switch r.Frequency {
	case Daily:
		return DefaultDailyCount
	case Weekly:
		return DefaultWeeklyCount
	case Monthly:
		return DefaultMonthlyCount
	default:
		return 0
	}
}

// Validate checks the rule shape against DefaultMaxOccurrences.
func (r RecurrenceRule) Validate() error {
	return r.ValidateWithin(DefaultMaxOccurrences)
}

// ValidateWithin checks the rule shape and rejects rules asking for more
// than maxOccurrences dates. Individual custom dates are validated during
// expansion so that one bad date does not sink the rest.
func (r RecurrenceRule) ValidateWithin(maxOccurrences int) error {
	f, err := ParseFrequency(string(r.Frequency))
	if err != nil {
		return err
	}
	if r.RepeatCount < 0 {
		return NewValidationError("repeat_count", fmt.Sprint(r.RepeatCount), "must not be negative")
	}
	if maxOccurrences > 0 && r.RepeatCount > maxOccurrences {
		return NewValidationError("repeat_count", fmt.Sprint(r.RepeatCount),
			fmt.Sprintf("must not exceed %d", maxOccurrences))
	}
	if f == Custom && len(r.CustomDates) == 0 {
		return NewValidationError("custom_dates", "", "custom frequency requires at least one date")
	}
	if maxOccurrences > 0 && len(r.CustomDates) > maxOccurrences {
		return NewValidationError("custom_dates", fmt.Sprint(len(r.CustomDates)),
			fmt.Sprintf("must not list more than %d dates", maxOccurrences))
	}
	return nil
}

// RecurrenceRecord is the audit row written once per recurring request.
type RecurrenceRecord struct {
	ID        string
	UserID    string
	Title     string
	Start     string
	End       string
	Color     string
	Rule      RecurrenceRule
	CreatedAt time.Time
}
