// Package types contains common result types used across the application
package types

// MeetingSlot is one candidate meeting on a given date.
type MeetingSlot struct {
	StartISO string `json:"start_time"`
	EndISO   string `json:"end_time"`
}

// SlotRun is a contiguous run of feasible start minutes, both ends inclusive.
type SlotRun struct {
	FirstStart string `json:"first_start"`
	LastStart  string `json:"last_start"`
	Duration   int    `json:"duration_minutes"`
}

// Conflict is an existing event overlapping a proposed one.
type Conflict struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// SkippedOccurrence is a recurrence date that was not written because of conflicts.
type SkippedOccurrence struct {
	Date      string     `json:"date"`
	Conflicts []Conflict `json:"conflicts"`
}

// FailedOccurrence is a recurrence date that could not be generated or stored.
type FailedOccurrence struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// RecurrenceResult summarises one recurring-event request.
type RecurrenceResult struct {
	RecurringID string              `json:"recurring_id"`
	Created     int                 `json:"created"`
	Skipped     []SkippedOccurrence `json:"skipped"`
	Failed      []FailedOccurrence  `json:"failed,omitempty"`
}

// SkippedCount returns the number of occurrences skipped for conflicts.
func (r RecurrenceResult) SkippedCount() int { return len(r.Skipped) }

// ImportSummary reports what an ICS import queued.
type ImportSummary struct {
	BatchID    string `json:"batch_id"`
	Parsed     int    `json:"parsed"`
	Queued     int    `json:"queued"`
	Duplicates int    `json:"duplicates"`
	Rejected   int    `json:"rejected"`
}
