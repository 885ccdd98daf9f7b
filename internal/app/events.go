package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/huddle/internal/adapters/repository"
	"github.com/okian/huddle/internal/domain/conflict"
	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/recurrence"
	"github.com/okian/huddle/internal/domain/types"
	"github.com/okian/huddle/pkg/logger"
	"github.com/okian/huddle/pkg/metrics"
)

// NewEvent is a single event to add to a user's calendar.
type NewEvent struct {
	UserID      string `json:"-"`
	Title       string `json:"title"`
	Day         string `json:"day"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Color       string `json:"color,omitempty"`
	ForceCreate bool   `json:"force_create,omitempty"`
}

// AddResult reports whether an event was written. When it was not, Conflicts
// lists what is in the way so the caller can retry with ForceCreate.
type AddResult struct {
	Event     *model.ScheduleEvent `json:"event,omitempty"`
	Created   bool                 `json:"created"`
	Conflicts []types.Conflict     `json:"conflicts,omitempty"`
}

// RecurringRequest is a series of identical events on the dates a rule yields.
// StartDate anchors the rule and defaults to today.
type RecurringRequest struct {
	UserID      string               `json:"-"`
	Title       string               `json:"title"`
	Start       string               `json:"start"`
	End         string               `json:"end"`
	Color       string               `json:"color,omitempty"`
	StartDate   string               `json:"start_date,omitempty"`
	Rule        model.RecurrenceRule `json:"rule"`
	ForceCreate bool                 `json:"force_create,omitempty"`
}

// CheckConflict lists userID's events on day that overlap [start, end).
// Touching events do not conflict. excludeID is ignored, for edits.
func (s *Service) CheckConflict(ctx context.Context, userID, day, start, end, excludeID string) ([]types.Conflict, error) {
	date, span, err := parseSlot(day, start, end)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.conflicts(ctx, userID, date, span, excludeID)
	if err != nil {
		return nil, err
	}
	metrics.RecordConflicts(len(conflicts))
	return conflicts, nil
}

// AddEvent writes a single event unless it overlaps an existing one. With
// ForceCreate the overlap check is skipped.
func (s *Service) AddEvent(ctx context.Context, ev NewEvent) (AddResult, error) {
	title, err := validTitle(ev.Title)
	if err != nil {
		return AddResult{}, err
	}
	day, span, err := parseSlot(ev.Day, ev.Start, ev.End)
	if err != nil {
		return AddResult{}, err
	}

	unlock := s.days.lock(ev.UserID, day)
	defer unlock()

	if !ev.ForceCreate {
		conflicts, err := s.conflicts(ctx, ev.UserID, day, span, "")
		if err != nil {
			return AddResult{}, err
		}
		if len(conflicts) > 0 {
			metrics.RecordConflicts(len(conflicts))
			metrics.RecordEventSkipped("conflict")
			return AddResult{Conflicts: conflicts}, nil
		}
	}

	saved, err := s.store.SaveEvent(ctx, model.ScheduleEvent{
		UserID: ev.UserID,
		Title:  title,
		Day:    day,
		Start:  interval.Clock(span.Start).String(),
		End:    interval.Clock(span.End).String(),
		Color:  color(ev.Color),
		Kind:   model.KindSingle,
	})
	if err != nil {
		return AddResult{}, fmt.Errorf("save event: %w", err)
	}
	metrics.RecordEventCreated(string(model.KindSingle))
	return AddResult{Event: &saved, Created: true}, nil
}

// AddRecurringEvent expands the rule and writes one event per date. Dates
// with conflicts are skipped and reported with the conflicting events unless
// ForceCreate is set. A date that cannot be generated or stored is reported
// in Failed without stopping the rest.
func (s *Service) AddRecurringEvent(ctx context.Context, req RecurringRequest) (types.RecurrenceResult, error) {
	title, err := validTitle(req.Title)
	if err != nil {
		return types.RecurrenceResult{}, err
	}
	span, err := parseSpan(req.Start, req.End)
	if err != nil {
		return types.RecurrenceResult{}, err
	}
	anchor, _, err := s.dateRange(req.StartDate, "")
	if err != nil {
		return types.RecurrenceResult{}, err
	}
	exp, err := recurrence.Expand(req.Rule, anchor, recurrence.WithMaxOccurrences(s.maxRepeat))
	if err != nil {
		return types.RecurrenceResult{}, err
	}

	start, end := interval.Clock(span.Start).String(), interval.Clock(span.End).String()
	recID, err := s.store.SaveRecurrence(ctx, model.RecurrenceRecord{
		UserID: req.UserID,
		Title:  title,
		Start:  start,
		End:    end,
		Color:  color(req.Color),
		Rule:   req.Rule,
	})
	if err != nil {
		return types.RecurrenceResult{}, fmt.Errorf("save recurrence: %w", err)
	}

	res := types.RecurrenceResult{
		RecurringID: recID,
		Skipped:     []types.SkippedOccurrence{},
		Failed:      exp.Failed,
	}
	for _, day := range exp.Dates {
		created, conflicts, err := s.addOccurrence(ctx, req, model.ScheduleEvent{
			UserID:      req.UserID,
			Title:       title,
			Day:         day,
			Start:       start,
			End:         end,
			Color:       color(req.Color),
			Kind:        model.KindRecurring,
			RecurringID: recID,
		}, span)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, types.FailedOccurrence{Input: day, Reason: err.Error()})
		case !created:
			res.Skipped = append(res.Skipped, types.SkippedOccurrence{Date: day, Conflicts: conflicts})
		default:
			res.Created++
		}
	}

	metrics.RecordRecurrenceFailures(len(res.Failed))
	s.logger.Info(ctx, "recurring event expanded",
		logger.String("recurringID", recID),
		logger.String("frequency", string(req.Rule.Frequency)),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.SkippedCount()),
		logger.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (s *Service) addOccurrence(ctx context.Context, req RecurringRequest, ev model.ScheduleEvent, span interval.Interval) (bool, []types.Conflict, error) {
	unlock := s.days.lock(ev.UserID, ev.Day)
	defer unlock()

	if !req.ForceCreate {
		conflicts, err := s.conflicts(ctx, ev.UserID, ev.Day, span, "")
		if err != nil {
			return false, nil, err
		}
		if len(conflicts) > 0 {
			metrics.RecordConflicts(len(conflicts))
			metrics.RecordEventSkipped("conflict")
			return false, conflicts, nil
		}
	}
	if _, err := s.store.SaveEvent(ctx, ev); err != nil {
		return false, nil, fmt.Errorf("save event: %w", err)
	}
	metrics.RecordEventCreated(string(model.KindRecurring))
	return true, nil, nil
}

// DeleteEvent removes an event owned by userID. Deleting an imported event
// lets the next import of its feed bring it back.
func (s *Service) DeleteEvent(ctx context.Context, userID, id string) error {
	ev, err := s.store.DeleteEvent(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if ev.Kind == model.KindImported && ev.SourceUID != "" {
		entry := model.ImportEntry{UserID: ev.UserID, UID: ev.SourceUID, Day: ev.Day, Start: ev.Start}
		s.deduper.Unrecord(ctx, entry.Key())
	}
	metrics.RecordEventDeleted()
	return nil
}

// ListEvents returns userID's events between two optional ISO dates.
func (s *Service) ListEvents(ctx context.Context, userID, startDate, endDate string) ([]model.ScheduleEvent, error) {
	from, to, err := s.dateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	events, err := s.store.EventsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.ScheduleEvent{}
	}
	return events, nil
}

func (s *Service) conflicts(ctx context.Context, userID, day string, span interval.Interval, excludeID string) ([]types.Conflict, error) {
	existing, err := s.store.EventsForDay(ctx, userID, day, excludeID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return conflict.Detect(existing, span, excludeID)
}

// parseSlot validates a day and a clock range and returns the day in
// canonical form.
func parseSlot(day, start, end string) (string, interval.Interval, error) {
	d, err := model.ParseDate("day", day)
	if err != nil {
		return "", interval.Interval{}, err
	}
	span, err := parseSpan(start, end)
	if err != nil {
		return "", interval.Interval{}, err
	}
	return model.FormatDate(d), span, nil
}

func parseSpan(start, end string) (interval.Interval, error) {
	s, err := interval.ParseClock(start)
	if err != nil {
		return interval.Interval{}, model.InvalidField("start", start, err)
	}
	e, err := interval.ParseClock(end)
	if err != nil {
		return interval.Interval{}, model.InvalidField("end", end, err)
	}
	if e <= s {
		return interval.Interval{}, model.NewValidationError("end", end, "must be after start")
	}
	return interval.Span(s, e), nil
}

func validTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", model.NewValidationError("title", title, "must not be empty")
	}
	if utf8.RuneCountInString(t) > model.MaxTitleLength {
		return "", model.NewValidationError("title", "", fmt.Sprintf("must be at most %d characters", model.MaxTitleLength))
	}
	return t, nil
}

func color(c string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return model.DefaultColor
}
