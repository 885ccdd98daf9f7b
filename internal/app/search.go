package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/huddle/internal/adapters/repository"
	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/resolver"
	"github.com/okian/huddle/internal/domain/types"
	"github.com/okian/huddle/internal/domain/workwindow"
	"github.com/okian/huddle/pkg/metrics"
)

// Tiers given to participants when the query does not set them explicitly.
const (
	TierRegular = 0
	TierKey     = 1
)

// MeetingQuery describes a multi-party slot search.
type MeetingQuery struct {
	Participants    []string       `json:"participants"`
	KeyParticipants []string       `json:"key_participants,omitempty"`
	Tiers           map[string]int `json:"tiers,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	StartDate       string         `json:"start_date,omitempty"`
	EndDate         string         `json:"end_date,omitempty"`
}

// FindMeetingTimes returns, per date, every slot of the requested length in
// which the largest satisfiable group of tiers is free. Key participants are
// satisfied before everyone else. Dates with no slot are omitted.
//
// Every participant is resolved before any calendar is read; an unknown
// email aborts the search with a ParticipantNotFoundError.
func (s *Service) FindMeetingTimes(ctx context.Context, q MeetingQuery) (map[string][]types.MeetingSlot, error) {
	starts, err := s.searchStarts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]types.MeetingSlot, len(starts))
	for day, mins := range starts {
		date, _ := model.ParseDate("day", day)
		slots := make([]types.MeetingSlot, 0, len(mins))
		for _, m := range mins {
			slots = append(slots, s.slot(date, m, q.DurationMinutes))
		}
		out[day] = slots
	}
	return out, nil
}

// FindMeetingRuns is FindMeetingTimes with consecutive start minutes
// compacted into runs.
func (s *Service) FindMeetingRuns(ctx context.Context, q MeetingQuery) (map[string][]types.SlotRun, error) {
	starts, err := s.searchStarts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]types.SlotRun, len(starts))
	for day, mins := range starts {
		for _, r := range resolver.Runs(mins) {
			out[day] = append(out[day], types.SlotRun{
				FirstStart: interval.Clock(r.First).String(),
				LastStart:  interval.Clock(r.Last).String(),
				Duration:   q.DurationMinutes,
			})
		}
	}
	return out, nil
}

func (s *Service) searchStarts(ctx context.Context, q MeetingQuery) (map[string][]int, error) {
	began := time.Now()
	starts, err := s.resolve(ctx, q)
	if err != nil {
		metrics.RecordSlotSearchError()
		return nil, err
	}
	metrics.RecordSlotSearch(float64(time.Since(began).Microseconds())/1000, len(starts))
	return starts, nil
}

func (s *Service) resolve(ctx context.Context, q MeetingQuery) (map[string][]int, error) {
	if q.DurationMinutes <= 0 || q.DurationMinutes > interval.MinutesPerDay {
		return nil, model.NewValidationError("duration_minutes", fmt.Sprint(q.DurationMinutes), "must be between 1 and 1440")
	}
	emails, tiers, err := participantTiers(q)
	if err != nil {
		return nil, err
	}
	from, to, err := s.dateRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(emails))
	for _, email := range emails {
		u, err := s.store.UserByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &model.ParticipantNotFoundError{Email: email}
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", email, err)
		}
		users = append(users, u)
	}

	avail := s.window.Compute(from, to)
	days := make(map[string][]resolver.DayParticipant, len(avail))
	for i, u := range users {
		free, err := s.freeTime(ctx, u.ID, avail, from, to)
		if err != nil {
			return nil, fmt.Errorf("busy time of %s: %w", emails[i], err)
		}
		for _, day := range avail.Dates() {
			days[day] = append(days[day], resolver.DayParticipant{
				ID:   emails[i],
				Tier: tiers[emails[i]],
				Free: free[day],
			})
		}
	}
	return resolver.ResolveDays(days, q.DurationMinutes), nil
}

// freeTime is the part of avail not taken by userID's meetings or
// personal events.
func (s *Service) freeTime(ctx context.Context, userID string, avail workwindow.Availability, from, to time.Time) (workwindow.Availability, error) {
	meetings, err := s.store.Meetings(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	events, err := s.store.EventsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	sources := make([]model.EventSource, 0, len(meetings)+len(events))
	for _, m := range meetings {
		sources = append(sources, m)
	}
	for _, ev := range events {
		sources = append(sources, ev.Entry())
	}
	busyMap, err := s.aggregator.Aggregate(sources, from, to)
	if err != nil {
		return nil, err
	}
	return busyMap.Free(avail), nil
}

// participantTiers normalises the participant list and assigns each a tier.
func participantTiers(q MeetingQuery) ([]string, map[string]int, error) {
	var emails []string
	tiers := make(map[string]int)
	for _, raw := range q.Participants {
		e := normaliseEmail(raw)
		if e == "" {
			return nil, nil, model.NewValidationError("participants", raw, "empty email")
		}
		if _, dup := tiers[e]; dup {
			continue
		}
		tiers[e] = TierRegular
		emails = append(emails, e)
	}
	if len(emails) == 0 {
		return nil, nil, model.NewValidationError("participants", "", "at least one participant is required")
	}
	for _, raw := range q.KeyParticipants {
		e := normaliseEmail(raw)
		if _, ok := tiers[e]; !ok {
			return nil, nil, model.NewValidationError("key_participants", raw, "must also be listed in participants")
		}
		tiers[e] = TierKey
	}
	for raw, tier := range q.Tiers {
		e := normaliseEmail(raw)
		if _, ok := tiers[e]; !ok {
			return nil, nil, model.NewValidationError("tiers", raw, "must also be listed in participants")
		}
		tiers[e] = tier
	}
	return emails, tiers, nil
}

func (s *Service) slot(date time.Time, minute, duration int) types.MeetingSlot {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, minute, 0, 0, s.loc)
	end := time.Date(date.Year(), date.Month(), date.Day(), 0, minute+duration, 0, 0, s.loc)
	return types.MeetingSlot{StartISO: start.Format(time.RFC3339), EndISO: end.Format(time.RFC3339)}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
