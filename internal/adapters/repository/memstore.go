package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/huddle/internal/domain/model"
)

// MemoryStore keeps everything in process memory. State lives on the
// instance, so separate stores never see each other's data.
type MemoryStore struct {
	settings

	mu          sync.RWMutex
	users       map[string]model.User // by ID
	byEmail     map[string]string     // normalised email -> ID
	meetings    map[string][]model.Meeting
	events      map[string]model.ScheduleEvent
	recurrences map[string]model.RecurrenceRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		settings:    defaultSettings(),
		users:       make(map[string]model.User),
		byEmail:     make(map[string]string),
		meetings:    make(map[string][]model.Meeting),
		events:      make(map[string]model.ScheduleEvent),
		recurrences: make(map[string]model.RecurrenceRecord),
	}
	for _, opt := range opts {
		opt(&s.settings)
	}
	return s
}

func (s *MemoryStore) CreateUser(_ context.Context, email, name string) (model.User, error) {
	key := normaliseEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return model.User{}, ErrDuplicate
	}
	u := model.User{ID: s.newID(), Email: strings.TrimSpace(email), Name: name}
	s.users[u.ID] = u
	s.byEmail[key] = u.ID
	return u, nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normaliseEmail(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) SaveMeeting(_ context.Context, userID string, m model.Meeting) (model.Meeting, error) {
	if _, _, err := meetingBounds(m); err != nil {
		return model.Meeting{}, err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[userID] = append(s.meetings[userID], m)
	return m, nil
}

func (s *MemoryStore) Meetings(_ context.Context, userID string, from, to time.Time) ([]model.Meeting, error) {
	lo, hi := rangeBounds(from, to)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Meeting
	for _, m := range s.meetings[userID] {
		start, end, err := meetingBounds(m)
		if err != nil {
			return nil, err
		}
		if start.Before(hi) && end.After(lo) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartISO < out[j].StartISO })
	return out, nil
}

func (s *MemoryStore) EventsInRange(_ context.Context, userID string, from, to time.Time) ([]model.ScheduleEvent, error) {
	first, last := model.FormatDate(from), model.FormatDate(to)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleEvent
	for _, ev := range s.events {
		if ev.UserID == userID && ev.Day >= first && ev.Day <= last {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *MemoryStore) EventsForDay(_ context.Context, userID, day, excludeID string) ([]model.ScheduleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleEvent
	for _, ev := range s.events {
		if ev.UserID == userID && ev.Day == day && (excludeID == "" || ev.ID != excludeID) {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *MemoryStore) SaveEvent(_ context.Context, ev model.ScheduleEvent) (model.ScheduleEvent, error) {
	if ev.ID == "" {
		ev.ID = s.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return model.ScheduleEvent{}, ErrDuplicate
	}
	s.events[ev.ID] = ev
	return ev, nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, userID, id string) (model.ScheduleEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok || ev.UserID != userID {
		return model.ScheduleEvent{}, ErrNotFound
	}
	delete(s.events, id)
	return ev, nil
}

func (s *MemoryStore) SaveRecurrence(_ context.Context, rec model.RecurrenceRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurrences[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) Counts(context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.events), nil
}

func (s *MemoryStore) Close() error { return nil }

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// meetingBounds parses the stored RFC 3339 instants of m.
func meetingBounds(m model.Meeting) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, m.StartISO)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewValidationError("start_time", m.StartISO, "expected an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, m.EndISO)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewValidationError("end_time", m.EndISO, "expected an RFC 3339 timestamp")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, model.NewValidationError("end_time", m.EndISO, "must be after start_time")
	}
	return start, end, nil
}

// rangeBounds widens an inclusive date range to instants, with a day of
// slack on each side so that zone offsets never hide a meeting.
func rangeBounds(from, to time.Time) (time.Time, time.Time) {
	return model.DateOf(from).AddDate(0, 0, -1), model.DateOf(to).AddDate(0, 0, 2)
}

func sortEvents(evs []model.ScheduleEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].Day != evs[j].Day {
			return evs[i].Day < evs[j].Day
		}
		if evs[i].Start != evs[j].Start {
			return evs[i].Start < evs[j].Start
		}
		return evs[i].ID < evs[j].ID
	})
}
