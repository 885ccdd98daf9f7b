// Package service provides the scheduling service behind the HTTP API: slot
// search across participants, conflict-checked writes to a user's calendar
// and asynchronous calendar imports.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"runtime"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/huddle/internal/adapters/mq/queue"
	workerpool "github.com/okian/huddle/internal/adapters/mq/worker"
	"github.com/okian/huddle/internal/adapters/repository"
	"github.com/okian/huddle/internal/domain/busy"
	"github.com/okian/huddle/internal/domain/dedupe"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/workwindow"
	"github.com/okian/huddle/pkg/logger"
	"github.com/okian/huddle/pkg/metrics"
)

const (
	defaultSearchDays = 7
	// Widest start_date..end_date span a search, listing or import accepts.
	defaultMaxSearchDays = 366
	defaultQueueSize  = 10000
	defaultDedupeSize = 50000
)

// Service implements the API dependencies for the scheduler.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	window     *workwindow.Window
	aggregator *busy.Aggregator
	days       *dayLocks
	deduper    dedupe.Deduper
	queue      eventqueue.Queue
	pool       *workerpool.Pool

	// Configuration
	now         func() time.Time
	loc         *time.Location
	workdays    []time.Weekday
	startHour   int
	endHour     int
	searchDays  int
	maxDays     int
	maxRepeat   int
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		now:         time.Now,
		loc:         time.UTC,
		workdays:    workwindow.DefaultWorkdays,
		startHour:   workwindow.DefaultStartHour,
		endHour:     workwindow.DefaultEndHour,
		searchDays:  defaultSearchDays,
		maxDays:     defaultMaxSearchDays,
		maxRepeat:   model.DefaultMaxOccurrences,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		days:        newDayLocks(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.maxDays = max(s.maxDays, s.searchDays)
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
	}
	s.window = workwindow.New(
		workwindow.WithClock(s.now),
		workwindow.WithLocation(s.loc),
		workwindow.WithWorkdays(s.workdays...),
		workwindow.WithHours(s.startHour, s.endHour),
	)
	s.aggregator = busy.New(busy.WithLocation(s.loc))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start creates the import queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting scheduler service...")

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithPoolLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scheduler service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the import queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(ctx, "stopping scheduler service...")

	var errs []error
	if s.started {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.started = false
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.logger.Info(ctx, "scheduler service stopped")
	return errors.Join(errs...)
}

// RegisterUser makes email resolvable for searches and feed imports.
func (s *Service) RegisterUser(ctx context.Context, email, name string) (model.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return model.User{}, model.NewValidationError("email", email, "not an email address")
	}
	u, err := s.store.CreateUser(ctx, addr.Address, strings.TrimSpace(name))
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserExists, addr.Address)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Debug(ctx, "user registered", logger.String("userID", u.ID))
	return u, nil
}

// SaveMeeting records a meeting userID attends. Meetings count as busy time
// in slot searches.
func (s *Service) SaveMeeting(ctx context.Context, userID string, m model.Meeting) (model.Meeting, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(m.StartISO))
	if err != nil {
		return model.Meeting{}, model.NewValidationError("start_time", m.StartISO, "expected an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(m.EndISO))
	if err != nil {
		return model.Meeting{}, model.NewValidationError("end_time", m.EndISO, "expected an RFC 3339 timestamp")
	}
	if !end.After(start) {
		return model.Meeting{}, model.NewValidationError("end_time", m.EndISO, "must be after start_time")
	}
	m.StartISO, m.EndISO = start.Format(time.RFC3339), end.Format(time.RFC3339)

	saved, err := s.store.SaveMeeting(ctx, userID, m)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("save meeting: %w", err)
	}
	return saved, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"dedupeKeys":  s.deduper.Size(),
		"dayLocks":    s.days.size(),
	}

	if users, events, err := s.store.Counts(ctx); err == nil {
		stats["users"] = users
		stats["events"] = events
		metrics.UpdateStoreCounts(users, events)
	} else {
		s.logger.Warn(ctx, "store counts unavailable", logger.Error(err))
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["importsProcessed"] = s.pool.Processed()
		stats["importsFailed"] = s.pool.Failed()

		metrics.UpdateQueueSize(queueLen, s.queue.Capacity())
	}
	return stats
}

// dateRange parses optional ISO dates. A missing start means today and a
// missing end means searchDays after the start. Ranges wider than maxDays
// are rejected.
func (s *Service) dateRange(startDate, endDate string) (time.Time, time.Time, error) {
	from := s.window.Today()
	if strings.TrimSpace(startDate) != "" {
		d, err := model.ParseDate("start_date", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}
	to := from.AddDate(0, 0, s.searchDays)
	if strings.TrimSpace(endDate) != "" {
		d, err := model.ParseDate("end_date", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, model.NewValidationError("end_date", endDate, "must not be before start_date")
	}
	if to.After(from.AddDate(0, 0, s.maxDays)) {
		return time.Time{}, time.Time{}, model.NewValidationError("end_date", endDate,
			fmt.Sprintf("must be within %d days of start_date", s.maxDays))
	}
	return from, to, nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
