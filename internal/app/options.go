package service

import (
	"time"

	"github.com/okian/huddle/internal/adapters/repository"
	"github.com/okian/huddle/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence port. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone dates and clock times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWorkdays sets the weekdays meetings may be proposed on.
func WithWorkdays(days ...time.Weekday) Option {
	return func(s *Service) {
		if len(days) > 0 {
			s.workdays = days
		}
	}
}

// WithWorkHours sets the daily window meetings may be proposed in.
func WithWorkHours(startHour, endHour int) Option {
	return func(s *Service) {
		s.startHour = startHour
		s.endHour = endHour
	}
}

// WithSearchDays sets how many days past the start date a search or
// listing covers when no end date is given.
func WithSearchDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.searchDays = days
		}
	}
}

// WithMaxSearchDays caps the span between start_date and end_date. It is
// raised to the search length if set below it.
func WithMaxSearchDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxDays = days
		}
	}
}

// WithMaxRepeatCount caps repeat_count and the number of custom dates in a
// recurring request.
func WithMaxRepeatCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.maxRepeat = count
		}
	}
}

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the import queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many imported instances are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}
