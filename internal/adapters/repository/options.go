package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to a store.
type Option func(*settings)

type settings struct {
	now   func() time.Time
	newID func() string
}

func defaultSettings() settings {
	return settings{now: time.Now, newID: uuid.NewString}
}

// WithClock overrides the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new record IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *settings) {
		if gen != nil {
			s.newID = gen
		}
	}
}
