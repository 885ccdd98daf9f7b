// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Feed is an iCalendar subscription imported for the user with Email.
type Feed struct {
	Email string `koanf:"email"`
	URL   string `koanf:"url"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Timezone is the IANA zone dates and clock times are read in.
	Timezone string `koanf:"timezone"`

	// WorkStartHour and WorkEndHour bound the daily window searched for meetings.
	WorkStartHour int `koanf:"work_start_hour"`
	WorkEndHour   int `koanf:"work_end_hour"`

	// Workdays lists weekday names meetings may be proposed on.
	Workdays []string `koanf:"workdays"`

	// SearchDays is the default search length when no end date is given.
	SearchDays int `koanf:"search_days"`
	// MaxSearchDays caps the span between start_date and end_date.
	MaxSearchDays int `koanf:"max_search_days"`
	// MaxRepeatCount caps repeat_count and custom_dates of a recurring event.
	MaxRepeatCount int `koanf:"max_repeat_count"`

	// StoreDriver selects the persistence backend: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`
	// SQLiteBusyTimeoutMS is how long a write waits on a locked database.
	SQLiteBusyTimeoutMS int `koanf:"sqlite_busy_timeout_ms"`

	// ImportQueueSize bounds the in-memory import queue.
	ImportQueueSize int `koanf:"import_queue_size"`
	// ImportWorkerCount sets the number of import workers.
	ImportWorkerCount int `koanf:"import_worker_count"`
	// DedupeSize sets how many imported instances are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitRPS and RateLimitBurst configure the API token bucket. A
	// non-positive rate disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// FeedRefresh is the cron spec feeds are refreshed on.
	FeedRefresh string `koanf:"feed_refresh"`
	// Feeds are the subscribed calendars.
	Feeds []Feed `koanf:"feeds"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Timezone:            "UTC",
		WorkStartHour:       9,
		WorkEndHour:         17,
		Workdays:            []string{"mon", "tue", "wed", "thu", "fri"},
		SearchDays:          7,
		MaxSearchDays:       366,
		MaxRepeatCount:      366,
		StoreDriver:         DriverMemory,
		SQLitePath:          "huddle.db",
		SQLiteBusyTimeoutMS: 5000,
		ImportQueueSize:     10_000,
		ImportWorkerCount:   runtime.NumCPU(),
		DedupeSize:          50_000,
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		FeedRefresh:         "@every 30m",
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Weekdays resolves Workdays.
func (c *Config) Weekdays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.Workdays))
	for _, name := range c.Workdays {
		d, ok := parseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, name)
		}
		out = append(out, d)
	}
	return out, nil
}

// SQLiteBusyTimeout returns the busy timeout as a duration.
func (c *Config) SQLiteBusyTimeout() time.Duration {
	return time.Duration(c.SQLiteBusyTimeoutMS) * time.Millisecond
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.WorkStartHour < 0 || c.WorkStartHour >= c.WorkEndHour || c.WorkEndHour > 24 {
		return fmt.Errorf("%w: work hours must satisfy 0 <= start < end <= 24, got %d-%d",
			ErrInvalidConfig, c.WorkStartHour, c.WorkEndHour)
	}
	if len(c.Workdays) == 0 {
		return fmt.Errorf("%w: workdays must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Weekdays(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SearchDays <= 0 {
		return fmt.Errorf("%w: search_days must be positive", ErrInvalidConfig)
	}
	if c.MaxSearchDays < c.SearchDays {
		return fmt.Errorf("%w: max_search_days must be at least search_days (%d), got %d",
			ErrInvalidConfig, c.SearchDays, c.MaxSearchDays)
	}
	if c.MaxRepeatCount <= 0 {
		return fmt.Errorf("%w: max_repeat_count must be positive", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must be set for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("%w: feeds[%d] needs both email and url", ErrInvalidConfig, i)
		}
	}
	return nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || (len(n) == 3 && strings.HasPrefix(full, n)) {
			return d, true
		}
	}
	return 0, false
}
