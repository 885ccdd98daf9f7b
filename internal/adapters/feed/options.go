package feed

import (
	"net/http"
	"time"

	"github.com/okian/huddle/pkg/logger"
)

// Option applies a configuration option to the Refresher.
type Option func(*Refresher)

// WithSchedule sets the cron spec the refresh runs on. Five fields, an
// optional leading seconds field, or a descriptor such as "@every 15m".
func WithSchedule(spec string) Option {
	return func(r *Refresher) {
		r.spec = spec
	}
}

// WithLocation sets the zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Refresher) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithHTTPClient replaces the client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Refresher) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}
