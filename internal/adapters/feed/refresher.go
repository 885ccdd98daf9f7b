// Package feed periodically pulls subscribed iCalendar feeds and imports
// them as busy time for their owners.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/huddle/internal/domain/types"
	"github.com/okian/huddle/pkg/logger"
	"github.com/okian/huddle/pkg/metrics"
)

// DefaultSchedule refreshes every feed hourly.
const DefaultSchedule = "@hourly"

const (
	fetchTimeout = 15 * time.Second
	maxBodySize  = 10 << 20
)

// Feed is one subscription: the calendar at URL belongs to the user with Email.
type Feed struct {
	Email string `koanf:"email"`
	URL   string `koanf:"url"`
}

// Importer receives the body of a fetched feed.
type Importer interface {
	ImportFeed(ctx context.Context, email string, body []byte) (types.ImportSummary, error)
}

// Refresher fetches feeds on a cron schedule. Conditional requests are used
// so an unchanged feed is not imported again.
type Refresher struct {
	feeds    []Feed
	importer Importer
	spec     string
	loc      *time.Location
	client   *http.Client
	logger   logger.Logger

	mu    sync.Mutex
	etags map[string]string
	c     *cron.Cron
}

// NewRefresher creates a Refresher for feeds.
func NewRefresher(feeds []Feed, importer Importer, opts ...Option) *Refresher {
	r := &Refresher{
		feeds:    feeds,
		importer: importer,
		spec:     DefaultSchedule,
		loc:      time.UTC,
		client:   &http.Client{Timeout: fetchTimeout},
		logger:   logger.Nop(),
		etags:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers the refresh job and starts the scheduler. Runs triggered
// by the schedule use ctx. With no feeds or an empty schedule it does nothing.
func (r *Refresher) Start(ctx context.Context) error {
	if len(r.feeds) == 0 || r.spec == "" {
		r.logger.Info(ctx, "feed refresh disabled", logger.Int("feeds", len(r.feeds)))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return ErrAlreadyStarted
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(r.loc))
	if _, err := c.AddFunc(r.spec, func() { r.RefreshAll(ctx) }); err != nil {
		return fmt.Errorf("feed schedule %q: %w", r.spec, err)
	}
	c.Start()
	r.c = c

	r.logger.Info(ctx, "feed refresh scheduled",
		logger.String("schedule", r.spec),
		logger.Int("feeds", len(r.feeds)),
	)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RefreshAll refreshes every feed in turn. A failing feed is logged and
// does not stop the others; the errors are returned in feed order.
func (r *Refresher) RefreshAll(ctx context.Context) []error {
	var errs []error
	for _, f := range r.feeds {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.Refresh(ctx, f); err != nil {
			errs = append(errs, err)
			r.logger.Error(ctx, "feed refresh failed",
				logger.String("email", f.Email),
				logger.String("url", redactURL(f.URL)),
				logger.Error(err),
			)
		}
	}
	return errs
}

// Refresh fetches one feed and imports it unless the server reports it
// unchanged since the last successful import.
func (r *Refresher) Refresh(ctx context.Context, f Feed) error {
	if f.URL == "" {
		metrics.RecordFeedRefresh("error")
		return ErrEmptyURL
	}

	body, etag, changed, err := r.fetch(ctx, f.URL)
	if err != nil {
		metrics.RecordFeedRefresh("error")
		return err
	}
	if !changed {
		metrics.RecordFeedRefresh("not_modified")
		r.logger.Debug(ctx, "feed not modified", logger.String("url", redactURL(f.URL)))
		return nil
	}

	sum, err := r.importer.ImportFeed(ctx, f.Email, body)
	if err != nil {
		metrics.RecordFeedRefresh("error")
		return fmt.Errorf("import feed for %s: %w", f.Email, err)
	}

	r.mu.Lock()
	if etag != "" {
		r.etags[f.URL] = etag
	} else {
		delete(r.etags, f.URL)
	}
	r.mu.Unlock()

	metrics.RecordFeedRefresh("ok")
	r.logger.Info(ctx, "feed imported",
		logger.String("email", f.Email),
		logger.String("batch_id", sum.BatchID),
		logger.Int("parsed", sum.Parsed),
		logger.Int("queued", sum.Queued),
	)
	return nil
}

func (r *Refresher) fetch(ctx context.Context, rawURL string) (body []byte, etag string, changed bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("Accept", "text/calendar")
	r.mu.Lock()
	if prev := r.etags[rawURL]; prev != "" {
		req.Header.Set("If-None-Match", prev)
	}
	r.mu.Unlock()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, "", false, err
		}
		return body, resp.Header.Get("ETag"), true, nil
	case http.StatusNotModified:
		return nil, "", false, nil
	default:
		return nil, "", false, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

// redactURL drops the query string and credentials, which private feed
// links often carry.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
