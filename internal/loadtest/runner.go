package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/huddle/pkg/logger"
)

const (
	maxAttempts         = 3
	drainPollInterval   = 250 * time.Millisecond
	directoryPermission = 0o750
	filePermission      = 0o600
	percent             = 100
)

// ErrViolations is returned when a search handed out a slot that overlaps
// generated busy time.
var ErrViolations = errors.New("slots overlap busy time")

// Run executes a complete load test against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("loadtest")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg)

	log.Info(ctx, "starting huddle load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("searches", cfg.Searches),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rps", cfg.RPS))

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	baseline, err := processedImports(ctx, client)
	if err != nil {
		return stats, fmt.Errorf("read service stats: %w", err)
	}

	fx := Generate(cfg, time.Now().UTC())
	log.Info(ctx, "fixture generated",
		logger.String("startDate", fx.StartDate),
		logger.String("endDate", fx.EndDate),
		logger.Int("blocks", countBlocks(fx.Users)))

	if err := registerUsers(ctx, cfg, client, fx, stats); err != nil {
		return stats, fmt.Errorf("user registration failed: %w", err)
	}
	if err := importCalendars(ctx, cfg, client, fx, stats); err != nil {
		return stats, fmt.Errorf("calendar import failed: %w", err)
	}
	if err := waitForImports(ctx, client, cfg.DrainTimeout, baseline+int64(stats.EntriesQueued)); err != nil {
		return stats, fmt.Errorf("imports did not finish: %w", err)
	}

	violations := runSearches(ctx, cfg, client, fx, stats)
	for i, v := range violations {
		if i == 10 {
			log.Error(ctx, "further violations omitted", logger.Int("total", len(violations)))
			break
		}
		log.Error(ctx, "slot overlaps busy time", logger.String("violation", v.String()))
	}

	if cfg.OutputFile != "" {
		if err := saveFixture(cfg.OutputFile, fx); err != nil {
			log.Warn(ctx, "failed to save fixture", logger.Error(err))
		} else {
			log.Info(ctx, "fixture saved", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if len(violations) > 0 {
		return stats, fmt.Errorf("%w: %d", ErrViolations, len(violations))
	}
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.Status)
	}
	return nil
}

// send retries requests rejected by the server's rate limiter.
func send(ctx context.Context, stats *Stats, mu *sync.Mutex, call func() (Response, error)) (Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := call()
		if err != nil || resp.Status != http.StatusTooManyRequests || attempt == maxAttempts-1 {
			return resp, err
		}
		mu.Lock()
		stats.RateLimited++
		mu.Unlock()
		if err := retryAfter(ctx, attempt); err != nil {
			return resp, err
		}
	}
}

func registerUsers(ctx context.Context, cfg *Config, client *HTTPClient, fx *Fixture, stats *Stats) error {
	log := logger.Named("loadtest")
	var (
		mu     sync.Mutex
		failed atomic.Int64
	)
	forEach(ctx, len(fx.Users), cfg.Workers, func(ctx context.Context, i int) {
		u := fx.Users[i]
		resp, err := send(ctx, stats, &mu, func() (Response, error) {
			return client.PostJSON(ctx, "/users", map[string]string{"email": u.Email})
		})
		var created struct {
			ID string `json:"id"`
		}
		if err == nil && resp.Status == http.StatusCreated {
			err = resp.Decode(&created)
		} else if err == nil {
			err = fmt.Errorf("status %d: %s", resp.Status, resp.Body)
		}
		if err != nil || created.ID == "" {
			failed.Add(1)
			if cfg.Verbose {
				log.Warn(ctx, "register failed", logger.String("email", u.Email), logger.Error(err))
			}
			return
		}
		u.ID = created.ID
		mu.Lock()
		stats.UsersRegistered++
		mu.Unlock()
	})
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d users could not be registered", n, len(fx.Users))
	}
	return ctx.Err()
}

func importCalendars(ctx context.Context, cfg *Config, client *HTTPClient, fx *Fixture, stats *Stats) error {
	log := logger.Named("loadtest")
	q := url.Values{"start_date": {fx.StartDate}, "end_date": {fx.EndDate}}.Encode()
	now := time.Now().UTC()
	var (
		mu     sync.Mutex
		failed atomic.Int64
	)
	forEach(ctx, len(fx.Users), cfg.Workers, func(ctx context.Context, i int) {
		u := fx.Users[i]
		cal := u.Calendar(now)
		resp, err := send(ctx, stats, &mu, func() (Response, error) {
			return client.PostCalendar(ctx, "/users/"+url.PathEscape(u.ID)+"/import?"+q, cal)
		})
		var summary struct {
			Queued     int `json:"queued"`
			Duplicates int `json:"duplicates"`
		}
		if err == nil && resp.Status == http.StatusAccepted {
			err = resp.Decode(&summary)
		} else if err == nil {
			err = fmt.Errorf("status %d: %s", resp.Status, resp.Body)
		}
		if err != nil {
			failed.Add(1)
			if cfg.Verbose {
				log.Warn(ctx, "import failed", logger.String("email", u.Email), logger.Error(err))
			}
			return
		}
		mu.Lock()
		stats.CalendarsImported++
		stats.EntriesQueued += summary.Queued
		stats.EntriesDuplicate += summary.Duplicates
		mu.Unlock()
	})
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d calendars could not be imported", n, len(fx.Users))
	}
	return ctx.Err()
}

type serviceStats struct {
	QueueLength      *int  `json:"queueLength"`
	ImportsProcessed int64 `json:"importsProcessed"`
}

func readStats(ctx context.Context, client *HTTPClient) (serviceStats, error) {
	var s serviceStats
	resp, err := client.Get(ctx, "/stats")
	if err != nil {
		return s, err
	}
	if resp.Status != http.StatusOK {
		return s, fmt.Errorf("stats returned status %d", resp.Status)
	}
	return s, resp.Decode(&s)
}

func processedImports(ctx context.Context, client *HTTPClient) (int64, error) {
	s, err := readStats(ctx, client)
	return s.ImportsProcessed, err
}

// waitForImports polls /stats until the import queue is empty and the
// workers have handled at least target entries in total.
func waitForImports(ctx context.Context, client *HTTPClient, timeout time.Duration, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		s, err := readStats(ctx, client)
		if err == nil && s.QueueLength != nil && *s.QueueLength == 0 && s.ImportsProcessed >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runSearches(ctx context.Context, cfg *Config, client *HTTPClient, fx *Fixture, stats *Stats) []Violation {
	log := logger.Named("loadtest")
	var (
		mu         sync.Mutex
		violations []Violation
	)
	forEach(ctx, len(fx.Groups), cfg.Workers, func(ctx context.Context, i int) {
		group := make([]*User, len(fx.Groups[i]))
		emails := make([]string, len(group))
		for j, idx := range fx.Groups[i] {
			group[j] = fx.Users[idx]
			emails[j] = group[j].Email
		}
		query := map[string]any{
			"participants":     emails,
			"duration_minutes": cfg.Duration,
			"start_date":       fx.StartDate,
			"end_date":         fx.EndDate,
		}
		resp, err := send(ctx, stats, &mu, func() (Response, error) {
			return client.PostJSON(ctx, "/meetings/search", query)
		})
		var body struct {
			Slots map[string][]Slot `json:"slots"`
		}
		if err == nil && resp.Status == http.StatusOK {
			err = resp.Decode(&body)
		} else if err == nil {
			err = fmt.Errorf("status %d: %s", resp.Status, resp.Body)
		}
		var found []Violation
		slots := 0
		if err == nil {
			for _, s := range body.Slots {
				slots += len(s)
			}
			found, err = Verify(group, body.Slots)
		}

		mu.Lock()
		defer mu.Unlock()
		stats.Searches++
		if err != nil {
			stats.SearchesFailed++
			if cfg.Verbose {
				log.Warn(ctx, "search failed", logger.Any("participants", emails), logger.Error(err))
			}
			return
		}
		stats.SlotsReturned += slots
		stats.Violations += len(found)
		violations = append(violations, found...)
	})
	return violations
}

func countBlocks(users []*User) int {
	n := 0
	for _, u := range users {
		n += len(u.Busy)
	}
	return n
}

func saveFixture(filename string, fx *Fixture) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}
	return os.WriteFile(filename, raw, filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, searchesPerSecond float64
	if stats.Searches > 0 {
		successRate = float64(stats.Searches-stats.SearchesFailed) / float64(stats.Searches) * percent
	}
	if stats.Duration > 0 {
		searchesPerSecond = float64(stats.Searches) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("usersRegistered", stats.UsersRegistered),
		logger.Int("calendarsImported", stats.CalendarsImported),
		logger.Int("entriesQueued", stats.EntriesQueued),
		logger.Int("entriesDuplicate", stats.EntriesDuplicate),
		logger.Int("searches", stats.Searches),
		logger.Int("searchesFailed", stats.SearchesFailed),
		logger.Int("slotsReturned", stats.SlotsReturned),
		logger.Int("violations", stats.Violations),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("searchesPerSecond", searchesPerSecond))
}
