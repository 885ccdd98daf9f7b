package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/huddle/internal/adapters/ics"
	"github.com/okian/huddle/internal/adapters/repository"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/types"
	"github.com/okian/huddle/pkg/logger"
	"github.com/okian/huddle/pkg/metrics"
)

// untitledImport is the title given to imported events without a summary.
const untitledImport = "Busy"

// ImportOptions bounds an import to a date range. Empty dates default the
// same way a search does.
type ImportOptions struct {
	StartDate   string
	EndDate     string
	ForceCreate bool
}

// ImportCalendar parses an iCalendar payload and queues every busy block in
// range for userID. Blocks already imported are counted as duplicates and not
// queued again. Entries are written asynchronously by the worker pool; an
// entry that conflicts with an existing event is dropped unless ForceCreate.
func (s *Service) ImportCalendar(ctx context.Context, userID string, body []byte, opts ImportOptions) (types.ImportSummary, error) {
	if !s.isStarted() {
		return types.ImportSummary{}, ErrNotStarted
	}
	from, to, err := s.dateRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return types.ImportSummary{}, err
	}
	parsed, err := ics.Parse(body, from, to, s.loc)
	if err != nil {
		return types.ImportSummary{}, model.InvalidField("body", "", err)
	}

	sum := types.ImportSummary{
		BatchID:  uuid.NewString(),
		Parsed:   len(parsed.Entries),
		Rejected: parsed.Rejected,
	}
	for _, e := range parsed.Entries {
		e.BatchID = sum.BatchID
		e.UserID = userID
		e.ForceCreate = opts.ForceCreate

		key := e.Key()
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordImportDuplicate()
			sum.Duplicates++
			continue
		}
		if err := s.queue.Enqueue(ctx, e); err != nil {
			s.deduper.Unrecord(ctx, key)
			s.logger.Warn(ctx, "import enqueue failed",
				logger.String("batchID", sum.BatchID),
				logger.Int("queued", sum.Queued),
				logger.Error(err),
			)
			return sum, fmt.Errorf("enqueue import: %w", err)
		}
		sum.Queued++
	}

	s.logger.Info(ctx, "calendar import queued",
		logger.String("batchID", sum.BatchID),
		logger.String("userID", userID),
		logger.Int("events", parsed.Events),
		logger.Int("queued", sum.Queued),
		logger.Int("duplicates", sum.Duplicates),
		logger.Int("rejected", sum.Rejected),
	)
	return sum, nil
}

// ImportFeed imports a subscribed feed for the user registered under email.
func (s *Service) ImportFeed(ctx context.Context, email string, body []byte) (types.ImportSummary, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return types.ImportSummary{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return types.ImportSummary{}, fmt.Errorf("resolve %s: %w", email, err)
	}
	return s.ImportCalendar(ctx, u.ID, body, ImportOptions{})
}

// Import writes one queued entry. It is called by the worker pool.
func (s *Service) Import(ctx context.Context, e model.ImportEntry) error {
	span, err := parseSpan(e.Start, e.End)
	if err != nil {
		s.deduper.Unrecord(ctx, e.Key())
		return err
	}

	unlock := s.days.lock(e.UserID, e.Day)
	defer unlock()

	if !e.ForceCreate {
		conflicts, err := s.conflicts(ctx, e.UserID, e.Day, span, "")
		if err != nil {
			s.deduper.Unrecord(ctx, e.Key())
			return err
		}
		if len(conflicts) > 0 {
			// Forget the key so a later import can retry once the way is clear.
			s.deduper.Unrecord(ctx, e.Key())
			metrics.RecordEventSkipped("import_conflict")
			s.logger.Debug(ctx, "imported entry conflicts",
				logger.String("batchID", e.BatchID),
				logger.String("key", e.Key()),
				logger.Int("conflicts", len(conflicts)),
			)
			return nil
		}
	}

	title, err := validTitle(e.Title)
	if err != nil {
		title = truncate(strings.TrimSpace(e.Title), model.MaxTitleLength)
		if title == "" {
			title = untitledImport
		}
	}
	_, err = s.store.SaveEvent(ctx, model.ScheduleEvent{
		UserID:    e.UserID,
		Title:     title,
		Day:       e.Day,
		Start:     e.Start,
		End:       e.End,
		Color:     model.DefaultColor,
		Kind:      model.KindImported,
		SourceUID: e.UID,
	})
	if err != nil {
		s.deduper.Unrecord(ctx, e.Key())
		return fmt.Errorf("save imported event: %w", err)
	}
	metrics.RecordEventCreated(string(model.KindImported))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
