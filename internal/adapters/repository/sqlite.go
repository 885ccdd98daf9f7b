package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/pkg/metrics"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const eventColumns = `id, user_id, title, day, start_time, end_time, color, kind, recurring_id, source_uid, created_at`

// SQLiteStore persists state in a single SQLite file.
type SQLiteStore struct {
	settings
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded schema.
func OpenSQLite(path string, busyTimeout time.Duration, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &SQLiteStore{settings: defaultSettings(), db: db}
	for _, opt := range opts {
		opt(&s.settings)
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, name string) (model.User, error) {
	defer observe("create_user", time.Now())
	u := model.User{ID: s.newID(), Email: strings.TrimSpace(email), Name: name}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, email, email_key, name, created_at) VALUES(?,?,?,?,?)`,
		u.ID, u.Email, normaliseEmail(email), nullStr(name), s.now().UTC().Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return model.User{}, ErrDuplicate
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	defer observe("user_by_email", time.Now())
	var (
		u    model.User
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name FROM users WHERE email_key = ?`, normaliseEmail(email),
	).Scan(&u.ID, &u.Email, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Name = name.String
	return u, nil
}

func (s *SQLiteStore) SaveMeeting(ctx context.Context, userID string, m model.Meeting) (model.Meeting, error) {
	defer observe("save_meeting", time.Now())
	start, end, err := meetingBounds(m)
	if err != nil {
		return model.Meeting{}, err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meetings(id, user_id, title, start_iso, end_iso, start_unix, end_unix) VALUES(?,?,?,?,?,?,?)`,
		m.ID, userID, nullStr(m.Title), m.StartISO, m.EndISO, start.Unix(), end.Unix(),
	)
	if isUniqueViolation(err) {
		return model.Meeting{}, ErrDuplicate
	}
	if err != nil {
		return model.Meeting{}, err
	}
	return m, nil
}

func (s *SQLiteStore) Meetings(ctx context.Context, userID string, from, to time.Time) ([]model.Meeting, error) {
	defer observe("meetings", time.Now())
	lo, hi := rangeBounds(from, to)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_iso, end_iso FROM meetings
		 WHERE user_id = ? AND start_unix < ? AND end_unix > ?
		 ORDER BY start_unix, id`,
		userID, hi.Unix(), lo.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Meeting
	for rows.Next() {
		var (
			m     model.Meeting
			title sql.NullString
		)
		if err := rows.Scan(&m.ID, &title, &m.StartISO, &m.EndISO); err != nil {
			return nil, err
		}
		m.Title = title.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EventsInRange(ctx context.Context, userID string, from, to time.Time) ([]model.ScheduleEvent, error) {
	defer observe("events_in_range", time.Now())
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM schedule_events
		 WHERE user_id = ? AND day >= ? AND day <= ?
		 ORDER BY day, start_time, id`,
		userID, model.FormatDate(from), model.FormatDate(to),
	)
}

func (s *SQLiteStore) EventsForDay(ctx context.Context, userID, day, excludeID string) ([]model.ScheduleEvent, error) {
	defer observe("events_for_day", time.Now())
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM schedule_events
		 WHERE user_id = ? AND day = ? AND (? = '' OR id <> ?)
		 ORDER BY start_time, id`,
		userID, day, excludeID, excludeID,
	)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.ScheduleEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (model.ScheduleEvent, error) {
	var (
		ev          model.ScheduleEvent
		kind        string
		recurringID sql.NullString
		sourceUID   sql.NullString
		createdAt   string
	)
	err := r.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.Day, &ev.Start, &ev.End, &ev.Color,
		&kind, &recurringID, &sourceUID, &createdAt)
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	ev.Kind = model.EventKind(kind)
	ev.RecurringID = recurringID.String
	ev.SourceUID = sourceUID.String
	ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return ev, nil
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, ev model.ScheduleEvent) (model.ScheduleEvent, error) {
	defer observe("save_event", time.Now())
	if ev.ID == "" {
		ev.ID = s.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_events(`+eventColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.UserID, ev.Title, ev.Day, ev.Start, ev.End, ev.Color, string(ev.Kind),
		nullStr(ev.RecurringID), nullStr(ev.SourceUID), ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return model.ScheduleEvent{}, ErrDuplicate
	}
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	return ev, nil
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, userID, id string) (model.ScheduleEvent, error) {
	defer observe("delete_event", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	defer func() { _ = tx.Rollback() }()

	ev, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM schedule_events WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleEvent{}, ErrNotFound
	}
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_events WHERE id = ?`, id); err != nil {
		return model.ScheduleEvent{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.ScheduleEvent{}, err
	}
	return ev, nil
}

func (s *SQLiteStore) SaveRecurrence(ctx context.Context, rec model.RecurrenceRecord) (string, error) {
	defer observe("save_recurrence", time.Now())
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	var custom any
	if len(rec.Rule.CustomDates) > 0 {
		b, err := json.Marshal(rec.Rule.CustomDates)
		if err != nil {
			return "", err
		}
		custom = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_events(id, user_id, title, start_time, end_time, frequency, custom_dates, repeat_count, color, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.UserID, rec.Title, rec.Start, rec.End, string(rec.Rule.Frequency), custom,
		rec.Rule.RepeatCount, rec.Color, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (int, int, error) {
	var users, events int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM schedule_events)`,
	).Scan(&users, &events)
	return users, events, err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
