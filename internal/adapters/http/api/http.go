// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/huddle/pkg/logger"
)

// maxJSONBody bounds request bodies decoded as JSON.
const maxJSONBody = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MeetingDependencies
	ScheduleDependencies
	ImportDependencies
	UserDependencies
	StatsProvider
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimit limits the business routes to rps requests per second with
// the given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock stamped on exported calendars.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	meetingsHandler *MeetingsHandler
	scheduleHandler *ScheduleHandler
	importHandler   *ImportHandler
	usersHandler    *UsersHandler

	limiter *rate.Limiter
	logger  logger.Logger
	now     func() time.Time
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.meetingsHandler = NewMeetingsHandler(deps, s.now)
	s.scheduleHandler = NewScheduleHandler(deps)
	s.importHandler = NewImportHandler(deps)
	s.usersHandler = NewUsersHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	s.handle(mux, "POST /meetings/search", "meetings_search", s.meetingsHandler.HandleSearch)
	s.handle(mux, "POST /users", "users", s.usersHandler.HandleRegister)
	s.handle(mux, "POST /users/{userID}/meetings", "user_meetings", s.usersHandler.HandleSaveMeeting)
	s.handle(mux, "POST /users/{userID}/conflicts", "conflicts", s.scheduleHandler.HandleCheckConflict)
	s.handle(mux, "GET /users/{userID}/events", "events", s.scheduleHandler.HandleList)
	s.handle(mux, "POST /users/{userID}/events", "events", s.scheduleHandler.HandleAdd)
	s.handle(mux, "POST /users/{userID}/events/recurring", "events_recurring", s.scheduleHandler.HandleAddRecurring)
	s.handle(mux, "DELETE /users/{userID}/events/{eventID}", "event", s.scheduleHandler.HandleDelete)
	s.handle(mux, "POST /users/{userID}/import", "import", s.importHandler.HandleImport)
}

func (s *Server) handle(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, MetricsMiddleware(RateLimitMiddleware(s.logged(h), s.limiter, endpoint), endpoint))
}

// logged reports server-side failures; client errors are left to metrics.
func (s *Server) logged(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h(rw, r)
		if rw.statusCode >= http.StatusInternalServerError {
			s.logger.Error(r.Context(), "request failed",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", rw.statusCode),
			)
		}
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}
