package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/huddle/internal/adapters/http/api"
	eventqueue "github.com/okian/huddle/internal/adapters/mq/queue"
	service "github.com/okian/huddle/internal/app"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	slots     map[string][]types.MeetingSlot
	runs      map[string][]types.SlotRun
	searchErr error

	lastQuery service.MeetingQuery
	lastEvent service.NewEvent
	lastOpts  service.ImportOptions
	lastBody  []byte

	conflicts []types.Conflict
	addResult service.AddResult
	recurring types.RecurrenceResult
	deleteErr error
	importErr error
	userErr   error
}

func (m *mockDependencies) FindMeetingTimes(_ context.Context, q service.MeetingQuery) (map[string][]types.MeetingSlot, error) {
	m.lastQuery = q
	return m.slots, m.searchErr
}

func (m *mockDependencies) FindMeetingRuns(_ context.Context, q service.MeetingQuery) (map[string][]types.SlotRun, error) {
	m.lastQuery = q
	return m.runs, m.searchErr
}

func (m *mockDependencies) CheckConflict(_ context.Context, _, _, _, _, _ string) ([]types.Conflict, error) {
	return m.conflicts, nil
}

func (m *mockDependencies) AddEvent(_ context.Context, ev service.NewEvent) (service.AddResult, error) {
	m.lastEvent = ev
	return m.addResult, nil
}

func (m *mockDependencies) AddRecurringEvent(_ context.Context, _ service.RecurringRequest) (types.RecurrenceResult, error) {
	return m.recurring, nil
}

func (m *mockDependencies) DeleteEvent(_ context.Context, _, _ string) error {
	return m.deleteErr
}

func (m *mockDependencies) ListEvents(_ context.Context, userID, _, _ string) ([]model.ScheduleEvent, error) {
	return []model.ScheduleEvent{{ID: "e1", UserID: userID, Title: "Standup", Day: "2025-03-04", Start: "09:00", End: "09:15"}}, nil
}

func (m *mockDependencies) ImportCalendar(_ context.Context, _ string, body []byte, opts service.ImportOptions) (types.ImportSummary, error) {
	m.lastBody = body
	m.lastOpts = opts
	if m.importErr != nil {
		return types.ImportSummary{}, m.importErr
	}
	return types.ImportSummary{BatchID: "b1", Parsed: 2, Queued: 2}, nil
}

func (m *mockDependencies) RegisterUser(_ context.Context, email, name string) (model.User, error) {
	if m.userErr != nil {
		return model.User{}, m.userErr
	}
	return model.User{ID: "u1", Email: email, Name: name}, nil
}

func (m *mockDependencies) SaveMeeting(_ context.Context, _ string, mt model.Meeting) (model.Meeting, error) {
	mt.ID = "m1"
	return mt, nil
}

func (m *mockDependencies) GetStats(_ context.Context) map[string]any {
	return map[string]any{"started": true}
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	opts = append(opts, api.WithClock(func() time.Time { return time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC) }))
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then health answers ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("And stats come from the provider", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("And metrics are exposed in the Prometheus format", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("And the wrong method is rejected", func() {
			w := do(mux, http.MethodGet, "/meetings/search", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestMeetingsSearch(t *testing.T) {
	Convey("Given a search backend with one slot", t, func() {
		deps := &mockDependencies{
			slots: map[string][]types.MeetingSlot{
				"2025-03-04": {{StartISO: "2025-03-04T10:00:00Z", EndISO: "2025-03-04T11:00:00Z"}},
			},
			runs: map[string][]types.SlotRun{
				"2025-03-04": {{FirstStart: "2025-03-04T10:00:00Z", LastStart: "2025-03-04T11:00:00Z", Duration: 60}},
			},
		}
		mux := newMux(deps)
		body := `{"participants":["a@example.com","b@example.com"],"key_participants":["a@example.com"],"duration_minutes":60}`

		Convey("When requesting JSON", func() {
			w := do(mux, http.MethodPost, "/meetings/search", body)

			Convey("Then the slots are returned and the query decoded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"start_time":"2025-03-04T10:00:00Z"`)
				So(deps.lastQuery.DurationMinutes, ShouldEqual, 60)
				So(deps.lastQuery.KeyParticipants, ShouldResemble, []string{"a@example.com"})
			})
		})

		Convey("When requesting runs", func() {
			w := do(mux, http.MethodPost, "/meetings/search?format=runs", body)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"first_start"`)
		})

		Convey("When requesting a calendar", func() {
			w := do(mux, http.MethodPost, "/meetings/search?format=ics&name=Sync", body)

			Convey("Then a tentative VEVENT is returned per slot", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/calendar")
				So(w.Body.String(), ShouldContainSubstring, "BEGIN:VEVENT")
				So(w.Body.String(), ShouldContainSubstring, "STATUS:TENTATIVE")
			})
		})

		Convey("When no day has a feasible slot", func() {
			deps.slots, deps.runs = nil, map[string][]types.SlotRun{}

			Convey("Then the slots key is still present", func() {
				w := do(mux, http.MethodPost, "/meetings/search", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"slots":{}}`)
			})

			Convey("And so is the runs key", func() {
				w := do(mux, http.MethodPost, "/meetings/search?format=runs", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"runs":{}}`)
			})
		})

		Convey("When the format is unknown", func() {
			w := do(mux, http.MethodPost, "/meetings/search?format=xml", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, http.MethodPost, "/meetings/search", `{"people":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When a participant is unknown", func() {
			deps.searchErr = &model.ParticipantNotFoundError{Email: "ghost@example.com"}
			w := do(mux, http.MethodPost, "/meetings/search", body)

			Convey("Then 404 names the participant", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "participant_not_found")
				So(w.Body.String(), ShouldContainSubstring, "ghost@example.com")
			})
		})

		Convey("When the query is invalid", func() {
			deps.searchErr = model.NewValidationError("duration_minutes", "0", "must be positive")
			w := do(mux, http.MethodPost, "/meetings/search", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSchedule(t *testing.T) {
	Convey("Given a schedule backend", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When an event is created", func() {
			deps.addResult = service.AddResult{Created: true, Event: &model.ScheduleEvent{ID: "e2"}}
			w := do(mux, http.MethodPost, "/users/u1/events", `{"title":"Focus","day":"2025-03-04","start":"13:00","end":"14:00"}`)

			Convey("Then 201 is returned and the path user is used", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.lastEvent.UserID, ShouldEqual, "u1")
				So(deps.lastEvent.Title, ShouldEqual, "Focus")
			})
		})

		Convey("When an event is blocked by a conflict", func() {
			deps.addResult = service.AddResult{Conflicts: []types.Conflict{{ID: "e1", Title: "Standup", Start: "09:00", End: "09:15"}}}
			w := do(mux, http.MethodPost, "/users/u1/events", `{"title":"Sync","day":"2025-03-04","start":"09:00","end":"09:30"}`)

			Convey("Then 200 carries the conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"created":false`)
				So(w.Body.String(), ShouldContainSubstring, `"id":"e1"`)
			})
		})

		Convey("When checking a free slot", func() {
			w := do(mux, http.MethodPost, "/users/u1/conflicts", `{"day":"2025-03-04","start":"15:00","end":"16:00"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"has_conflict":false`)
			So(w.Body.String(), ShouldContainSubstring, `"conflicts":[]`)
		})

		Convey("When listing events", func() {
			w := do(mux, http.MethodGet, "/users/u7/events?start_date=2025-03-03", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"user_id":"u7"`)
		})

		Convey("When adding a recurring event", func() {
			deps.recurring = types.RecurrenceResult{RecurringID: "r1", Created: 4, Skipped: []types.SkippedOccurrence{}}
			w := do(mux, http.MethodPost, "/users/u1/events/recurring", `{"title":"Gym","start":"07:00","end":"08:00","rule":{"frequency":"daily","repeat_count":5}}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"recurring_id":"r1"`)
		})

		Convey("When deleting an event", func() {
			w := do(mux, http.MethodDelete, "/users/u1/events/e1", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)

			Convey("And it does not exist", func() {
				deps.deleteErr = service.ErrEventNotFound
				w := do(mux, http.MethodDelete, "/users/u1/events/e9", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})
		})
	})
}

func TestImport(t *testing.T) {
	Convey("Given an import backend", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		cal := "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

		Convey("When a calendar is uploaded with options", func() {
			w := do(mux, http.MethodPost, "/users/u1/import?start_date=2025-03-03&end_date=2025-03-09&force=true", cal)

			Convey("Then the batch is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"batch_id":"b1"`)
				So(string(deps.lastBody), ShouldEqual, cal)
				So(deps.lastOpts, ShouldResemble, service.ImportOptions{StartDate: "2025-03-03", EndDate: "2025-03-09", ForceCreate: true})
			})
		})

		Convey("When force is not a boolean", func() {
			w := do(mux, http.MethodPost, "/users/u1/import?force=maybe", cal)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the import queue is full", func() {
			deps.importErr = eventqueue.ErrFull
			w := do(mux, http.MethodPost, "/users/u1/import", cal)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")
		})
	})
}

func TestUsers(t *testing.T) {
	Convey("Given a user backend", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When registering a user", func() {
			w := do(mux, http.MethodPost, "/users", `{"email":"a@example.com","name":"Ada"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"email":"a@example.com"`)
		})

		Convey("When the email is taken", func() {
			deps.userErr = service.ErrUserExists
			w := do(mux, http.MethodPost, "/users", `{"email":"a@example.com"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When saving a meeting", func() {
			w := do(mux, http.MethodPost, "/users/u1/meetings", `{"title":"Review","start_time":"2025-03-04T10:00:00Z","end_time":"2025-03-04T11:00:00Z"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"id":"m1"`)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server limited to a burst of one", t, func() {
		mux := newMux(&mockDependencies{}, api.WithRateLimit(0.001, 1))

		Convey("Then the second business request is rejected", func() {
			first := do(mux, http.MethodGet, "/users/u1/events", "")
			second := do(mux, http.MethodGet, "/users/u1/events", "")
			So(first.Code, ShouldEqual, http.StatusOK)
			So(second.Code, ShouldEqual, http.StatusTooManyRequests)
			So(second.Header().Get("Retry-After"), ShouldEqual, "1")
			So(errorCode(second), ShouldEqual, "rate_limited")
		})

		Convey("And health checks are never limited", func() {
			for range 3 {
				So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			}
		})
	})
}
