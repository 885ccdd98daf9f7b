package api

import (
	"context"
	"net/http"

	service "github.com/okian/huddle/internal/app"
	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/types"
)

// ScheduleDependencies defines the dependencies needed by the schedule handler.
type ScheduleDependencies interface {
	CheckConflict(ctx context.Context, userID, day, start, end, excludeID string) ([]types.Conflict, error)
	AddEvent(ctx context.Context, ev service.NewEvent) (service.AddResult, error)
	AddRecurringEvent(ctx context.Context, req service.RecurringRequest) (types.RecurrenceResult, error)
	DeleteEvent(ctx context.Context, userID, id string) error
	ListEvents(ctx context.Context, userID, startDate, endDate string) ([]model.ScheduleEvent, error)
}

// ScheduleHandler serves a user's personal calendar.
type ScheduleHandler struct {
	deps ScheduleDependencies
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(deps ScheduleDependencies) *ScheduleHandler {
	return &ScheduleHandler{deps: deps}
}

type conflictRequest struct {
	Day       string `json:"day"`
	Start     string `json:"start"`
	End       string `json:"end"`
	ExcludeID string `json:"exclude_id,omitempty"`
}

type conflictResponse struct {
	HasConflict bool             `json:"has_conflict"`
	Conflicts   []types.Conflict `json:"conflicts"`
}

// HandleCheckConflict handles POST /users/{userID}/conflicts.
func (h *ScheduleHandler) HandleCheckConflict(w http.ResponseWriter, r *http.Request) {
	const op = "schedule.conflicts"
	var req conflictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	conflicts, err := h.deps.CheckConflict(r.Context(), r.PathValue("userID"), req.Day, req.Start, req.End, req.ExcludeID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if conflicts == nil {
		conflicts = []types.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflictResponse{HasConflict: len(conflicts) > 0, Conflicts: conflicts})
}

// HandleList handles GET /users/{userID}/events?start_date=&end_date=.
func (h *ScheduleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.deps.ListEvents(r.Context(), r.PathValue("userID"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeError(w, Wrap("schedule.list", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleAdd handles POST /users/{userID}/events. A request blocked by
// conflicts answers 200 with the conflicts instead of 201.
func (h *ScheduleHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	const op = "schedule.add"
	var ev service.NewEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev.UserID = r.PathValue("userID")
	res, err := h.deps.AddEvent(r.Context(), ev)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// HandleAddRecurring handles POST /users/{userID}/events/recurring.
func (h *ScheduleHandler) HandleAddRecurring(w http.ResponseWriter, r *http.Request) {
	const op = "schedule.recurring"
	var req service.RecurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.UserID = r.PathValue("userID")
	res, err := h.deps.AddRecurringEvent(r.Context(), req)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleDelete handles DELETE /users/{userID}/events/{eventID}.
func (h *ScheduleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteEvent(r.Context(), r.PathValue("userID"), r.PathValue("eventID")); err != nil {
		writeError(w, Wrap("schedule.delete", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
