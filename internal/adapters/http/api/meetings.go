package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/huddle/internal/adapters/ics"
	service "github.com/okian/huddle/internal/app"
	"github.com/okian/huddle/internal/domain/types"
)

// MeetingDependencies defines the dependencies needed by the meetings handler.
type MeetingDependencies interface {
	FindMeetingTimes(ctx context.Context, q service.MeetingQuery) (map[string][]types.MeetingSlot, error)
	FindMeetingRuns(ctx context.Context, q service.MeetingQuery) (map[string][]types.SlotRun, error)
}

// MeetingsHandler handles multi-party slot searches.
type MeetingsHandler struct {
	deps MeetingDependencies
	now  func() time.Time
}

// NewMeetingsHandler creates a new meetings handler.
func NewMeetingsHandler(deps MeetingDependencies, now func() time.Time) *MeetingsHandler {
	return &MeetingsHandler{deps: deps, now: now}
}

// An empty search still carries its key: {"slots":{}} or {"runs":{}}.
type slotsResponse struct {
	Slots map[string][]types.MeetingSlot `json:"slots"`
}

type runsResponse struct {
	Runs map[string][]types.SlotRun `json:"runs"`
}

// HandleSearch handles POST /meetings/search.
//
// The default response lists every slot per date. ?format=runs collapses
// consecutive starts into runs and ?format=ics returns the slots as a
// tentative iCalendar feed.
func (h *MeetingsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "meetings.search"
	var q service.MeetingQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "runs":
		runs, err := h.deps.FindMeetingRuns(r.Context(), q)
		if err != nil {
			writeError(w, Wrap(op, err))
			return
		}
		if runs == nil {
			runs = map[string][]types.SlotRun{}
		}
		writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
	case "", "json", "ics":
		slots, err := h.deps.FindMeetingTimes(r.Context(), q)
		if err != nil {
			writeError(w, Wrap(op, err))
			return
		}
		if format == "ics" {
			w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="meeting-slots.ics"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(ics.EncodeSlots(slots, r.URL.Query().Get("name"), h.now())))
			return
		}
		if slots == nil {
			slots = map[string][]types.MeetingSlot{}
		}
		writeJSON(w, http.StatusOK, slotsResponse{Slots: slots})
	default:
		writeError(w, WrapKind(op, ErrBadRequest, errUnknownFormat(format)))
	}
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string {
	return "unknown format " + string(e) + ", expected json, runs or ics"
}
