package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	service "github.com/okian/huddle/internal/app"
	"github.com/okian/huddle/internal/domain/types"
)

// maxCalendarBody bounds uploaded iCalendar payloads.
const maxCalendarBody = 10 << 20

var errCalendarTooLarge = errors.New("calendar exceeds 10MB")

// ImportDependencies defines the dependencies needed by the import handler.
type ImportDependencies interface {
	ImportCalendar(ctx context.Context, userID string, body []byte, opts service.ImportOptions) (types.ImportSummary, error)
}

// ImportHandler accepts iCalendar uploads.
type ImportHandler struct {
	deps ImportDependencies
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps ImportDependencies) *ImportHandler {
	return &ImportHandler{deps: deps}
}

// HandleImport handles POST /users/{userID}/import. The body is the raw
// calendar; start_date, end_date and force are read from the query. Entries
// are written asynchronously, so success answers 202 with the batch summary.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "import"
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCalendarBody+1))
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(body) > maxCalendarBody {
		writeError(w, WrapKind(op, ErrBadRequest, errCalendarTooLarge))
		return
	}

	q := r.URL.Query()
	opts := service.ImportOptions{StartDate: q.Get("start_date"), EndDate: q.Get("end_date")}
	if f := q.Get("force"); f != "" {
		force, err := strconv.ParseBool(f)
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		opts.ForceCreate = force
	}

	summary, err := h.deps.ImportCalendar(r.Context(), r.PathValue("userID"), body, opts)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, summary)
}
