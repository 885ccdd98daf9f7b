package api

import (
	"context"
	"net/http"

	"github.com/okian/huddle/internal/domain/model"
)

// UserDependencies defines the dependencies needed by the users handler.
type UserDependencies interface {
	RegisterUser(ctx context.Context, email, name string) (model.User, error)
	SaveMeeting(ctx context.Context, userID string, m model.Meeting) (model.Meeting, error)
}

// UsersHandler registers users and records their multi-party meetings.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// HandleRegister handles POST /users.
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "users.register"
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := h.deps.RegisterUser(r.Context(), req.Email, req.Name)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleSaveMeeting handles POST /users/{userID}/meetings.
func (h *UsersHandler) HandleSaveMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "users.meetings"
	var m model.Meeting
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	saved, err := h.deps.SaveMeeting(r.Context(), r.PathValue("userID"), m)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
