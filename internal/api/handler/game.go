package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/wordbomb/internal/api/apierr"
	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/model"
)

// History page size limits
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Session is the part of the session runner the HTTP handlers use
type Session interface {
	Start(ctx context.Context) error
	Snapshot(ctx context.Context) (model.Snapshot, error)
	History(ctx context.Context, limit int) ([]*model.MatchSummary, error)
	Match(ctx context.Context, id string) (*model.MatchSummary, error)
	Err() error
}

// GameHandler handles game endpoints
type GameHandler struct {
	session Session
}

// NewGameHandler creates a new game handler
func NewGameHandler(session Session) *GameHandler {
	return &GameHandler{session: session}
}

// Start handles POST /api/v1/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Start(r.Context()); err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MessageResponse{Message: "game started"})
}

// State handles GET /api/v1/state
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}

// History handles GET /api/v1/history
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apierr.WriteError(w, apierr.NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	matches, err := h.session.History(r.Context(), limit)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.HistoryFromModel(matches))
}

// Match handles GET /api/v1/history/{id}
func (h *GameHandler) Match(w http.ResponseWriter, r *http.Request) {
	match, err := h.session.Match(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MatchSummaryFromModel(match))
}

// Health handles GET /api/v1/health
func (h *GameHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Err(); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, response.HealthResponse{Status: "faulted", Error: err.Error()})
		return
	}
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
