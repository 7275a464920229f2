package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/wordbomb/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes, shared by HTTP bodies and websocket error frames
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidName    = "INVALID_NAME"
	CodeNameTaken      = "NAME_TAKEN"
	CodeUnknownTeam    = "UNKNOWN_TEAM"
	CodePlayerNotFound = "PLAYER_NOT_FOUND"
	CodeNotJoined      = "NOT_JOINED"
	CodePlayerMismatch = "PLAYER_MISMATCH"
	CodeAlreadyStarted = "ALREADY_STARTED"
	CodeNotEnoughTeams = "NOT_ENOUGH_TEAMS"
	CodeNotRunning     = "NOT_RUNNING"
	CodeGameInProgress = "GAME_IN_PROGRESS"
	CodeSessionFaulted = "SESSION_FAULTED"
	CodeSessionClosed  = "SESSION_CLOSED"
	CodeMatchNotFound  = "MATCH_NOT_FOUND"
	CodeTimeout        = "TIMEOUT"
	CodeInternalError  = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	status, apiErr := Resolve(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}

// Resolve maps an error to its HTTP status and wire form
func Resolve(err error) (int, APIError) {
	he := toHTTPError(err)
	return he.status, he.apiError
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Roster errors
	case errors.Is(err, model.ErrInvalidName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidName, "Name must be 1 to 32 characters"}}
	case errors.Is(err, model.ErrNameTaken):
		return &httpError{http.StatusConflict, APIError{CodeNameTaken, "Name is already taken"}}
	case errors.Is(err, model.ErrUnknownTeam):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownTeam, "Unknown team"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrNotJoined):
		return &httpError{http.StatusForbidden, APIError{CodeNotJoined, "Join the game first"}}
	case errors.Is(err, model.ErrPlayerMismatch):
		return &httpError{http.StatusForbidden, APIError{CodePlayerMismatch, "Player does not belong to this connection"}}

	// Session errors
	case errors.Is(err, model.ErrAlreadyStarted):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyStarted, "Game has already started"}}
	case errors.Is(err, model.ErrNotEnoughTeams):
		return &httpError{http.StatusConflict, APIError{CodeNotEnoughTeams, "Not enough teams with players to start"}}
	case errors.Is(err, model.ErrNotRunning):
		return &httpError{http.StatusConflict, APIError{CodeNotRunning, "Game is not running"}}
	case errors.Is(err, model.ErrGameInProgress):
		return &httpError{http.StatusConflict, APIError{CodeGameInProgress, "Game is in progress"}}
	case errors.Is(err, model.ErrSessionFaulted), errors.Is(err, model.ErrScheduleFailed),
		errors.Is(err, model.ErrNoEligibleTeam), errors.Is(err, model.ErrNoSequences):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeSessionFaulted, "Session stopped after a fault"}}
	case errors.Is(err, model.ErrSessionClosed):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeSessionClosed, "Session is closed"}}

	// History errors
	case errors.Is(err, model.ErrMatchNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeMatchNotFound, "Match not found"}}

	case errors.Is(err, context.DeadlineExceeded):
		return &httpError{http.StatusGatewayTimeout, APIError{CodeTimeout, "Request timed out"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
