package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Roster events
	EventTeams      EventType = "teams"
	EventSpectators EventType = "spectators"
	EventUndecideds EventType = "undecideds"

	// Game events
	EventGameStarted  EventType = "game_started"
	EventTurnChange   EventType = "turn_change"
	EventValidWord    EventType = "valid_word"
	EventInvalidWord  EventType = "invalid_word"
	EventTimeout      EventType = "timeout"
	EventGameOver     EventType = "game_over"
	EventSessionError EventType = "session_error"
)

// Event is an outbound state change. Revision is assigned by the session and
// strictly increases across all events of a session.
type Event struct {
	Type      EventType `json:"type"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"data"`
}

// TeamsPayload contains data for teams events
type TeamsPayload struct {
	Teams []TeamView `json:"teams"`
}

// SpectatorsPayload contains data for spectators events
type SpectatorsPayload struct {
	Spectators []string `json:"spectators"`
}

// UndecidedsPayload contains data for undecideds events
type UndecidedsPayload struct {
	Undecideds []string `json:"undecideds"`
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	Teams []TeamView `json:"teams"`
}

// TurnChangePayload contains data for turn change events.
// Deadline is absolute so renderers can count down regardless of latency.
type TurnChangePayload struct {
	NextTeam   TeamView  `json:"next_team"`
	Sequence   string    `json:"sequence"`
	Deadline   time.Time `json:"deadline"`
	DurationMs int64     `json:"duration_ms"`
}

// WordPayload contains data for valid and invalid word events
type WordPayload struct {
	Player string       `json:"player"`
	Team   TeamView     `json:"team"`
	Word   string       `json:"word"`
	Reason RejectReason `json:"reason,omitempty"`
}

// TimeoutPayload contains data for timeout events
type TimeoutPayload struct {
	Team  TeamView   `json:"team"`
	Teams []TeamView `json:"teams"`
}

// GameOverPayload contains data for game over events
type GameOverPayload struct {
	Team TeamView `json:"team"`
}

// SessionErrorPayload contains data for fatal session errors
type SessionErrorPayload struct {
	Message string `json:"message"`
}
