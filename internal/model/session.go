package model

import "time"

// Phase is the lifecycle stage of a session
type Phase string

const (
	PhaseLobby    Phase = "lobby"    // Players joining and picking teams
	PhaseRunning  Phase = "running"  // Turns in progress
	PhaseFinished Phase = "finished" // Terminal; a new session is needed to play again
)

// RejectReason explains why a submitted word was not accepted
type RejectReason string

const (
	ReasonNone              RejectReason = ""
	ReasonNotYourTurn       RejectReason = "not_your_turn"
	ReasonWrongTeam         RejectReason = "wrong_team"
	ReasonSequenceNotInWord RejectReason = "sequence_not_in_word"
	ReasonWordAlreadyUsed   RejectReason = "word_already_used"
	ReasonNotInDictionary   RejectReason = "not_in_dictionary"
)

// Outcome is the result of a word submission
type Outcome struct {
	Accepted bool
	Reason   RejectReason
	Word     string // Normalized form of the submitted word
}

// SessionSettings are the per-session rules fixed when the session is created
type SessionSettings struct {
	Teams                   []string
	StartingLives           int
	TurnDuration            time.Duration
	MinTeams                int
	RetainSequenceOnTimeout bool
}

// DefaultSessionSettings mirrors the classic two-team game
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		Teams:         []string{"Lato", "Biny"},
		StartingLives: 3,
		TurnDuration:  10 * time.Second,
		MinTeams:      2,
	}
}

// Snapshot is the full state a client needs before applying incremental events.
// Events with Revision greater than the snapshot's apply on top of it.
type Snapshot struct {
	Revision        uint64     `json:"revision"`
	Phase           Phase      `json:"phase"`
	Running         bool       `json:"running"`
	Teams           []TeamView `json:"teams"`
	Spectators      []string   `json:"spectators"`
	Undecideds      []string   `json:"undecideds"`
	TimerLength     float64    `json:"timer_length"` // Seconds
	CurrentSequence string     `json:"current_sequence"`
	CurrentTurn     *TeamView  `json:"current_turn"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	UsedWords       []string   `json:"used_words"`
}

// PlayedWord records an accepted word
type PlayedWord struct {
	Player string `json:"player"`
	Team   string `json:"team"`
	Word   string `json:"word"`
}

// MatchSummary is a lightweight record of a finished match
type MatchSummary struct {
	ID         string       `json:"id"`
	Winner     string       `json:"winner"` // Empty if the session ended on a fault
	Teams      []TeamView   `json:"teams"`
	Words      []PlayedWord `json:"words"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}
