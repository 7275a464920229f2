package model

import "errors"

// Common errors used across the application
var (
	// Roster errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrNameTaken      = errors.New("name is already taken")
	ErrInvalidName    = errors.New("invalid player name")
	ErrUnknownTeam    = errors.New("unknown team")
	ErrNotJoined      = errors.New("connection has not joined the game")
	ErrPlayerMismatch = errors.New("player does not match connection")

	// Session errors
	ErrAlreadyStarted = errors.New("game has already started")
	ErrNotEnoughTeams = errors.New("not enough teams with players to start")
	ErrNotRunning     = errors.New("game is not running")
	ErrGameInProgress = errors.New("game is in progress")
	ErrNoEligibleTeam = errors.New("no eligible team")
	ErrSessionFaulted = errors.New("session stopped after a fault")
	ErrSessionClosed  = errors.New("session is closed")
	ErrScheduleFailed = errors.New("turn timer could not be scheduled")

	// Dictionary errors
	ErrDictionaryNotLoaded = errors.New("dictionary not loaded")
	ErrNoSequences         = errors.New("no sequences available")

	// History errors
	ErrMatchNotFound = errors.New("match not found")
)
