package model

import "time"

// PlayerID uniquely identifies a connected player
type PlayerID string

// AssignmentKind says which container currently holds a player
type AssignmentKind string

const (
	AssignmentUnassigned AssignmentKind = "unassigned"
	AssignmentSpectator  AssignmentKind = "spectator"
	AssignmentTeam       AssignmentKind = "team"
)

// SpectatorTarget is the team name clients send to move into the spectator pool
const SpectatorTarget = "spectator"

// Assignment is where a player currently sits
type Assignment struct {
	Kind AssignmentKind
	Team string // Only set when Kind is AssignmentTeam
}

// Unassigned returns the assignment of a freshly joined player
func Unassigned() Assignment {
	return Assignment{Kind: AssignmentUnassigned}
}

// Spectating returns the spectator assignment
func Spectating() Assignment {
	return Assignment{Kind: AssignmentSpectator}
}

// OnTeam returns an assignment to the named team
func OnTeam(team string) Assignment {
	return Assignment{Kind: AssignmentTeam, Team: team}
}

// IsTeam reports whether the assignment is a team
func (a Assignment) IsTeam() bool {
	return a.Kind == AssignmentTeam
}

// Player represents a connected participant
type Player struct {
	ID         PlayerID
	Name       string // Display name, unique among connected players
	Assignment Assignment
	JoinedAt   time.Time
}
