package ledger

import (
	"strings"

	"github.com/mcoot/wordbomb/internal/model"
)

// Ledger tracks the ordered teams of a session: members, lives and elimination.
// It is not safe for concurrent use; the session owns it exclusively.
type Ledger struct {
	teams []*model.Team
}

// New creates a ledger with the given team order and starting lives
func New(names []string, lives int) *Ledger {
	teams := make([]*model.Team, len(names))
	for i, name := range names {
		teams[i] = &model.Team{Name: name, Lives: lives}
	}
	return &Ledger{teams: teams}
}

// Len returns the number of teams
func (l *Ledger) Len() int {
	return len(l.teams)
}

// Team returns the team at index i
func (l *Ledger) Team(i int) *model.Team {
	return l.teams[i]
}

// Index finds a team by name, ignoring case
func (l *Ledger) Index(name string) (int, bool) {
	for i, t := range l.teams {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return i, true
		}
	}
	return -1, false
}

// Resolve returns the configured spelling of a team name
func (l *Ledger) Resolve(name string) (string, bool) {
	i, ok := l.Index(name)
	if !ok {
		return "", false
	}
	return l.teams[i].Name, true
}

// TeamOf returns the index of the team the player belongs to
func (l *Ledger) TeamOf(id model.PlayerID) (int, bool) {
	for i, t := range l.teams {
		if t.HasMember(id) {
			return i, true
		}
	}
	return -1, false
}

// Next returns the next non-eliminated team strictly after the given index, wrapping around.
// An index of -1 starts the search at the first team.
// Fails with ErrNoEligibleTeam when fewer than two teams are still alive.
func (l *Ledger) Next(after int) (int, error) {
	n := len(l.teams)
	if l.Alive() < 2 {
		return -1, model.ErrNoEligibleTeam
	}
	for k := 1; k <= n; k++ {
		j := ((after+k)%n + n) % n
		if l.teams[j].Alive() {
			return j, nil
		}
	}
	return -1, model.ErrNoEligibleTeam
}

// LoseLife takes one life from the team, clamping at zero. The team is eliminated at zero.
func (l *Ledger) LoseLife(i int) (remaining int, eliminated bool) {
	t := l.teams[i]
	if t.Lives > 0 {
		t.Lives--
	}
	if t.Lives == 0 {
		t.Eliminated = true
	}
	return t.Lives, t.Eliminated
}

// Eliminate removes the team from rotation without touching its lives
func (l *Ledger) Eliminate(i int) {
	l.teams[i].Eliminated = true
}

// Reset restores every team to the given lives. Members are kept.
func (l *Ledger) Reset(lives int) {
	for _, t := range l.teams {
		t.Lives = lives
		t.Eliminated = false
	}
}

// Alive returns the number of teams that are not eliminated
func (l *Ledger) Alive() int {
	n := 0
	for _, t := range l.teams {
		if t.Alive() {
			n++
		}
	}
	return n
}

// Winner returns the only team still alive, if exactly one is
func (l *Ledger) Winner() (int, bool) {
	winner := -1
	for i, t := range l.teams {
		if !t.Alive() {
			continue
		}
		if winner >= 0 {
			return -1, false
		}
		winner = i
	}
	return winner, winner >= 0
}

// NonEmpty returns the number of teams with at least one member
func (l *Ledger) NonEmpty() int {
	n := 0
	for _, t := range l.teams {
		if len(t.Members) > 0 {
			n++
		}
	}
	return n
}

// AddMember appends the player to the end of the named team's turn order
func (l *Ledger) AddMember(team string, id model.PlayerID) (string, error) {
	i, ok := l.Index(team)
	if !ok {
		return "", model.ErrUnknownTeam
	}
	l.teams[i].Members = append(l.teams[i].Members, id)
	return l.teams[i].Name, nil
}

// RemoveMember drops the player from whichever team holds them
func (l *Ledger) RemoveMember(id model.PlayerID) (int, bool) {
	for i, t := range l.teams {
		if t.RemoveMember(id) {
			return i, true
		}
	}
	return -1, false
}

// Snapshot returns the wire form of every team, resolving member IDs with name
func (l *Ledger) Snapshot(name func(model.PlayerID) string) []model.TeamView {
	views := make([]model.TeamView, len(l.teams))
	for i := range l.teams {
		views[i] = l.View(i, name)
	}
	return views
}

// View returns the wire form of one team
func (l *Ledger) View(i int, name func(model.PlayerID) string) model.TeamView {
	t := l.teams[i]
	members := make([]string, len(t.Members))
	for j, id := range t.Members {
		members[j] = name(id)
	}
	return model.TeamView{
		Name:    t.Name,
		Members: members,
		Lives:   t.Lives,
		Alive:   t.Alive(),
	}
}
