package roster

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/mcoot/wordbomb/internal/dependencies/clock"
	"github.com/mcoot/wordbomb/internal/model"
)

// MaxNameLength is the longest display name accepted, in runes
const MaxNameLength = 32

// Teams is the team membership the roster keeps in step with player assignments
type Teams interface {
	Resolve(name string) (string, bool)
	AddMember(team string, id model.PlayerID) (string, error)
	RemoveMember(id model.PlayerID) (int, bool)
}

// Roster maps display names to players and tracks where each player sits.
// Every player is in exactly one of: a team, the spectators, the unassigned pool.
// It is not safe for concurrent use; the session owns it exclusively.
type Roster struct {
	teams  Teams
	clock  clock.Clock
	logger *slog.Logger

	players map[model.PlayerID]*model.Player
	byName  map[string]model.PlayerID
	order   []model.PlayerID
}

// New creates a new Roster
func New(teams Teams, clk clock.Clock, logger *slog.Logger) *Roster {
	return &Roster{
		teams:   teams,
		clock:   clk,
		logger:  logger.With(slog.String("component", "roster")),
		players: make(map[model.PlayerID]*model.Player),
		byName:  make(map[string]model.PlayerID),
	}
}

// Join registers a new unassigned player
func (r *Roster) Join(name string) (*model.Player, error) {
	display, key, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, exists := r.byName[key]; exists {
		return nil, model.ErrNameTaken
	}

	player := &model.Player{
		ID:         model.PlayerID(uuid.NewString()),
		Name:       display,
		Assignment: model.Unassigned(),
		JoinedAt:   r.clock.Now(),
	}
	r.players[player.ID] = player
	r.byName[key] = player.ID
	r.order = append(r.order, player.ID)

	r.logger.Info("player joined",
		slog.String("player_id", string(player.ID)),
		slog.String("name", player.Name),
	)
	return player, nil
}

// Assign moves a player to a team or, with model.SpectatorTarget, to the spectators.
// A team move appends the player to the end of that team. Moving to the team the player
// is already on keeps their position. Returns the previous assignment.
func (r *Roster) Assign(id model.PlayerID, target string) (model.Assignment, error) {
	player, ok := r.players[id]
	if !ok {
		return model.Assignment{}, model.ErrPlayerNotFound
	}
	prev := player.Assignment

	var next model.Assignment
	if strings.EqualFold(strings.TrimSpace(target), model.SpectatorTarget) {
		next = model.Spectating()
	} else {
		team, ok := r.teams.Resolve(target)
		if !ok {
			return prev, model.ErrUnknownTeam
		}
		next = model.OnTeam(team)
	}
	if next == prev {
		return prev, nil
	}

	if prev.IsTeam() {
		r.teams.RemoveMember(id)
	}
	if next.IsTeam() {
		if _, err := r.teams.AddMember(next.Team, id); err != nil {
			return prev, err
		}
	}
	player.Assignment = next

	r.logger.Info("player assigned",
		slog.String("player_id", string(id)),
		slog.String("from", describe(prev)),
		slog.String("to", describe(next)),
	)
	return prev, nil
}

// Leave removes the player from the roster and from any team
func (r *Roster) Leave(id model.PlayerID) (*model.Player, error) {
	player, ok := r.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	if player.Assignment.IsTeam() {
		r.teams.RemoveMember(id)
	}

	_, key, _ := normalizeName(player.Name)
	delete(r.byName, key)
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("player left",
		slog.String("player_id", string(id)),
		slog.String("name", player.Name),
	)
	return player, nil
}

// Get returns the player with the given ID
func (r *Roster) Get(id model.PlayerID) (*model.Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Lookup finds a player by display name, ignoring case and surrounding space
func (r *Roster) Lookup(name string) (*model.Player, bool) {
	_, key, err := normalizeName(name)
	if err != nil {
		return nil, false
	}
	id, ok := r.byName[key]
	if !ok {
		return nil, false
	}
	return r.players[id], true
}

// Name returns the display name for a player ID, or the ID itself if unknown
func (r *Roster) Name(id model.PlayerID) string {
	if p, ok := r.players[id]; ok {
		return p.Name
	}
	return string(id)
}

// Len returns the number of connected players
func (r *Roster) Len() int {
	return len(r.players)
}

// Spectators returns spectator names in join order
func (r *Roster) Spectators() []string {
	return r.namesWith(model.AssignmentSpectator)
}

// Undecideds returns unassigned player names in join order
func (r *Roster) Undecideds() []string {
	return r.namesWith(model.AssignmentUnassigned)
}

func (r *Roster) namesWith(kind model.AssignmentKind) []string {
	names := []string{}
	for _, id := range r.order {
		if p := r.players[id]; p.Assignment.Kind == kind {
			names = append(names, p.Name)
		}
	}
	return names
}

func normalizeName(name string) (display, key string, err error) {
	display = strings.TrimSpace(name)
	if display == "" || utf8.RuneCountInString(display) > MaxNameLength {
		return "", "", model.ErrInvalidName
	}
	return display, cases.Fold().String(display), nil
}

func describe(a model.Assignment) string {
	if a.IsTeam() {
		return a.Team
	}
	return string(a.Kind)
}
