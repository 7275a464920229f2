package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/wordbomb/internal/dependencies/clock"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/dictionary"
	"github.com/mcoot/wordbomb/internal/services/ledger"
	"github.com/mcoot/wordbomb/internal/services/roster"
	"github.com/mcoot/wordbomb/internal/services/turntimer"
)

// oracleTimeout bounds a single dictionary lookup
const oracleTimeout = 2 * time.Second

// SequenceSource hands out required sequences that still have an unused word
type SequenceSource interface {
	Next(used map[string]struct{}) (string, error)
	Live(seq string, used map[string]struct{}) bool
}

// Dependencies holds the collaborators a Machine needs
type Dependencies struct {
	Oracle    dictionary.Oracle
	Sequences SequenceSource
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Machine is the authoritative state of one session. Every operation returns the events it
// produced, in order, with revisions already assigned.
// It is not safe for concurrent use; Runner serializes access to it.
type Machine struct {
	settings  model.SessionSettings
	oracle    dictionary.Oracle
	sequences SequenceSource
	clock     clock.Clock
	logger    *slog.Logger
	timer     *turntimer.Timer
	onFire    turntimer.FireFunc

	id       string
	phase    model.Phase
	revision uint64
	ledger   *ledger.Ledger
	roster   *roster.Roster
	fault    error

	used      map[string]struct{}
	usedOrder []string
	played    []model.PlayedWord

	current  int
	sequence string
	handle   turntimer.Handle
	deadline time.Time
	failed   map[int]struct{} // Teams that timed out on the current sequence

	startedAt  time.Time
	finishedAt time.Time
}

// NewMachine creates a session in the lobby phase
func NewMachine(settings model.SessionSettings, deps Dependencies) *Machine {
	logger := deps.Logger.With(slog.String("component", "session"))
	teams := ledger.New(settings.Teams, settings.StartingLives)
	m := &Machine{
		settings:  settings,
		oracle:    deps.Oracle,
		sequences: deps.Sequences,
		clock:     deps.Clock,
		logger:    logger,
		timer:     turntimer.New(deps.Clock, deps.Logger),
		ledger:    teams,
		roster:    roster.New(teams, deps.Clock, deps.Logger),
	}
	m.reset()
	return m
}

func (m *Machine) reset() {
	m.id = uuid.NewString()
	m.phase = model.PhaseLobby
	m.fault = nil
	m.used = make(map[string]struct{})
	m.usedOrder = nil
	m.played = nil
	m.current = -1
	m.sequence = ""
	m.handle = turntimer.Handle{}
	m.deadline = time.Time{}
	m.failed = make(map[int]struct{})
	m.startedAt = time.Time{}
	m.finishedAt = time.Time{}
}

// OnFire sets the callback the turn timer invokes when a deadline passes.
// The callback must route the handle back into OnTimeout on the serializing goroutine.
func (m *Machine) OnFire(f turntimer.FireFunc) {
	m.onFire = f
}

// Rematch returns a fresh session that keeps the roster and team membership of a
// finished one. Lives are reset and the used-word set is empty. Revisions keep counting up.
func (m *Machine) Rematch() *Machine {
	m.timer.Disarm()
	m.ledger.Reset(m.settings.StartingLives)

	next := *m
	next.reset()
	next.logger.Info("session recreated for rematch", slog.String("session_id", next.id))
	return &next
}

// ID returns the session identifier
func (m *Machine) ID() string {
	return m.id
}

// Phase returns the current phase
func (m *Machine) Phase() model.Phase {
	return m.phase
}

// Revision returns the revision of the last emitted event
func (m *Machine) Revision() uint64 {
	return m.revision
}

// Fault returns the error that stopped the session, if any
func (m *Machine) Fault() error {
	return m.fault
}

// Lookup finds a connected player by display name
func (m *Machine) Lookup(name string) (model.Player, bool) {
	p, ok := m.roster.Lookup(name)
	if !ok {
		return model.Player{}, false
	}
	return *p, true
}

// Join registers a new unassigned player
func (m *Machine) Join(name string) (model.Player, []model.Event, error) {
	p, err := m.roster.Join(name)
	if err != nil {
		return model.Player{}, nil, err
	}
	return *p, []model.Event{m.undecidedsEvent()}, nil
}

// Assign moves a player to a team or to the spectators.
// Joining a team is refused while a game is running. Moving to the spectators mid-game
// takes the player out of their team the same way leaving does.
func (m *Machine) Assign(id model.PlayerID, target string) ([]model.Event, error) {
	player, ok := m.roster.Get(id)
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	toSpectators := strings.EqualFold(strings.TrimSpace(target), model.SpectatorTarget)
	if m.phase == model.PhaseRunning && !toSpectators {
		return nil, model.ErrGameInProgress
	}

	teamIdx := -1
	if player.Assignment.IsTeam() {
		teamIdx, _ = m.ledger.TeamOf(id)
	}

	prev, err := m.roster.Assign(id, target)
	if err != nil {
		return nil, err
	}
	if prev == player.Assignment {
		return nil, nil
	}

	events := m.rosterEvents(prev, player.Assignment)
	if teamIdx >= 0 {
		events = append(events, m.afterDeparture(teamIdx)...)
	}
	return events, nil
}

// Leave removes a player. If they were the last member of the team holding the turn,
// that team times out immediately.
func (m *Machine) Leave(id model.PlayerID) ([]model.Event, error) {
	teamIdx, onTeam := m.ledger.TeamOf(id)

	player, err := m.roster.Leave(id)
	if err != nil {
		return nil, err
	}

	events := m.rosterEvents(player.Assignment, model.Assignment{})
	if onTeam {
		events = append(events, m.afterDeparture(teamIdx)...)
	}
	return events, nil
}

func (m *Machine) afterDeparture(teamIdx int) []model.Event {
	if m.phase != model.PhaseRunning || teamIdx != m.current {
		return nil
	}
	if len(m.ledger.Team(teamIdx).Members) > 0 {
		return nil
	}
	// The timer already fired: its queued timeout will be applied instead
	if !m.timer.Cancel(m.handle) {
		return nil
	}
	m.logger.Info("active team emptied, timing out turn",
		slog.String("team", m.ledger.Team(teamIdx).Name),
	)
	return m.applyTimeout()
}

// Start begins the game. The first team with members takes the first turn.
func (m *Machine) Start() ([]model.Event, error) {
	if m.phase != model.PhaseLobby {
		return nil, model.ErrAlreadyStarted
	}
	minTeams := max(m.settings.MinTeams, 2)
	if m.ledger.NonEmpty() < minTeams {
		return nil, model.ErrNotEnoughTeams
	}

	seq, err := m.sequences.Next(m.used)
	if err != nil {
		return nil, err
	}

	for i := 0; i < m.ledger.Len(); i++ {
		if len(m.ledger.Team(i).Members) == 0 {
			m.ledger.Eliminate(i)
		}
	}
	first, err := m.ledger.Next(-1)
	if err != nil {
		return nil, err
	}

	m.phase = model.PhaseRunning
	m.startedAt = m.clock.Now()
	m.logger.Info("game started",
		slog.String("session_id", m.id),
		slog.Int("teams", m.ledger.Alive()),
		slog.String("first_team", m.ledger.Team(first).Name),
	)

	events := []model.Event{m.event(model.EventGameStarted, model.GameStartedPayload{Teams: m.teams()})}
	return append(events, m.beginTurn(first, seq)...), nil
}

// SubmitWord validates a word from a player. Protocol errors (unknown player, not running)
// are returned as errors. Rule violations are an Outcome with a reason and an invalid_word
// event; they never change turn or timer state.
func (m *Machine) SubmitWord(ctx context.Context, id model.PlayerID, team, word string) (model.Outcome, []model.Event, error) {
	if m.phase != model.PhaseRunning {
		return model.Outcome{}, nil, model.ErrNotRunning
	}
	player, ok := m.roster.Get(id)
	if !ok {
		return model.Outcome{}, nil, model.ErrPlayerNotFound
	}

	normalized := dictionary.Normalize(word)
	teamIdx, onTeam := m.ledger.TeamOf(id)
	if !onTeam || (strings.TrimSpace(team) != "" && !strings.EqualFold(strings.TrimSpace(team), m.ledger.Team(teamIdx).Name)) {
		return m.reject(player, teamIdx, team, normalized, model.ReasonWrongTeam)
	}
	if teamIdx != m.current || !m.timer.Pending(m.handle) {
		return m.reject(player, teamIdx, team, normalized, model.ReasonNotYourTurn)
	}
	if !strings.Contains(normalized, m.sequence) {
		return m.reject(player, teamIdx, team, normalized, model.ReasonSequenceNotInWord)
	}
	if _, dup := m.used[normalized]; dup {
		return m.reject(player, teamIdx, team, normalized, model.ReasonWordAlreadyUsed)
	}
	if !m.inDictionary(ctx, normalized) {
		return m.reject(player, teamIdx, team, normalized, model.ReasonNotInDictionary)
	}

	// Losing this race means the deadline passed first and its timeout is queued
	if !m.timer.Cancel(m.handle) {
		return m.reject(player, teamIdx, team, normalized, model.ReasonNotYourTurn)
	}

	m.used[normalized] = struct{}{}
	m.usedOrder = append(m.usedOrder, normalized)
	m.played = append(m.played, model.PlayedWord{
		Player: player.Name,
		Team:   m.ledger.Team(teamIdx).Name,
		Word:   normalized,
	})
	clear(m.failed)

	events := []model.Event{m.event(model.EventValidWord, model.WordPayload{
		Player: player.Name,
		Team:   m.teamView(teamIdx),
		Word:   normalized,
	})}
	events = append(events, m.advance(teamIdx, "")...)
	return model.Outcome{Accepted: true, Word: normalized}, events, nil
}

func (m *Machine) inDictionary(ctx context.Context, word string) bool {
	ctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	ok, err := m.oracle.Contains(ctx, word)
	if err != nil {
		m.logger.Warn("dictionary lookup failed, rejecting word",
			slog.String("word", word),
			slog.Any("error", err),
		)
		return false
	}
	return ok
}

func (m *Machine) reject(player *model.Player, teamIdx int, claimed, word string, reason model.RejectReason) (model.Outcome, []model.Event, error) {
	view := model.TeamView{Name: strings.TrimSpace(claimed), Members: []string{}}
	if teamIdx >= 0 {
		view = m.teamView(teamIdx)
	}
	m.logger.Debug("word rejected",
		slog.String("player", player.Name),
		slog.String("word", word),
		slog.String("reason", string(reason)),
	)
	event := m.event(model.EventInvalidWord, model.WordPayload{
		Player: player.Name,
		Team:   view,
		Word:   word,
		Reason: reason,
	})
	return model.Outcome{Reason: reason, Word: word}, []model.Event{event}, nil
}

// OnTimeout applies a fired deadline. Handles that no longer belong to the current turn are ignored.
func (m *Machine) OnTimeout(h turntimer.Handle) []model.Event {
	if m.phase != model.PhaseRunning || h != m.handle {
		m.logger.Debug("ignoring stale timeout")
		return nil
	}
	return m.applyTimeout()
}

func (m *Machine) applyTimeout() []model.Event {
	team := m.current
	remaining, eliminated := m.ledger.LoseLife(team)
	m.logger.Info("turn timed out",
		slog.String("team", m.ledger.Team(team).Name),
		slog.Int("lives", remaining),
		slog.Bool("eliminated", eliminated),
	)

	events := []model.Event{m.event(model.EventTimeout, model.TimeoutPayload{
		Team:  m.teamView(team),
		Teams: m.teams(),
	})}

	if winner, ok := m.ledger.Winner(); ok {
		return append(events, m.finish(winner)...)
	}

	keep := ""
	if m.settings.RetainSequenceOnTimeout {
		m.failed[team] = struct{}{}
		if !m.allAliveFailed() && m.sequences.Live(m.sequence, m.used) {
			keep = m.sequence
		}
	}
	if keep == "" {
		clear(m.failed)
	}
	return append(events, m.advance(team, keep)...)
}

func (m *Machine) allAliveFailed() bool {
	for i := 0; i < m.ledger.Len(); i++ {
		if _, failed := m.failed[i]; m.ledger.Team(i).Alive() && !failed {
			return false
		}
	}
	return true
}

// advance hands the turn to the next live team, keeping seq when it is set
func (m *Machine) advance(after int, seq string) []model.Event {
	next, err := m.ledger.Next(after)
	if err != nil {
		if winner, ok := m.ledger.Winner(); ok {
			return m.finish(winner)
		}
		return m.fail(err)
	}
	if seq == "" {
		seq, err = m.sequences.Next(m.used)
		if err != nil {
			return m.fail(err)
		}
	}
	return m.beginTurn(next, seq)
}

func (m *Machine) beginTurn(team int, seq string) []model.Event {
	d := m.settings.TurnDuration
	h, err := m.timer.Arm(d, m.onFire)
	if err != nil {
		return m.fail(err)
	}

	m.current = team
	m.sequence = seq
	m.handle = h
	m.deadline = m.clock.Now().Add(d)

	return []model.Event{m.event(model.EventTurnChange, model.TurnChangePayload{
		NextTeam:   m.teamView(team),
		Sequence:   seq,
		Deadline:   m.deadline,
		DurationMs: d.Milliseconds(),
	})}
}

func (m *Machine) finish(winner int) []model.Event {
	m.timer.Disarm()
	m.phase = model.PhaseFinished
	m.finishedAt = m.clock.Now()
	m.handle = turntimer.Handle{}
	m.logger.Info("game over",
		slog.String("session_id", m.id),
		slog.String("winner", m.ledger.Team(winner).Name),
		slog.Int("words", len(m.played)),
	)
	return []model.Event{m.event(model.EventGameOver, model.GameOverPayload{Team: m.teamView(winner)})}
}

// Fail stops the session on an unrecoverable fault and reports it to clients
func (m *Machine) Fail(err error) []model.Event {
	if m.fault != nil {
		return nil
	}
	return m.fail(err)
}

func (m *Machine) fail(err error) []model.Event {
	m.timer.Disarm()
	m.fault = err
	m.phase = model.PhaseFinished
	m.finishedAt = m.clock.Now()
	m.handle = turntimer.Handle{}
	m.logger.Error("session fault, game stopped",
		slog.String("session_id", m.id),
		slog.String("alarm", "session_fault"),
		slog.Any("error", err),
	)
	return []model.Event{m.event(model.EventSessionError, model.SessionErrorPayload{Message: err.Error()})}
}

// CheckOverdue faults the session when the current turn's deadline passed more than grace
// ago without a timeout being applied
func (m *Machine) CheckOverdue(now time.Time, grace time.Duration) []model.Event {
	if m.phase != model.PhaseRunning || m.deadline.IsZero() {
		return nil
	}
	overdue := now.Sub(m.deadline)
	if overdue <= grace {
		return nil
	}
	return m.fail(fmt.Errorf("%w: turn deadline overdue by %s", model.ErrScheduleFailed, overdue))
}

// Snapshot returns the full state at the current revision
func (m *Machine) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		Revision:        m.revision,
		Phase:           m.phase,
		Running:         m.phase == model.PhaseRunning,
		Teams:           m.teams(),
		Spectators:      m.roster.Spectators(),
		Undecideds:      m.roster.Undecideds(),
		TimerLength:     m.settings.TurnDuration.Seconds(),
		CurrentSequence: m.sequence,
		UsedWords:       append([]string{}, m.usedOrder...),
	}
	if m.phase == model.PhaseRunning {
		view := m.teamView(m.current)
		deadline := m.deadline
		snap.CurrentTurn = &view
		snap.Deadline = &deadline
	}
	return snap
}

// Summary returns the match record. Winner is empty unless the game ended normally.
func (m *Machine) Summary() model.MatchSummary {
	summary := model.MatchSummary{
		ID:         m.id,
		Teams:      m.teams(),
		Words:      append([]model.PlayedWord{}, m.played...),
		StartedAt:  m.startedAt,
		FinishedAt: m.finishedAt,
	}
	if winner, ok := m.ledger.Winner(); ok && m.fault == nil {
		summary.Winner = m.ledger.Team(winner).Name
	}
	return summary
}

func (m *Machine) rosterEvents(from, to model.Assignment) []model.Event {
	touched := func(k model.AssignmentKind) bool { return from.Kind == k || to.Kind == k }

	var events []model.Event
	if touched(model.AssignmentTeam) {
		events = append(events, m.event(model.EventTeams, model.TeamsPayload{Teams: m.teams()}))
	}
	if touched(model.AssignmentSpectator) {
		events = append(events, m.event(model.EventSpectators, model.SpectatorsPayload{Spectators: m.roster.Spectators()}))
	}
	if touched(model.AssignmentUnassigned) {
		events = append(events, m.undecidedsEvent())
	}
	return events
}

func (m *Machine) undecidedsEvent() model.Event {
	return m.event(model.EventUndecideds, model.UndecidedsPayload{Undecideds: m.roster.Undecideds()})
}

func (m *Machine) event(t model.EventType, payload any) model.Event {
	m.revision++
	return model.Event{
		Type:      t,
		Revision:  m.revision,
		Timestamp: m.clock.Now(),
		Payload:   payload,
	}
}

func (m *Machine) teams() []model.TeamView {
	return m.ledger.Snapshot(m.roster.Name)
}

func (m *Machine) teamView(i int) model.TeamView {
	return m.ledger.View(i, m.roster.Name)
}

// IsProtocolError reports whether err is a caller mistake rather than a session fault
func IsProtocolError(err error) bool {
	for _, target := range []error{
		model.ErrPlayerNotFound, model.ErrNameTaken, model.ErrInvalidName, model.ErrUnknownTeam,
		model.ErrNotJoined, model.ErrPlayerMismatch, model.ErrAlreadyStarted, model.ErrNotEnoughTeams, model.ErrNotRunning, model.ErrGameInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
