package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/dependencies/clock"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/turntimer"
	"github.com/mcoot/wordbomb/internal/storage"
)

// RunnerConfig tunes the serializing loop
type RunnerConfig struct {
	InboxSize        int
	WatchdogInterval time.Duration // Zero disables the watchdog
	WatchdogGrace    time.Duration
	StoreTimeout     time.Duration
}

// DefaultRunnerConfig returns the production defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		InboxSize:        64,
		WatchdogInterval: time.Second,
		WatchdogGrace:    2 * time.Second,
		StoreTimeout:     2 * time.Second,
	}
}

// command runs on the loop goroutine with exclusive access to the machine
type command func(ctx context.Context)

// Runner owns a Machine and applies every transition on one goroutine, in arrival order.
// Events are published to the hub from that goroutine, so a subscriber registered inside the
// loop sees exactly the events after its snapshot.
type Runner struct {
	cfg    RunnerConfig
	hub    *broadcast.Hub
	store  storage.Storage
	clock  clock.Clock
	logger *slog.Logger

	inbox   chan command
	done    chan struct{}
	stopped chan struct{}
	machine *Machine

	errMu sync.Mutex
	err   error
}

// NewRunner wires a machine to the hub and match history store
func NewRunner(machine *Machine, hub *broadcast.Hub, store storage.Storage, clk clock.Clock, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultRunnerConfig().InboxSize
	}
	r := &Runner{
		cfg:     cfg,
		hub:     hub,
		store:   store,
		clock:   clk,
		logger:  logger.With(slog.String("component", "runner")),
		inbox:   make(chan command, cfg.InboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		machine: machine,
	}
	machine.OnFire(r.onTimerFired)
	return r
}

// Run processes commands until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	defer close(r.done)

	r.logger.Info("session runner started", slog.String("session_id", r.machine.ID()))
	r.armWatchdog()

	for {
		select {
		case <-ctx.Done():
			r.machine.timer.Disarm()
			r.hub.Close()
			r.logger.Info("session runner stopped")
			return nil
		case cmd := <-r.inbox:
			cmd(ctx)
		}
	}
}

// Stopped is closed once Run has returned
func (r *Runner) Stopped() <-chan struct{} {
	return r.stopped
}

// Err reports the fault that stopped the session, if any
func (r *Runner) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Runner) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.err = err
}

// post queues a command without waiting for it to run
func (r *Runner) post(ctx context.Context, cmd command) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.done:
		return model.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for its result
func call[T any](ctx context.Context, r *Runner, fn func(ctx context.Context, m *Machine) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	reply := make(chan result, 1)
	err := r.post(ctx, func(loopCtx context.Context) {
		val, err := fn(loopCtx, r.machine)
		reply <- result{val: val, err: err}
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case res := <-reply:
		return res.val, res.err
	case <-r.done:
		var zero T
		return zero, model.ErrSessionClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// publish records finished matches and sends events to subscribers
func (r *Runner) publish(ctx context.Context, events []model.Event) {
	if len(events) == 0 {
		return
	}

	// Terminal bookkeeping lands before subscribers hear about it
	for _, e := range events {
		switch e.Type {
		case model.EventSessionError:
			r.setErr(r.machine.Fault())
			r.saveMatch(ctx)
		case model.EventGameOver:
			r.saveMatch(ctx)
		}
	}
	r.hub.Publish(events...)
}

func (r *Runner) saveMatch(ctx context.Context) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	summary := r.machine.Summary()
	if err := r.store.SaveMatch(ctx, &summary); err != nil {
		r.logger.Error("failed to save match summary",
			slog.String("session_id", summary.ID),
			slog.Any("error", err))
		return
	}
	r.logger.Info("match summary saved",
		slog.String("session_id", summary.ID),
		slog.String("winner", summary.Winner))
}

func (r *Runner) onTimerFired(h turntimer.Handle) {
	err := r.post(context.Background(), func(ctx context.Context) {
		r.publish(ctx, r.machine.OnTimeout(h))
	})
	if err != nil {
		r.logger.Debug("timeout dropped, runner stopped")
	}
}

func (r *Runner) armWatchdog() {
	if r.cfg.WatchdogInterval <= 0 {
		return
	}
	_, err := r.clock.AfterFunc(r.cfg.WatchdogInterval, func() {
		firedAt := r.clock.Now()
		_ = r.post(context.Background(), func(ctx context.Context) {
			r.publish(ctx, r.machine.CheckOverdue(firedAt, r.cfg.WatchdogGrace))
			r.armWatchdog()
		})
	})
	if err != nil {
		r.logger.Error("failed to schedule watchdog", slog.Any("error", err))
		r.publish(context.Background(), r.machine.Fail(err))
	}
}

// Join registers a player by display name
func (r *Runner) Join(ctx context.Context, name string) (model.Player, error) {
	return call(ctx, r, func(ctx context.Context, m *Machine) (model.Player, error) {
		p, events, err := m.Join(name)
		r.publish(ctx, events)
		return p, err
	})
}

// Assign moves a player to a team or to the spectators
func (r *Runner) Assign(ctx context.Context, id model.PlayerID, target string) error {
	_, err := call(ctx, r, func(ctx context.Context, m *Machine) (struct{}, error) {
		events, err := m.Assign(id, target)
		r.publish(ctx, events)
		return struct{}{}, err
	})
	return err
}

// Leave removes a player
func (r *Runner) Leave(ctx context.Context, id model.PlayerID) error {
	_, err := call(ctx, r, func(ctx context.Context, m *Machine) (struct{}, error) {
		events, err := m.Leave(id)
		r.publish(ctx, events)
		return struct{}{}, err
	})
	return err
}

// Start begins a game. On a finished session it first recreates the session for a rematch.
func (r *Runner) Start(ctx context.Context) error {
	_, err := call(ctx, r, func(ctx context.Context, m *Machine) (struct{}, error) {
		if m.Phase() == model.PhaseFinished {
			if m.Fault() != nil {
				return struct{}{}, model.ErrSessionFaulted
			}
			r.machine = m.Rematch()
			m = r.machine
		}
		events, err := m.Start()
		r.publish(ctx, events)
		if err == nil && m.Fault() != nil {
			err = m.Fault()
		}
		return struct{}{}, err
	})
	return err
}

// Submit validates a word from a player
func (r *Runner) Submit(ctx context.Context, id model.PlayerID, team, word string) (model.Outcome, error) {
	return call(ctx, r, func(ctx context.Context, m *Machine) (model.Outcome, error) {
		outcome, events, err := m.SubmitWord(ctx, id, team, word)
		r.publish(ctx, events)
		return outcome, err
	})
}

// Lookup finds a connected player by display name
func (r *Runner) Lookup(ctx context.Context, name string) (model.Player, error) {
	return call(ctx, r, func(ctx context.Context, m *Machine) (model.Player, error) {
		p, ok := m.Lookup(name)
		if !ok {
			return model.Player{}, model.ErrPlayerNotFound
		}
		return p, nil
	})
}

// Snapshot returns the current full state
func (r *Runner) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return call(ctx, r, func(ctx context.Context, m *Machine) (model.Snapshot, error) {
		return m.Snapshot(), nil
	})
}

// Subscribe registers a subscriber and returns the snapshot it starts from.
// Every event on the subscription has a revision greater than the snapshot's.
func (r *Runner) Subscribe(ctx context.Context, id, kind string) (model.Snapshot, *broadcast.Subscription, error) {
	type subscribed struct {
		snap model.Snapshot
		sub  *broadcast.Subscription
	}
	res, err := call(ctx, r, func(ctx context.Context, m *Machine) (subscribed, error) {
		sub := r.hub.Subscribe(id, kind)
		if sub == nil {
			return subscribed{}, model.ErrSessionClosed
		}
		return subscribed{snap: m.Snapshot(), sub: sub}, nil
	})
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	return res.snap, res.sub, nil
}

// Unsubscribe removes a subscriber
func (r *Runner) Unsubscribe(sub *broadcast.Subscription) {
	r.hub.Unsubscribe(sub)
}

// History lists finished matches, newest first
func (r *Runner) History(ctx context.Context, limit int) ([]*model.MatchSummary, error) {
	if r.store == nil {
		return nil, errors.New("match history is not configured")
	}
	return r.store.ListMatches(ctx, limit)
}

// Match returns one finished match by ID
func (r *Runner) Match(ctx context.Context, id string) (*model.MatchSummary, error) {
	if r.store == nil {
		return nil, model.ErrMatchNotFound
	}
	return r.store.GetMatch(ctx, id)
}
