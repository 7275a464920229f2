package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/dependencies/mocks"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/dictionary"
	"github.com/mcoot/wordbomb/internal/storage/memory"
	"github.com/mcoot/wordbomb/internal/testutil"
)

type runnerHarness struct {
	runner *Runner
	clock  *mocks.MockClock
	store  *memory.Storage
	cancel context.CancelFunc
}

func newRunnerHarness(t *testing.T, settings model.SessionSettings, cfg RunnerConfig) *runnerHarness {
	t.Helper()
	clk := mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	dict := dictionary.New(memory.New(), testutil.NopLogger())
	require.NoError(t, dict.LoadWords(testWords))

	machine := NewMachine(settings, Dependencies{
		Oracle:    dict,
		Sequences: &scriptedSequences{queue: []string{"ar"}},
		Clock:     clk,
		Logger:    testutil.NopLogger(),
	})
	store := memory.New()
	runner := NewRunner(machine, broadcast.NewHub(testutil.NopLogger()), store, clk, cfg, testutil.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-runner.Stopped()
	})
	return &runnerHarness{runner: runner, clock: clk, store: store, cancel: cancel}
}

func noWatchdog() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.WatchdogInterval = 0
	return cfg
}

func recvEvent(t *testing.T, sub *broadcast.Subscription, within time.Duration) model.Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(within):
		t.Fatalf("timed out waiting for event after %v", within)
		return model.Event{}
	}
}

func recvUntil(t *testing.T, sub *broadcast.Subscription, want model.EventType) model.Event {
	t.Helper()
	for {
		e := recvEvent(t, sub, time.Second)
		if e.Type == want {
			return e
		}
	}
}

func (h *runnerHarness) seat(t *testing.T, name, team string) model.Player {
	t.Helper()
	ctx := context.Background()
	p, err := h.runner.Join(ctx, name)
	require.NoError(t, err)
	require.NoError(t, h.runner.Assign(ctx, p.ID, team))
	return p
}

func TestRunnerSnapshotThenEvents(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	ctx := context.Background()

	h.seat(t, "alice", "Lato")

	snap, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)
	defer h.runner.Unsubscribe(sub)
	assert.Equal(t, uint64(3), snap.Revision)
	assert.Equal(t, []string{"alice"}, snap.Teams[0].Members)

	h.seat(t, "bob", "Biny")

	last := snap.Revision
	for _, want := range []model.EventType{model.EventUndecideds, model.EventTeams, model.EventUndecideds} {
		e := recvEvent(t, sub, time.Second)
		assert.Equal(t, want, e.Type)
		assert.Equal(t, last+1, e.Revision)
		last = e.Revision
	}
}

func TestRunnerTimeoutFromClock(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	ctx := context.Background()
	h.seat(t, "alice", "Lato")
	h.seat(t, "bob", "Biny")

	_, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)
	require.NoError(t, h.runner.Start(ctx))
	recvUntil(t, sub, model.EventTurnChange)

	h.clock.Advance(10 * time.Second)

	e := recvEvent(t, sub, time.Second)
	require.Equal(t, model.EventTimeout, e.Type)
	assert.Equal(t, "Lato", e.Payload.(model.TimeoutPayload).Team.Name)
	e = recvEvent(t, sub, time.Second)
	require.Equal(t, model.EventTurnChange, e.Type)
	assert.Equal(t, "Biny", e.Payload.(model.TurnChangePayload).NextTeam.Name)
}

func TestRunnerSerializesConcurrentSubmissions(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	ctx := context.Background()
	alice := h.seat(t, "alice", "Lato")
	carol := h.seat(t, "carol", "Lato")
	h.seat(t, "bob", "Biny")
	require.NoError(t, h.runner.Start(ctx))

	var wg sync.WaitGroup
	outcomes := make([]model.Outcome, 2)
	for i, submit := range []struct {
		id   model.PlayerID
		word string
	}{{alice.ID, "guitar"}, {carol.ID, "arrow"}} {
		wg.Add(1)
		go func(i int, id model.PlayerID, word string) {
			defer wg.Done()
			out, err := h.runner.Submit(ctx, id, "", word)
			assert.NoError(t, err)
			outcomes[i] = out
		}(i, submit.id, submit.word)
	}
	wg.Wait()

	accepted := 0
	for _, o := range outcomes {
		if o.Accepted {
			accepted++
		} else {
			assert.Equal(t, model.ReasonNotYourTurn, o.Reason)
		}
	}
	assert.Equal(t, 1, accepted)

	snap, err := h.runner.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Biny", snap.CurrentTurn.Name)
}

func TestRunnerSavesHistoryAndRematches(t *testing.T) {
	settings := model.DefaultSessionSettings()
	settings.StartingLives = 1
	h := newRunnerHarness(t, settings, noWatchdog())
	ctx := context.Background()
	alice := h.seat(t, "alice", "Lato")
	h.seat(t, "bob", "Biny")

	_, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)
	require.NoError(t, h.runner.Start(ctx))

	_, err = h.runner.Submit(ctx, alice.ID, "Lato", "guitar")
	require.NoError(t, err)
	h.clock.Advance(10 * time.Second)

	over := recvUntil(t, sub, model.EventGameOver)
	assert.Equal(t, "Lato", over.Payload.(model.GameOverPayload).Team.Name)

	history, err := h.runner.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Lato", history[0].Winner)

	match, err := h.runner.Match(ctx, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, history[0].Words, match.Words)
	_, err = h.runner.Match(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrMatchNotFound)

	require.NoError(t, h.runner.Start(ctx))
	started := recvUntil(t, sub, model.EventGameStarted)
	assert.Greater(t, started.Revision, over.Revision)

	snap, err := h.runner.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRunning, snap.Phase)
	assert.Empty(t, snap.UsedWords)

	assert.ErrorIs(t, h.runner.Start(ctx), model.ErrAlreadyStarted)
}

func TestRunnerScheduleFailureIsReported(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	ctx := context.Background()
	h.seat(t, "alice", "Lato")
	h.seat(t, "bob", "Biny")
	h.clock.FailTimers = true

	_, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)

	err = h.runner.Start(ctx)
	assert.ErrorIs(t, err, model.ErrScheduleFailed)
	assert.ErrorIs(t, h.runner.Err(), model.ErrScheduleFailed)
	recvUntil(t, sub, model.EventSessionError)

	assert.ErrorIs(t, h.runner.Start(ctx), model.ErrSessionFaulted)

	history, err := h.runner.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].Winner)
}

func TestRunnerWatchdogRaisesAlarm(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.WatchdogInterval = time.Second
	cfg.WatchdogGrace = 2 * time.Second
	h := newRunnerHarness(t, model.DefaultSessionSettings(), cfg)
	ctx := context.Background()
	h.seat(t, "alice", "Lato")
	h.seat(t, "bob", "Biny")
	h.clock.Stall = func(d time.Duration) bool { return d == 10*time.Second }

	_, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)
	require.NoError(t, h.runner.Start(ctx))

	require.Eventually(t, func() bool {
		h.clock.Advance(time.Second)
		return h.runner.Err() != nil
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, h.runner.Err(), model.ErrScheduleFailed)
	recvUntil(t, sub, model.EventSessionError)

	snap, err := h.runner.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFinished, snap.Phase)
}

func TestRunnerClosed(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	_, sub, err := h.runner.Subscribe(context.Background(), "watcher", "test")
	require.NoError(t, err)

	h.cancel()
	<-h.runner.Stopped()

	_, err = h.runner.Join(context.Background(), "alice")
	assert.ErrorIs(t, err, model.ErrSessionClosed)

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestRunnerProtocolErrorsDoNotBroadcast(t *testing.T) {
	h := newRunnerHarness(t, model.DefaultSessionSettings(), noWatchdog())
	ctx := context.Background()
	alice := h.seat(t, "alice", "Lato")

	_, sub, err := h.runner.Subscribe(ctx, "watcher", "test")
	require.NoError(t, err)

	_, err = h.runner.Submit(ctx, alice.ID, "", "guitar")
	assert.ErrorIs(t, err, model.ErrNotRunning)
	assert.ErrorIs(t, h.runner.Start(ctx), model.ErrNotEnoughTeams)
	_, err = h.runner.Join(ctx, "ALICE")
	assert.ErrorIs(t, err, model.ErrNameTaken)

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
