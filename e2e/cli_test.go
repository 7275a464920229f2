package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordbomb/internal/api"
	"github.com/mcoot/wordbomb/internal/factory"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/session"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "wordbomb-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/wordbomb")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)
	return exec.Command(r.binaryPath, fullArgs...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	output, err := r.command(args...).CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithInput(input string, args ...string) (string, error) {
	cmd := r.command(args...)
	cmd.Stdin = strings.NewReader(input)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server and session runner for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	projectRoot := findProjectRoot(t)
	ctx, cancel := context.WithCancel(context.Background())
	app, err := factory.New(ctx, factory.Config{
		Logger:         logger,
		DictionaryPath: filepath.Join(projectRoot, "data/words.txt"),
		Settings:       model.DefaultSessionSettings(),
		Runner:         session.DefaultRunnerConfig(),
	})
	require.NoError(t, err)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		_ = app.Runner.Run(ctx)
	}()

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.RouterConfig{
			Logger: logger,
			Runner: app.Runner,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			cancel()
			<-runnerDone
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type historyResponse struct {
	Matches []struct {
		ID string `json:"id"`
	} `json:"matches"`
}

type frame struct {
	Type     string          `json:"type"`
	Revision uint64          `json:"revision"`
	Data     json.RawMessage `json:"data"`
}

// frames parses JSON-lines CLI output, skipping anything that is not a frame
func frames(output string) []frame {
	var out []frame
	for _, line := range strings.Split(output, "\n") {
		var f frame
		if err := json.Unmarshal([]byte(line), &f); err == nil && f.Type != "" {
			out = append(out, f)
		}
	}
	return out
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_StateAndStart(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("state")
	require.NoError(t, err, "output: %s", output)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snap))
	assert.Equal(t, model.PhaseLobby, snap.Phase)
	assert.False(t, snap.Running)
	require.Len(t, snap.Teams, 2)
	assert.Equal(t, "Lato", snap.Teams[0].Name)
	assert.Equal(t, "Biny", snap.Teams[1].Name)

	// Nobody is on a team yet
	output, err = cli.run("start")
	require.Error(t, err)
	assert.Contains(t, output, "NOT_ENOUGH_TEAMS")

	// Text output
	output, err = cli.run("--output", "text", "state")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, "Phase: lobby")
	assert.Contains(t, output, "Lato [no players] 3 lives")
}

func TestCLI_History(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("history")
	require.NoError(t, err, "output: %s", output)

	var resp historyResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Empty(t, resp.Matches)

	output, err = cli.run("history", "no-such-match")
	require.Error(t, err)
	assert.Contains(t, output, "MATCH_NOT_FOUND")
}

func TestCLI_Events(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("events", "--limit", "1")
	require.NoError(t, err, "output: %s", output)

	got := frames(output)
	require.Len(t, got, 1)
	assert.Equal(t, "snapshot", got[0].Type)
}

func TestCLI_Play(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Follow the roster from a second process while the player joins and leaves
	events := cli.command("events", "--limit", "5")
	stdout, err := events.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, events.Start())
	defer func() { _ = events.Process.Kill() }()

	// The snapshot line shows the stream is subscribed before play connects
	firstLine := make([]byte, 1)
	_, err = stdout.Read(firstLine)
	require.NoError(t, err)

	output, err := cli.runWithInput("/state\n", "play", "--name", "Alice", "--team", "Lato")
	require.NoError(t, err, "output: %s", output)

	played := frames(output)
	require.GreaterOrEqual(t, len(played), 2)
	assert.Equal(t, "snapshot", played[0].Type)
	playedTypes := make([]string, len(played))
	for i, f := range played {
		playedTypes[i] = f.Type
	}
	assert.Contains(t, playedTypes, "joined")

	// Join as undecided, move to Lato, then leave: three roster events after the snapshot
	rest, err := io.ReadAll(stdout)
	require.NoError(t, err)
	require.NoError(t, events.Wait())
	streamed := frames(string(firstLine) + string(rest))
	require.Len(t, streamed, 5)

	types := make([]string, len(streamed))
	for i, f := range streamed {
		types[i] = f.Type
	}
	assert.Equal(t, "snapshot", types[0])
	assert.Contains(t, types[1:], "undecideds")
	assert.Contains(t, types[1:], "teams")

	// The player left when input ended
	snap, err := ts.app.Runner.Snapshot(context.Background())
	require.NoError(t, err)
	for _, team := range snap.Teams {
		assert.NotContains(t, team.Members, "Alice")
	}
	assert.NotContains(t, snap.Undecideds, "Alice")
}
