package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordbomb/internal/api"
	"github.com/mcoot/wordbomb/internal/api/apierr"
	"github.com/mcoot/wordbomb/internal/api/request"
	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/factory"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/session"
	"github.com/mcoot/wordbomb/internal/testutil"
)

// testServer runs the router over a test app with a mocked clock
type testServer struct {
	app    *factory.TestApp
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app, err := factory.NewTestAppWith(factory.Config{
		Runner: session.RunnerConfig{InboxSize: 16, StoreTimeout: time.Second},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = app.Runner.Run(ctx) }()

	router := api.NewRouter(api.RouterConfig{
		Logger: testutil.NopLogger(),
		Runner: app.Runner,
	})
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		<-app.Runner.Stopped()
		srv.Close()
	})
	return &testServer{app: app, server: srv}
}

func (ts *testServer) request(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	frame, err := request.Encode(msgType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) response.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f response.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readUntil(t *testing.T, conn *websocket.Conn, frameType string) response.Frame {
	t.Helper()
	for {
		f := readFrame(t, conn)
		if f.Type == frameType {
			return f
		}
	}
}

func decodeData[T any](t *testing.T, f response.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

// join connects a websocket client, joins the game and picks a team
func (ts *testServer) join(t *testing.T, name, team string) *websocket.Conn {
	t.Helper()
	conn := ts.dial(t)
	require.Equal(t, response.FrameSnapshot, readFrame(t, conn).Type)

	send(t, conn, request.TypeJoinGame, request.JoinGameRequest{Name: name})
	joined := decodeData[response.JoinedData](t, readUntil(t, conn, response.FrameJoined))
	require.Equal(t, name, joined.Name)

	send(t, conn, request.TypeJoinTeam, request.JoinTeamRequest{Name: name, Team: team})
	for {
		f := readUntil(t, conn, string(model.EventTeams))
		teams := decodeData[model.TeamsPayload](t, f)
		for _, tv := range teams.Teams {
			if tv.Name == team && contains(tv.Members, name) {
				return conn
			}
		}
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStateInLobby(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodGet, "/api/v1/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, model.PhaseLobby, snap.Phase)
	assert.False(t, snap.Running)
	require.Len(t, snap.Teams, 2)
	assert.Equal(t, "Lato", snap.Teams[0].Name)
	assert.Equal(t, "Biny", snap.Teams[1].Name)
	assert.Equal(t, 10.0, snap.TimerLength)
	assert.Nil(t, snap.CurrentTurn)
}

func TestStartWithoutTeams(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodPost, "/api/v1/start")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, apierr.CodeNotEnoughTeams, errResp.Error.Code)
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history response.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Empty(t, history.Matches)

	resp, _ = ts.request(t, http.MethodGet, "/api/v1/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.request(t, http.MethodGet, "/api/v1/history/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), apierr.CodeMatchNotFound)
}

func TestWebsocketSnapshotFirst(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, "alice", "Lato")

	conn := ts.dial(t)
	f := readFrame(t, conn)
	require.Equal(t, response.FrameSnapshot, f.Type)
	snap := decodeData[model.Snapshot](t, f)
	assert.Equal(t, snap.Revision, f.Revision)
	assert.Equal(t, []string{"alice"}, snap.Teams[0].Members)

	// Later events continue from the snapshot's revision
	ts.join(t, "bob", "Biny")
	next := readFrame(t, conn)
	assert.Equal(t, snap.Revision+1, next.Revision)
}

func TestWebsocketProtocolErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, "alice", "Lato")

	conn := ts.dial(t)
	readFrame(t, conn)

	tests := []struct {
		name    string
		msgType string
		data    any
		code    string
	}{
		{"submit before joining", request.TypeSubmitWord, request.SubmitWordRequest{Player: "carol", Team: "Lato", Word: "car"}, apierr.CodeNotJoined},
		{"duplicate name", request.TypeJoinGame, request.JoinGameRequest{Name: "ALICE"}, apierr.CodeNameTaken},
		{"empty name", request.TypeJoinGame, request.JoinGameRequest{Name: "  "}, apierr.CodeInvalidName},
		{"unknown type", "dance", nil, apierr.CodeInvalidRequest},
		{"missing data", request.TypeJoinGame, nil, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.msgType, tt.data)
			f := readUntil(t, conn, response.FrameError)
			assert.Equal(t, tt.code, decodeData[apierr.APIError](t, f).Code)
		})
	}

	send(t, conn, request.TypeJoinGame, request.JoinGameRequest{Name: "carol"})
	readUntil(t, conn, response.FrameJoined)

	send(t, conn, request.TypeJoinTeam, request.JoinTeamRequest{Name: "alice", Team: "Biny"})
	f := readUntil(t, conn, response.FrameError)
	assert.Equal(t, apierr.CodePlayerMismatch, decodeData[apierr.APIError](t, f).Code)

	send(t, conn, request.TypeJoinTeam, request.JoinTeamRequest{Name: "carol", Team: "Nowhere"})
	f = readUntil(t, conn, response.FrameError)
	assert.Equal(t, apierr.CodeUnknownTeam, decodeData[apierr.APIError](t, f).Code)

	send(t, conn, request.TypeSubmitWord, request.SubmitWordRequest{Player: "carol", Team: "Lato", Word: "car"})
	f = readUntil(t, conn, response.FrameError)
	assert.Equal(t, apierr.CodeNotRunning, decodeData[apierr.APIError](t, f).Code)
}

func TestWebsocketGame(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "alice", "Lato")
	bob := ts.join(t, "bob", "Biny")

	resp, body := ts.request(t, http.MethodPost, "/api/v1/start")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	readUntil(t, alice, string(model.EventGameStarted))
	turn := decodeData[model.TurnChangePayload](t, readUntil(t, alice, string(model.EventTurnChange)))
	assert.Equal(t, "Lato", turn.NextTeam.Name)
	assert.Equal(t, int64(10000), turn.DurationMs)

	// Bob may not play on Lato's turn; everyone hears about it
	send(t, bob, request.TypeSubmitWord, request.SubmitWordRequest{Player: "bob", Team: "Biny", Word: "anything"})
	invalid := decodeData[model.WordPayload](t, readUntil(t, alice, string(model.EventInvalidWord)))
	assert.Equal(t, model.ReasonNotYourTurn, invalid.Reason)
	assert.Equal(t, "bob", invalid.Player)

	word, ok := ts.app.Generator.Witness(turn.Sequence, nil)
	require.True(t, ok)
	send(t, alice, request.TypeSubmitWord, request.SubmitWordRequest{Player: "alice", Team: "Lato", Word: strings.ToUpper(word)})

	valid := decodeData[model.WordPayload](t, readUntil(t, bob, string(model.EventValidWord)))
	assert.Equal(t, word, valid.Word)
	assert.Equal(t, "Lato", valid.Team.Name)
	next := decodeData[model.TurnChangePayload](t, readUntil(t, bob, string(model.EventTurnChange)))
	assert.Equal(t, "Biny", next.NextTeam.Name)

	// get_state replies to the caller with the running game
	send(t, bob, request.TypeGetState, nil)
	snap := decodeData[model.Snapshot](t, readUntil(t, bob, response.FrameSnapshot))
	assert.True(t, snap.Running)
	assert.Equal(t, []string{word}, snap.UsedWords)
	require.NotNil(t, snap.CurrentTurn)
	assert.Equal(t, "Biny", snap.CurrentTurn.Name)
}

func TestWebsocketDisconnectLeaves(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "alice", "Lato")
	bob := ts.join(t, "bob", "Biny")

	require.NoError(t, bob.Close())

	for {
		teams := decodeData[model.TeamsPayload](t, readUntil(t, alice, string(model.EventTeams)))
		if len(teams.Teams[1].Members) == 0 {
			break
		}
	}

	// The name is free again
	ts.join(t, "bob", "Biny")
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.server.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	next := func() string {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			return line
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading event stream")
			return ""
		}
	}

	assert.Equal(t, "event: snapshot", next())
	for next() != "" {
	}

	ts.join(t, "alice", "Lato")
	assert.Equal(t, "event: undecideds", next())
	assert.Equal(t, "id: 1", next())
	assert.True(t, strings.HasPrefix(next(), "data: {"))
}
