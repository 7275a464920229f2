package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/wordbomb/internal/api/request"
	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/model"
)

const closeWait = 2 * time.Second

func newPlayCmd() *cobra.Command {
	var name, team string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the session and play from the terminal",
		Long: `Join the session under --name and play interactively. Every line typed is
submitted as a word for your team. Lines starting with a slash are commands:

  /team <name>   Join a team, or Spectator
  /start         Start the game
  /state         Print the current state
  /leave         Leave the game and exit

End of input also leaves the game.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, &syncWriter{w: cmd.OutOrStdout()})
			return play(cmd.Context(), cmd.InOrStdin(), out, name, team)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&team, "team", "", "Team to join after connecting")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// player tracks what the terminal needs to submit words
type player struct {
	conn *websocket.Conn
	out  *Output
	name string

	mu   sync.Mutex
	team string
}

func play(ctx context.Context, in io.Reader, out *Output, name, team string) error {
	conn, err := client.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	p := &player{conn: conn, out: out, name: name}
	if err := p.join(); err != nil {
		return err
	}
	if team != "" {
		if err := p.send(request.TypeJoinTeam, request.JoinTeamRequest{Name: name, Team: team}); err != nil {
			return err
		}
	}

	readerDone := make(chan error, 1)
	go func() { readerDone <- p.readFrames() }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return p.leave(readerDone)
			}
			quit, err := p.command(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return p.leave(readerDone)
			}

		case err := <-readerDone:
			if err != nil {
				return err
			}
			out.PrintMessage("Disconnected")
			return nil

		case <-ctx.Done():
			return p.leave(readerDone)
		}
	}
}

// join sends join_game and waits for the acknowledgement, printing what arrives meanwhile
func (p *player) join() error {
	if err := p.send(request.TypeJoinGame, request.JoinGameRequest{Name: p.name}); err != nil {
		return err
	}
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection lost while joining: %w", err)
		}
		p.out.PrintFrame(data)

		var frame response.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case response.FrameJoined:
			return nil
		case response.FrameError:
			return errors.New("join rejected")
		}
	}
}

func (p *player) command(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, p.send(request.TypeSubmitWord, request.SubmitWordRequest{
			Player: p.name,
			Team:   p.currentTeam(),
			Word:   line,
		})
	}

	verb, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch verb {
	case "team":
		return false, p.send(request.TypeJoinTeam, request.JoinTeamRequest{Name: p.name, Team: strings.TrimSpace(arg)})
	case "state":
		return false, p.send(request.TypeGetState, nil)
	case "start":
		var result response.MessageResponse
		if err := client.Post(ctx, "/api/v1/start", nil, &result); err != nil {
			p.out.PrintMessage("Error: " + err.Error())
			return false, nil
		}
		p.out.PrintMessage(result.Message)
		return false, nil
	case "leave", "quit":
		return true, nil
	default:
		p.out.PrintMessage("Unknown command: /" + verb)
		return false, nil
	}
}

// leave removes the player and closes the connection, waiting briefly for the reader
func (p *player) leave(readerDone <-chan error) error {
	_ = p.send(request.TypeLeaveGame, request.LeaveGameRequest{Name: p.name})
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))

	select {
	case <-readerDone:
	case <-time.After(closeWait):
	}
	return nil
}

func (p *player) readFrames() error {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseTryAgainLater) {
				return nil
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		p.out.PrintFrame(data)
		p.track(data)
	}
}

// track follows which team the player is on so words go to the right one
func (p *player) track(data []byte) {
	var frame response.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	var teams []model.TeamView
	switch frame.Type {
	case response.FrameSnapshot:
		var s model.Snapshot
		if json.Unmarshal(frame.Data, &s) != nil {
			return
		}
		teams = s.Teams
	case string(model.EventTeams), string(model.EventGameStarted):
		var payload model.TeamsPayload
		if json.Unmarshal(frame.Data, &payload) != nil {
			return
		}
		teams = payload.Teams
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.team = ""
	for _, t := range teams {
		if slices.ContainsFunc(t.Members, func(m string) bool { return strings.EqualFold(m, p.name) }) {
			p.team = t.Name
			return
		}
	}
}

func (p *player) currentTeam() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.team
}

func (p *player) send(msgType string, data any) error {
	msg, err := request.Encode(msgType, data)
	if err != nil {
		return err
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

// syncWriter serializes output from the reader and input goroutines
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
