package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// JSON reports whether output is machine readable
func (o *Output) JSON() bool {
	return o.format == "json"
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.JSON() {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.JSON() {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.HealthResponse:
		o.printHealth(v)
	case response.MessageResponse:
		o.printf("%s\n", v.Message)
	case model.Snapshot:
		o.printSnapshot(v)
	case response.HistoryResponse:
		o.printHistory(v)
	case response.MatchSummary:
		o.printMatch(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printHealth(h response.HealthResponse) {
	o.printf("Status: %s\n", h.Status)
	if h.Error != "" {
		o.printf("Error: %s\n", h.Error)
	}
}

func (o *Output) printSnapshot(s model.Snapshot) {
	o.printf("Phase: %s (revision %d)\n", s.Phase, s.Revision)
	o.printf("Turn length: %.0fs\n", s.TimerLength)
	o.printf("Teams (%d):\n", len(s.Teams))
	for _, t := range s.Teams {
		o.printf("  %s\n", formatTeam(t))
	}
	if len(s.Undecideds) > 0 {
		o.printf("Undecided: %s\n", strings.Join(s.Undecideds, ", "))
	}
	if len(s.Spectators) > 0 {
		o.printf("Spectators: %s\n", strings.Join(s.Spectators, ", "))
	}
	if s.CurrentTurn != nil {
		o.printf("Current turn: %s, sequence %q", s.CurrentTurn.Name, strings.ToUpper(s.CurrentSequence))
		if s.Deadline != nil {
			o.printf(", %s left", time.Until(*s.Deadline).Round(time.Second))
		}
		o.printf("\n")
	}
	if len(s.UsedWords) > 0 {
		o.printf("Used words (%d): %s\n", len(s.UsedWords), strings.Join(s.UsedWords, ", "))
	}
}

func (o *Output) printHistory(h response.HistoryResponse) {
	if len(h.Matches) == 0 {
		o.printf("No matches played yet\n")
		return
	}
	for _, m := range h.Matches {
		o.printf("%s  %s  winner %s  %d words  %s\n",
			m.ID, m.FinishedAt.Format(time.DateTime), winnerName(m.Winner), len(m.Words),
			(time.Duration(m.DurationMs) * time.Millisecond).Round(time.Second))
	}
}

func (o *Output) printMatch(m response.MatchSummary) {
	o.printf("Match: %s\n", m.ID)
	o.printf("Winner: %s\n", winnerName(m.Winner))
	o.printf("Started: %s\n", m.StartedAt.Format(time.DateTime))
	o.printf("Duration: %s\n", (time.Duration(m.DurationMs) * time.Millisecond).Round(time.Second))
	o.printf("Teams:\n")
	for _, t := range m.Teams {
		o.printf("  %s\n", formatTeam(t))
	}
	o.printf("Words (%d):\n", len(m.Words))
	for _, w := range m.Words {
		o.printf("  %-12s %s (%s)\n", w.Word, w.Player, w.Team)
	}
}

// PrintFrame renders one websocket frame
func (o *Output) PrintFrame(raw []byte) {
	if o.JSON() {
		_, _ = fmt.Fprintln(o.w, string(raw))
		return
	}
	var frame response.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		o.printf("? %s\n", raw)
		return
	}
	o.printf("[%s] %s\n", time.Now().Format(time.TimeOnly), describeFrame(frame))
}

func describeFrame(f response.Frame) string {
	switch f.Type {
	case response.FrameSnapshot:
		var s model.Snapshot
		if json.Unmarshal(f.Data, &s) != nil {
			break
		}
		teams := make([]string, len(s.Teams))
		for i, t := range s.Teams {
			teams[i] = formatTeam(t)
		}
		return fmt.Sprintf("snapshot r%d: %s; %s", s.Revision, s.Phase, strings.Join(teams, "; "))
	case response.FrameJoined:
		var j response.JoinedData
		if json.Unmarshal(f.Data, &j) != nil {
			break
		}
		return fmt.Sprintf("joined as %s", j.Name)
	case response.FrameError:
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(f.Data, &e) != nil {
			break
		}
		return fmt.Sprintf("error: %s (%s)", e.Message, e.Code)
	case string(model.EventTeams), string(model.EventGameStarted):
		var p model.TeamsPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		teams := make([]string, len(p.Teams))
		for i, t := range p.Teams {
			teams[i] = formatTeam(t)
		}
		return fmt.Sprintf("%s: %s", f.Type, strings.Join(teams, "; "))
	case string(model.EventUndecideds):
		var p model.UndecidedsPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return "undecided: " + strings.Join(p.Undecideds, ", ")
	case string(model.EventSpectators):
		var p model.SpectatorsPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return "spectators: " + strings.Join(p.Spectators, ", ")
	case string(model.EventTurnChange):
		var p model.TurnChangePayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return fmt.Sprintf("%s to play a word containing %q (%s)",
			p.NextTeam.Name, strings.ToUpper(p.Sequence), time.Duration(p.DurationMs)*time.Millisecond)
	case string(model.EventValidWord):
		var p model.WordPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return fmt.Sprintf("%s (%s) played %s", p.Player, p.Team.Name, strings.ToUpper(p.Word))
	case string(model.EventInvalidWord):
		var p model.WordPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return fmt.Sprintf("%s (%s) tried %s: %s", p.Player, p.Team.Name, strings.ToUpper(p.Word), p.Reason)
	case string(model.EventTimeout):
		var p model.TimeoutPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return fmt.Sprintf("%s ran out of time, %d lives left", p.Team.Name, p.Team.Lives)
	case string(model.EventGameOver):
		var p model.GameOverPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return fmt.Sprintf("game over, %s wins", p.Team.Name)
	case string(model.EventSessionError):
		var p model.SessionErrorPayload
		if json.Unmarshal(f.Data, &p) != nil {
			break
		}
		return "session error: " + p.Message
	}
	return fmt.Sprintf("%s: %s", f.Type, f.Data)
}

func formatTeam(t model.TeamView) string {
	members := "no players"
	if len(t.Members) > 0 {
		members = strings.Join(t.Members, ", ")
	}
	status := fmt.Sprintf("%d lives", t.Lives)
	if !t.Alive {
		status = "out"
	}
	return fmt.Sprintf("%s [%s] %s", t.Name, members, status)
}

func winnerName(w *string) string {
	if w == nil {
		return "none"
	}
	return *w
}
