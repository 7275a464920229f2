package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream live session events",
		Long: `Connect to the server-sent event stream and print events as they happen.

The first message is always a snapshot of the session. Events that follow:
  - teams, undecideds, spectators: Roster changed
  - game_started: A game began
  - turn_change: A team must play a word containing the sequence
  - valid_word, invalid_word: A submission was judged
  - timeout: A team ran out of time and lost a life
  - game_over: One team is left
  - session_error: The session stopped serving

With --output json each message is printed as one JSON line.
Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamEvents(cmd.Context(), NewOutput(cfg.Output, cmd.OutOrStdout()), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Exit after this many messages (0 streams until interrupted)")

	return cmd
}

func streamEvents(ctx context.Context, out *Output, limit int) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/events"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No timeout for a stream
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !out.JSON() {
		out.PrintMessage("Connected to " + cfg.ServerURL)
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent string
	var dataLines []string
	received := 0

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of message; comment-only keepalives carry no event
			if currentEvent != "" {
				out.PrintFrame([]byte(strings.Join(dataLines, "\n")))
				received++
			}
			currentEvent = ""
			dataLines = nil
			if limit > 0 && received >= limit {
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !out.JSON() {
		out.PrintMessage("Disconnected")
	}
	return nil
}
