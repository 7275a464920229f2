package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/model"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result model.Snapshot

			if err := client.Get(cmd.Context(), "/api/v1/state", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game",
		Long:  "Start the game once enough teams have players. Fails if a game is already running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.MessageResponse

			if err := client.Post(cmd.Context(), "/api/v1/start", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [match-id]",
		Short: "List finished matches, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if len(args) == 1 {
				var result response.MatchSummary
				if err := client.Get(cmd.Context(), "/api/v1/history/"+url.PathEscape(args[0]), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result response.HistoryResponse
			if err := client.Get(cmd.Context(), fmt.Sprintf("/api/v1/history?limit=%d", limit), &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of matches")

	return cmd
}
