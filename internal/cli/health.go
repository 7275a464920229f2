package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/wordbomb/internal/api/response"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.HealthResponse

			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
