package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/wordbomb/internal/api"
	"github.com/mcoot/wordbomb/internal/config"
	"github.com/mcoot/wordbomb/internal/factory"
	"github.com/mcoot/wordbomb/internal/services/dictionary"
	"github.com/mcoot/wordbomb/internal/services/sequence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:   "wordbomb-server",
		Short: "Authoritative game server for the team word game",
		Long: `wordbomb-server runs a single game session. Players connect over a websocket at /ws,
spectators can follow the server-sent event stream at /events, and the JSON API lives
under /api/v1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	config.RegisterFlags(root.Flags())

	root.AddCommand(serve)
	root.AddCommand(newSequencesCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := factory.New(ctx, cfg.Factory(logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = app.Close() }()

	router := api.NewRouter(api.RouterConfig{
		Logger: logger,
		Runner: app.Runner,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	server := api.NewServer(router, serverConfig, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Runner.Run(ctx)
	})
	g.Go(func() error {
		return server.Run(ctx)
	})

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.Int("dictionary_words", app.DictionaryService.WordCount()),
		slog.Int("sequences", app.Generator.Len()),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newSequencesCmd() *cobra.Command {
	var (
		dictPath string
		outPath  string
		seqCfg   = sequence.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Compute the letter sequences used for turns",
		Long: `Count every letter substring of the configured lengths across the dictionary and write
those occurring at least --min-frequency times as "sequence,count" lines, most frequent first.
If none reach the threshold every substring is kept. Pass the file to the server with
--sequences to skip the analysis at boot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seqCfg.MinLength < 1 || seqCfg.MaxLength < seqCfg.MinLength {
				return fmt.Errorf("invalid sequence lengths: %d-%d", seqCfg.MinLength, seqCfg.MaxLength)
			}
			words, err := dictionary.ReadWordFile(dictPath)
			if err != nil {
				return err
			}
			normalized := make([]string, 0, len(words))
			for _, w := range words {
				if n := dictionary.Normalize(w); len([]rune(n)) >= dictionary.MinWordLength {
					normalized = append(normalized, n)
				}
			}

			freqs := sequence.Analyze(normalized, seqCfg)
			if err := sequence.WriteFile(outPath, freqs); err != nil {
				return err
			}
			cmd.Printf("wrote %d sequences from %d words to %s\n", len(freqs), len(normalized), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dictPath, "dictionary", "data/words.txt", "word list, one word per line")
	cmd.Flags().StringVarP(&outPath, "out", "o", "data/sequences.txt", "output file")
	cmd.Flags().IntVar(&seqCfg.MinLength, "min-length", seqCfg.MinLength, "shortest sequence")
	cmd.Flags().IntVar(&seqCfg.MaxLength, "max-length", seqCfg.MaxLength, "longest sequence")
	cmd.Flags().IntVar(&seqCfg.MinFrequency, "min-frequency", seqCfg.MinFrequency, "minimum occurrences across the dictionary")
	return cmd
}
