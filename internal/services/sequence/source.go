package sequence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/storage"
)

// Load returns candidate sequences: from path when set, else from storage,
// else by analysing the words and caching the result in storage
func Load(ctx context.Context, store storage.Storage, words []string, path string, cfg Config, logger *slog.Logger) ([]string, error) {
	if path != "" {
		seqs, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded sequences from file", slog.String("path", path), slog.Int("count", len(seqs)))
		return seqs, nil
	}

	seqs, err := store.GetSequences(ctx)
	if err == nil {
		logger.Info("loaded sequences from storage", slog.Int("count", len(seqs)))
		return seqs, nil
	}
	if !errors.Is(err, model.ErrNoSequences) {
		return nil, err
	}

	seqs = Sequences(Analyze(words, cfg))
	if err := store.SaveSequences(ctx, seqs); err != nil {
		return nil, err
	}
	logger.Info("computed sequences", slog.Int("count", len(seqs)), slog.Int("min_frequency", cfg.MinFrequency))
	return seqs, nil
}
