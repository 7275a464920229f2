package storage

import (
	"context"

	"github.com/mcoot/wordbomb/internal/model"
)

// Storage defines the interface for data persistence.
// Live session state is never stored; only reference data and finished matches are.
type Storage interface {
	// Dictionary operations
	GetDictionaryWords(ctx context.Context) ([]string, error)
	SaveDictionaryWords(ctx context.Context, words []string) error
	HasDictionaryWord(ctx context.Context, word string) (bool, error)

	// Sequence operations
	GetSequences(ctx context.Context) ([]string, error)
	SaveSequences(ctx context.Context, sequences []string) error

	// Match history operations
	SaveMatch(ctx context.Context, match *model.MatchSummary) error
	GetMatch(ctx context.Context, id string) (*model.MatchSummary, error)
	ListMatches(ctx context.Context, limit int) ([]*model.MatchSummary, error)
}
