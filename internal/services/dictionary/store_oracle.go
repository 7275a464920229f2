package dictionary

import (
	"context"

	"github.com/mcoot/wordbomb/internal/storage"
)

// StoreOracle answers lookups straight from storage, so several servers can share one word set
type StoreOracle struct {
	storage storage.Storage
}

// NewStoreOracle creates an Oracle backed by storage
func NewStoreOracle(storage storage.Storage) *StoreOracle {
	return &StoreOracle{storage: storage}
}

// Ensure StoreOracle implements Oracle
var _ Oracle = (*StoreOracle)(nil)

// Contains looks the normalized word up in storage
func (o *StoreOracle) Contains(ctx context.Context, word string) (bool, error) {
	w := Normalize(word)
	if len([]rune(w)) < MinWordLength {
		return false, nil
	}
	return o.storage.HasDictionaryWord(ctx, w)
}
