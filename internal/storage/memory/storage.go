package memory

import (
	"context"
	"sync"

	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	dictionaryWords []string
	dictionarySet   map[string]struct{}
	sequences       []string
	matches         map[string]*model.MatchSummary
	matchOrder      []string // Newest last
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		matches: make(map[string]*model.MatchSummary),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Dictionary operations

func (s *Storage) GetDictionaryWords(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dictionaryWords == nil {
		return nil, model.ErrDictionaryNotLoaded
	}
	result := make([]string, len(s.dictionaryWords))
	copy(result, s.dictionaryWords)
	return result, nil
}

func (s *Storage) SaveDictionaryWords(ctx context.Context, words []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dictionaryWords = make([]string, len(words))
	copy(s.dictionaryWords, words)
	s.dictionarySet = make(map[string]struct{}, len(words))
	for _, w := range words {
		s.dictionarySet[w] = struct{}{}
	}
	return nil
}

func (s *Storage) HasDictionaryWord(ctx context.Context, word string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dictionarySet == nil {
		return false, model.ErrDictionaryNotLoaded
	}
	_, ok := s.dictionarySet[word]
	return ok, nil
}

// Sequence operations

func (s *Storage) GetSequences(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sequences) == 0 {
		return nil, model.ErrNoSequences
	}
	result := make([]string, len(s.sequences))
	copy(result, s.sequences)
	return result, nil
}

func (s *Storage) SaveSequences(ctx context.Context, sequences []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences = make([]string, len(sequences))
	copy(s.sequences, sequences)
	return nil
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, match *model.MatchSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[match.ID]; !exists {
		s.matchOrder = append(s.matchOrder, match.ID)
	}
	s.matches[match.ID] = match
	return nil
}

func (s *Storage) GetMatch(ctx context.Context, id string) (*model.MatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.matches[id]
	if !ok {
		return nil, model.ErrMatchNotFound
	}
	return match, nil
}

func (s *Storage) ListMatches(ctx context.Context, limit int) ([]*model.MatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := []*model.MatchSummary{}
	for i := len(s.matchOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(matches) >= limit {
			break
		}
		matches = append(matches, s.matches[s.matchOrder[i]])
	}
	return matches, nil
}
