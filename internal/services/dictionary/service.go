package dictionary

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/storage"
)

// MinWordLength is the shortest word the dictionary accepts
const MinWordLength = 2

// Oracle answers whether a word is legal. Implementations may be remote and can fail.
type Oracle interface {
	Contains(ctx context.Context, word string) (bool, error)
}

// Normalize trims and case-folds a word the way it is stored and compared
func Normalize(word string) string {
	return cases.Fold().String(strings.TrimSpace(word))
}

// Service is an in-memory dictionary loaded from a file or storage
type Service struct {
	storage storage.Storage
	logger  *slog.Logger

	mu     sync.RWMutex
	words  map[string]struct{}
	loaded bool
}

// New creates a new dictionary Service
func New(storage storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger.With(slog.String("component", "dictionary")),
		words:   make(map[string]struct{}),
	}
}

// Ensure Service implements Oracle
var _ Oracle = (*Service)(nil)

// LoadFromStorage loads dictionary words from storage
func (s *Service) LoadFromStorage(ctx context.Context) error {
	words, err := s.storage.GetDictionaryWords(ctx)
	if err != nil {
		return err
	}
	return s.loadWords(words)
}

// LoadFromFile loads dictionary words from a file (one word per line, # starts a comment)
// and saves the normalized list to storage
func (s *Service) LoadFromFile(ctx context.Context, path string) error {
	words, err := ReadWordFile(path)
	if err != nil {
		return err
	}
	if err := s.loadWords(words); err != nil {
		return err
	}

	// Save to storage for future use
	return s.storage.SaveDictionaryWords(ctx, s.Words())
}

// LoadWords directly loads a slice of words (useful for testing)
func (s *Service) LoadWords(words []string) error {
	return s.loadWords(words)
}

func (s *Service) loadWords(words []string) error {
	normalized := make(map[string]struct{}, len(words))
	for _, word := range words {
		w := Normalize(word)
		if len([]rune(w)) < MinWordLength {
			continue
		}
		normalized[w] = struct{}{}
	}

	s.mu.Lock()
	s.words = normalized
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("dictionary loaded", slog.Int("words", len(normalized)))
	return nil
}

// Contains reports whether the word is in the dictionary
func (s *Service) Contains(ctx context.Context, word string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return false, model.ErrDictionaryNotLoaded
	}
	_, ok := s.words[Normalize(word)]
	return ok, nil
}

// IsValidWord is Contains without the error; an unloaded dictionary accepts nothing
func (s *Service) IsValidWord(word string) bool {
	ok, err := s.Contains(context.Background(), word)
	return err == nil && ok
}

// IsLoaded returns whether the dictionary has been loaded
func (s *Service) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// WordCount returns the number of words in the dictionary
func (s *Service) WordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Words returns every normalized word, sorted
func (s *Service) Words() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := make([]string, 0, len(s.words))
	for w := range s.words {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// ReadWordFile reads one word per line, skipping blank lines and # comments
func ReadWordFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
