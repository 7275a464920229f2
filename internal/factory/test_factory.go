package factory

import (
	"context"
	"time"

	"github.com/mcoot/wordbomb/internal/dependencies/mocks"
	"github.com/mcoot/wordbomb/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
// and a small dictionary already in storage
func NewTestApp() (*TestApp, error) {
	return NewTestAppWith(Config{})
}

// NewTestAppWith is NewTestApp with game settings and runner tuning taken from cfg.
// Storage and dictionary fields of cfg are ignored.
func NewTestAppWith(cfg Config) (*TestApp, error) {
	ctx := context.Background()
	store := memory.New()
	if err := store.SaveDictionaryWords(ctx, TestWords()); err != nil {
		return nil, err
	}
	mockClock := mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	cfg.StorageType = StorageTypeMemory
	cfg.DictionaryPath = ""
	cfg.DictionarySource = DictionarySourceMemory
	cfg.SequencePath = ""

	app, err := newWithDependencies(ctx, store, mockClock, mockRandom, cfg)
	if err != nil {
		return nil, err
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}, nil
}

// TestWords is a small dictionary for tests
func TestWords() []string {
	return []string{
		"arc", "arch", "archer", "are", "area", "arena", "argue", "arm", "armor", "army",
		"arrow", "art", "artist", "bar", "bare", "bark", "barn", "car", "card", "care",
		"cargo", "carpet", "cart", "carton", "cedar", "chart", "charm", "dare", "dark", "dart",
		"ear", "earn", "earth", "far", "farm", "garden", "guitar", "hard", "harm", "harp",
		"jar", "large", "lunar", "mark", "market", "mars", "party", "radar", "scar", "scare",
		"shark", "sharp", "smart", "solar", "spark", "star", "start", "sugar", "tar", "war",
		"the", "then", "there", "these", "they", "thin", "thing", "think", "other", "mother",
		"brother", "weather", "feather", "leather", "bathe", "gather", "rather", "father", "tether", "either",
		"ing", "sing", "singing", "ring", "king", "wing", "bring", "sting", "spring", "string",
		"piano", "pin", "pine", "spin", "print", "point", "paint", "saint", "tint", "mint",
		"stone", "tone", "phone", "alone", "bone", "zone", "drone", "ozone", "throne", "cone",
		"ant", "plant", "giant", "want", "chant", "grant", "slant", "pant", "rant", "can",
	}
}
