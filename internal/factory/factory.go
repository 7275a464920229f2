package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/dependencies/clock"
	"github.com/mcoot/wordbomb/internal/dependencies/random"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/dictionary"
	"github.com/mcoot/wordbomb/internal/services/sequence"
	"github.com/mcoot/wordbomb/internal/services/session"
	"github.com/mcoot/wordbomb/internal/storage"
	"github.com/mcoot/wordbomb/internal/storage/memory"
	redisstorage "github.com/mcoot/wordbomb/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Dictionary source constants
const (
	DictionarySourceMemory  = "memory"
	DictionarySourceStorage = "storage"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	DictionaryService *dictionary.Service
	Oracle            dictionary.Oracle
	Generator         *sequence.Generator
	Hub               *broadcast.Hub
	Machine           *session.Machine
	Runner            *session.Runner

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// DictionaryPath is the word list to load. If empty, words already in storage are used.
	DictionaryPath string
	// DictionarySource selects what answers word lookups during play ("memory" or "storage")
	DictionarySource string
	// SequencePath is a precomputed sequence list (optional)
	SequencePath string
	// Sequence controls frequency analysis when no precomputed list exists
	// If zero value, defaults to sequence.DefaultConfig()
	Sequence sequence.Config
	// Settings are the game rules. If Teams is empty, model.DefaultSessionSettings() is used.
	Settings model.SessionSettings
	// Runner tunes the session loop. If InboxSize is zero, session.DefaultRunnerConfig() is used.
	Runner session.RunnerConfig
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	store, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(ctx, store, clock.New(), random.New(), cfg)
	if err != nil {
		if closer, ok := store.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return app, nil
}

// NewStorage creates the configured storage backend
func NewStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(ctx context.Context, store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	dictService := dictionary.New(store, logger)
	if cfg.DictionaryPath != "" {
		if err := dictService.LoadFromFile(ctx, cfg.DictionaryPath); err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
	} else if err := dictService.LoadFromStorage(ctx); err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}
	if dictService.WordCount() == 0 {
		return nil, model.ErrDictionaryNotLoaded
	}

	var oracle dictionary.Oracle = dictService
	switch cfg.DictionarySource {
	case "", DictionarySourceMemory:
	case DictionarySourceStorage:
		oracle = dictionary.NewStoreOracle(store)
	default:
		return nil, errors.New("invalid DictionarySource: must be 'memory' or 'storage'")
	}

	seqCfg := cfg.Sequence
	if seqCfg.MaxLength == 0 {
		seqCfg = sequence.DefaultConfig()
	}
	words := dictService.Words()
	candidates, err := sequence.Load(ctx, store, words, cfg.SequencePath, seqCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load sequences: %w", err)
	}
	generator, err := sequence.NewGenerator(words, candidates, rnd, logger)
	if err != nil {
		return nil, fmt.Errorf("build sequence generator: %w", err)
	}

	settings := cfg.Settings
	if len(settings.Teams) == 0 {
		settings = model.DefaultSessionSettings()
	}
	runnerCfg := cfg.Runner
	if runnerCfg.InboxSize == 0 {
		runnerCfg = session.DefaultRunnerConfig()
	}

	hub := broadcast.NewHub(logger)
	machine := session.NewMachine(settings, session.Dependencies{
		Oracle:    oracle,
		Sequences: generator,
		Clock:     clk,
		Logger:    logger,
	})
	runner := session.NewRunner(machine, hub, store, clk, runnerCfg, logger)

	return &App{
		Storage:           store,
		Clock:             clk,
		Random:            rnd,
		DictionaryService: dictService,
		Oracle:            oracle,
		Generator:         generator,
		Hub:               hub,
		Machine:           machine,
		Runner:            runner,
		Logger:            logger,
	}, nil
}

// Close releases storage connections
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
