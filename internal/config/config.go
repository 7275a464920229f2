package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/wordbomb/internal/factory"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/sequence"
	"github.com/mcoot/wordbomb/internal/services/session"
	redisstorage "github.com/mcoot/wordbomb/internal/storage/redis"
)

// EnvPrefix is prepended to every environment variable, e.g. WORDBOMB_HTTP_PORT
const EnvPrefix = "WORDBOMB"

// Config is the server configuration.
// Priority order: flags > environment variables > config file > defaults
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Game       GameConfig       `mapstructure:"game"`
	Sequence   SequenceConfig   `mapstructure:"sequence"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog"`
	Log        LogConfig        `mapstructure:"log"`
}

// HTTPConfig holds listener settings
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// GameConfig holds the rules of each session
type GameConfig struct {
	Teams                   []string      `mapstructure:"teams"`
	StartingLives           int           `mapstructure:"starting_lives"`
	TurnDuration            time.Duration `mapstructure:"turn_duration"`
	MinTeams                int           `mapstructure:"min_teams"`
	RetainSequenceOnTimeout bool          `mapstructure:"retain_sequence_on_timeout"`
}

// SequenceConfig controls where sequences come from
type SequenceConfig struct {
	Path         string `mapstructure:"path"`
	MinLength    int    `mapstructure:"min_length"`
	MaxLength    int    `mapstructure:"max_length"`
	MinFrequency int    `mapstructure:"min_frequency"`
}

// DictionaryConfig controls the word list
type DictionaryConfig struct {
	Path   string `mapstructure:"path"`
	Source string `mapstructure:"source"`
}

// StorageConfig selects the backend
type StorageConfig struct {
	Type string `mapstructure:"type"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MatchTTL     time.Duration `mapstructure:"match_ttl"`
	MaxHistory   int64         `mapstructure:"max_history"`
}

// WatchdogConfig tunes the overdue-deadline check
type WatchdogConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Grace    time.Duration `mapstructure:"grace"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"http-host":         "http.host",
	"http-port":         "http.port",
	"teams":             "game.teams",
	"starting-lives":    "game.starting_lives",
	"turn-duration":     "game.turn_duration",
	"min-teams":         "game.min_teams",
	"retain-sequence":   "game.retain_sequence_on_timeout",
	"sequences":         "sequence.path",
	"min-frequency":     "sequence.min_frequency",
	"dictionary":        "dictionary.path",
	"dictionary-source": "dictionary.source",
	"storage":           "storage.type",
	"redis-url":         "redis.url",
	"watchdog-grace":    "watchdog.grace",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// RegisterFlags adds the server flags to fs. Unset flags fall through to env, file and defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	defaults := Default()
	fs.String("config", "", "path to a YAML config file (env: WORDBOMB_CONFIG)")
	fs.String("http-host", defaults.HTTP.Host, "address to bind to (env: WORDBOMB_HTTP_HOST)")
	fs.Int("http-port", defaults.HTTP.Port, "port to listen on (env: WORDBOMB_HTTP_PORT)")
	fs.StringSlice("teams", defaults.Game.Teams, "team names (env: WORDBOMB_GAME_TEAMS)")
	fs.Int("starting-lives", defaults.Game.StartingLives, "lives per team (env: WORDBOMB_GAME_STARTING_LIVES)")
	fs.Duration("turn-duration", defaults.Game.TurnDuration, "time allowed per turn (env: WORDBOMB_GAME_TURN_DURATION)")
	fs.Int("min-teams", defaults.Game.MinTeams, "teams with players needed to start (env: WORDBOMB_GAME_MIN_TEAMS)")
	fs.Bool("retain-sequence", defaults.Game.RetainSequenceOnTimeout, "keep a timed-out sequence for the next team (env: WORDBOMB_GAME_RETAIN_SEQUENCE_ON_TIMEOUT)")
	fs.String("sequences", defaults.Sequence.Path, "precomputed sequence list (env: WORDBOMB_SEQUENCE_PATH)")
	fs.Int("min-frequency", defaults.Sequence.MinFrequency, "minimum occurrences for a computed sequence (env: WORDBOMB_SEQUENCE_MIN_FREQUENCY)")
	fs.String("dictionary", defaults.Dictionary.Path, "word list, one word per line (env: WORDBOMB_DICTIONARY_PATH)")
	fs.String("dictionary-source", defaults.Dictionary.Source, "word lookups during play: memory or storage (env: WORDBOMB_DICTIONARY_SOURCE)")
	fs.String("storage", defaults.Storage.Type, "storage backend: memory or redis (env: WORDBOMB_STORAGE_TYPE)")
	fs.String("redis-url", defaults.Redis.URL, "redis connection URL (env: WORDBOMB_REDIS_URL)")
	fs.Duration("watchdog-grace", defaults.Watchdog.Grace, "how late a turn deadline may fire before the session faults (env: WORDBOMB_WATCHDOG_GRACE)")
	fs.String("log-level", defaults.Log.Level, "debug, info, warn or error (env: WORDBOMB_LOG_LEVEL)")
	fs.String("log-format", defaults.Log.Format, "json or text (env: WORDBOMB_LOG_FORMAT)")
}

// Default returns the built-in configuration
func Default() Config {
	settings := model.DefaultSessionSettings()
	seq := sequence.DefaultConfig()
	runner := session.DefaultRunnerConfig()
	redisCfg := redisstorage.DefaultConfig()

	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Game: GameConfig{
			Teams:                   settings.Teams,
			StartingLives:           settings.StartingLives,
			TurnDuration:            settings.TurnDuration,
			MinTeams:                settings.MinTeams,
			RetainSequenceOnTimeout: settings.RetainSequenceOnTimeout,
		},
		Sequence: SequenceConfig{
			MinLength:    seq.MinLength,
			MaxLength:    seq.MaxLength,
			MinFrequency: seq.MinFrequency,
		},
		Dictionary: DictionaryConfig{
			Path:   "data/words.txt",
			Source: factory.DictionarySourceMemory,
		},
		Storage: StorageConfig{Type: factory.StorageTypeMemory},
		Redis: RedisConfig{
			URL:          redisCfg.URL,
			PoolSize:     redisCfg.PoolSize,
			MinIdleConns: redisCfg.MinIdleConns,
			MatchTTL:     redisCfg.MatchTTL,
			MaxHistory:   redisCfg.MaxHistory,
		},
		Watchdog: WatchdogConfig{
			Interval: runner.WatchdogInterval,
			Grace:    runner.WatchdogGrace,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from defaults, an optional file, the environment and fs
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	configFile := v.GetString("config")
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("game.teams", d.Game.Teams)
	v.SetDefault("game.starting_lives", d.Game.StartingLives)
	v.SetDefault("game.turn_duration", d.Game.TurnDuration)
	v.SetDefault("game.min_teams", d.Game.MinTeams)
	v.SetDefault("game.retain_sequence_on_timeout", d.Game.RetainSequenceOnTimeout)
	v.SetDefault("sequence.path", d.Sequence.Path)
	v.SetDefault("sequence.min_length", d.Sequence.MinLength)
	v.SetDefault("sequence.max_length", d.Sequence.MaxLength)
	v.SetDefault("sequence.min_frequency", d.Sequence.MinFrequency)
	v.SetDefault("dictionary.path", d.Dictionary.Path)
	v.SetDefault("dictionary.source", d.Dictionary.Source)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	v.SetDefault("redis.match_ttl", d.Redis.MatchTTL)
	v.SetDefault("redis.max_history", d.Redis.MaxHistory)
	v.SetDefault("watchdog.interval", d.Watchdog.Interval)
	v.SetDefault("watchdog.grace", d.Watchdog.Grace)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("config", "")
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.HTTP.Port))
	}

	seen := make(map[string]struct{}, len(c.Game.Teams))
	for _, team := range c.Game.Teams {
		key := strings.ToLower(strings.TrimSpace(team))
		if key == "" || key == model.SpectatorTarget {
			errs = append(errs, fmt.Errorf("invalid team name %q", team))
			continue
		}
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate team name %q", team))
		}
		seen[key] = struct{}{}
	}
	if c.Game.MinTeams < 2 {
		errs = append(errs, fmt.Errorf("min_teams must be at least 2: %d", c.Game.MinTeams))
	}
	if len(c.Game.Teams) < c.Game.MinTeams {
		errs = append(errs, fmt.Errorf("need at least %d teams, have %d", c.Game.MinTeams, len(c.Game.Teams)))
	}
	if c.Game.StartingLives < 1 {
		errs = append(errs, fmt.Errorf("starting_lives must be positive: %d", c.Game.StartingLives))
	}
	if c.Game.TurnDuration <= 0 {
		errs = append(errs, fmt.Errorf("turn_duration must be positive: %s", c.Game.TurnDuration))
	}

	if c.Sequence.MinLength < 1 || c.Sequence.MaxLength < c.Sequence.MinLength {
		errs = append(errs, fmt.Errorf("invalid sequence lengths: %d-%d", c.Sequence.MinLength, c.Sequence.MaxLength))
	}
	if c.Sequence.MinFrequency < 1 {
		errs = append(errs, fmt.Errorf("min_frequency must be positive: %d", c.Sequence.MinFrequency))
	}

	switch c.Dictionary.Source {
	case factory.DictionarySourceMemory, factory.DictionarySourceStorage:
	default:
		errs = append(errs, fmt.Errorf("dictionary source must be 'memory' or 'storage': %q", c.Dictionary.Source))
	}
	switch c.Storage.Type {
	case factory.StorageTypeMemory:
		if c.Dictionary.Path == "" {
			errs = append(errs, errors.New("dictionary path is required with memory storage"))
		}
	case factory.StorageTypeRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis url is required when storage type is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage type must be 'memory' or 'redis': %q", c.Storage.Type))
	}

	if c.Watchdog.Interval < 0 || c.Watchdog.Grace < 0 {
		errs = append(errs, errors.New("watchdog interval and grace must not be negative"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log format must be 'json' or 'text': %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SessionSettings returns the game rules
func (c *Config) SessionSettings() model.SessionSettings {
	teams := make([]string, len(c.Game.Teams))
	for i, t := range c.Game.Teams {
		teams[i] = strings.TrimSpace(t)
	}
	return model.SessionSettings{
		Teams:                   teams,
		StartingLives:           c.Game.StartingLives,
		TurnDuration:            c.Game.TurnDuration,
		MinTeams:                c.Game.MinTeams,
		RetainSequenceOnTimeout: c.Game.RetainSequenceOnTimeout,
	}
}

// SequenceAnalysis returns the frequency analysis settings
func (c *Config) SequenceAnalysis() sequence.Config {
	return sequence.Config{
		MinLength:    c.Sequence.MinLength,
		MaxLength:    c.Sequence.MaxLength,
		MinFrequency: c.Sequence.MinFrequency,
	}
}

// Factory builds the application factory configuration
func (c *Config) Factory(logger *slog.Logger) factory.Config {
	runner := session.DefaultRunnerConfig()
	runner.WatchdogInterval = c.Watchdog.Interval
	runner.WatchdogGrace = c.Watchdog.Grace

	fc := factory.Config{
		Logger:           logger,
		StorageType:      c.Storage.Type,
		DictionaryPath:   c.Dictionary.Path,
		DictionarySource: c.Dictionary.Source,
		SequencePath:     c.Sequence.Path,
		Sequence:         c.SequenceAnalysis(),
		Settings:         c.SessionSettings(),
		Runner:           runner,
	}
	if c.Storage.Type == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.Redis.URL
		redisCfg.PoolSize = c.Redis.PoolSize
		redisCfg.MinIdleConns = c.Redis.MinIdleConns
		redisCfg.MatchTTL = c.Redis.MatchTTL
		redisCfg.MaxHistory = c.Redis.MaxHistory
		fc.RedisConfig = &redisCfg
	}
	return fc
}
