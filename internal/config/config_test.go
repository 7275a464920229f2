package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordbomb/internal/factory"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"Lato", "Biny"}, cfg.Game.Teams)
	assert.Equal(t, 3, cfg.Game.StartingLives)
	assert.Equal(t, 10*time.Second, cfg.Game.TurnDuration)
	assert.Equal(t, 2, cfg.Game.MinTeams)
	assert.False(t, cfg.Game.RetainSequenceOnTimeout)
	assert.Equal(t, 300, cfg.Sequence.MinFrequency)
	assert.Equal(t, factory.StorageTypeMemory, cfg.Storage.Type)
	assert.Equal(t, 2*time.Second, cfg.Watchdog.Grace)
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordbomb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9000
game:
  teams: [Red, Blue, Green]
  starting_lives: 5
  turn_duration: 15s
log:
  level: debug
`), 0o600))

	t.Setenv("WORDBOMB_GAME_STARTING_LIVES", "4")
	t.Setenv("WORDBOMB_LOG_FORMAT", "text")

	cfg, err := Load(newFlags(t, "--config", path, "--http-port", "9100", "--retain-sequence"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.HTTP.Port, "flag beats file")
	assert.Equal(t, 4, cfg.Game.StartingLives, "env beats file")
	assert.Equal(t, []string{"Red", "Blue", "Green"}, cfg.Game.Teams)
	assert.Equal(t, 15*time.Second, cfg.Game.TurnDuration)
	assert.True(t, cfg.Game.RetainSequenceOnTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	settings := cfg.SessionSettings()
	assert.Equal(t, 4, settings.StartingLives)
	assert.True(t, settings.RetainSequenceOnTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"one team", func(c *Config) { c.Game.Teams = []string{"Solo"} }},
		{"duplicate team", func(c *Config) { c.Game.Teams = []string{"Lato", "lato"} }},
		{"team named spectator", func(c *Config) { c.Game.Teams = []string{"Lato", "Spectator"} }},
		{"no lives", func(c *Config) { c.Game.StartingLives = 0 }},
		{"no turn duration", func(c *Config) { c.Game.TurnDuration = 0 }},
		{"bad sequence lengths", func(c *Config) { c.Sequence.MaxLength = 1; c.Sequence.MinLength = 3 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }},
		{"redis without url", func(c *Config) { c.Storage.Type = factory.StorageTypeRedis; c.Redis.URL = "" }},
		{"unknown dictionary source", func(c *Config) { c.Dictionary.Source = "remote" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	base := Default()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFactoryConfig(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = factory.StorageTypeRedis
	cfg.Redis.URL = "redis://cache:6379/1"
	cfg.Dictionary.Source = factory.DictionarySourceStorage

	fc := cfg.Factory(nil)
	require.NotNil(t, fc.RedisConfig)
	assert.Equal(t, "redis://cache:6379/1", fc.RedisConfig.URL)
	assert.Equal(t, factory.DictionarySourceStorage, fc.DictionarySource)
	assert.Equal(t, cfg.Watchdog.Grace, fc.Runner.WatchdogGrace)
	assert.Equal(t, []string{"Lato", "Biny"}, fc.Settings.Teams)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"}, &buf)
	assert.Error(t, err)
}
