package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MatchTTL is how long a finished match summary is kept
	MatchTTL time.Duration

	// MaxHistory caps the match history index
	MaxHistory int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MatchTTL:     7 * 24 * time.Hour,
		MaxHistory:   100,
	}
}
