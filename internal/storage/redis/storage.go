package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection is alive
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Dictionary operations

func (s *Storage) GetDictionaryWords(ctx context.Context) ([]string, error) {
	key := dictionaryKey()

	// Check if dictionary exists
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrDictionaryNotLoaded
	}

	return s.client.SMembers(ctx, key).Result()
}

func (s *Storage) SaveDictionaryWords(ctx context.Context, words []string) error {
	key := dictionaryKey()

	// Delete existing dictionary and add new words atomically
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(words) > 0 {
		pipe.SAdd(ctx, key, toMembers(words)...)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) HasDictionaryWord(ctx context.Context, word string) (bool, error) {
	return s.client.SIsMember(ctx, dictionaryKey(), word).Result()
}

// Sequence operations

func (s *Storage) GetSequences(ctx context.Context) ([]string, error) {
	sequences, err := s.client.LRange(ctx, sequencesKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(sequences) == 0 {
		return nil, model.ErrNoSequences
	}
	return sequences, nil
}

func (s *Storage) SaveSequences(ctx context.Context, sequences []string) error {
	key := sequencesKey()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(sequences) > 0 {
		pipe.RPush(ctx, key, toMembers(sequences)...)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, match *model.MatchSummary) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}

	// Save the summary and push it onto the capped index together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, matchKey(match.ID), data, s.cfg.MatchTTL)
	pipe.LRem(ctx, matchIndexKey(), 0, match.ID)
	pipe.LPush(ctx, matchIndexKey(), match.ID)
	if s.cfg.MaxHistory > 0 {
		pipe.LTrim(ctx, matchIndexKey(), 0, s.cfg.MaxHistory-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetMatch(ctx context.Context, id string) (*model.MatchSummary, error) {
	data, err := s.client.Get(ctx, matchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrMatchNotFound
		}
		return nil, err
	}

	var match model.MatchSummary
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *Storage) ListMatches(ctx context.Context, limit int) ([]*model.MatchSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.LRange(ctx, matchIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.MatchSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = matchKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	matches := make([]*model.MatchSummary, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Summary may have expired
		}
		var match model.MatchSummary
		if err := json.Unmarshal([]byte(str), &match); err != nil {
			continue // Skip invalid data
		}
		matches = append(matches, &match)
	}
	return matches, nil
}

func toMembers(values []string) []interface{} {
	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}
	return members
}
