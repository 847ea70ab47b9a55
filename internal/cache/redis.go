package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/domain"
)

// ResultStore caches whole TrendResults keyed by the raw vibe string. The
// pipeline writes one entry per run; concurrent runs for the same vibe both
// write, last-write-wins. GetResult bumps the result's cached counter and
// returns a copy that the caller owns outright.
type ResultStore interface {
	GetResult(ctx context.Context, key string) (*domain.TrendResult, bool)
	SetResult(ctx context.Context, key string, result *domain.TrendResult, ttl time.Duration)
}

// MemoryResultStore adapts the generic memory store to the ResultStore
// contract. Default for single-process deployments.
type MemoryResultStore struct {
	store Store

	// mu serializes the cached-counter bump; the backing store's entry is
	// shared across concurrent hits for the same vibe.
	mu sync.Mutex
}

// NewMemoryResultStore wraps store as a ResultStore.
func NewMemoryResultStore(store Store) *MemoryResultStore {
	return &MemoryResultStore{store: store}
}

// GetResult returns a copy of the cached result, or nil/false on a miss. The
// stored entry's cached counter accumulates across hits.
func (s *MemoryResultStore) GetResult(_ context.Context, key string) (*domain.TrendResult, bool) {
	value, ok := s.store.Get("result:" + key)
	if !ok {
		return nil, false
	}
	result, ok := value.(*domain.TrendResult)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	result.Processing.Cached++
	copied := *result
	s.mu.Unlock()
	return &copied, true
}

// SetResult stores a result for ttl.
func (s *MemoryResultStore) SetResult(_ context.Context, key string, result *domain.TrendResult, ttl time.Duration) {
	s.store.Set("result:"+key, result, ttl)
}

// RedisResultStore keeps TrendResults in Redis as JSON so several processes
// can share one analysis cache. Redis being down degrades to cache misses,
// never to request failures.
type RedisResultStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisResultStore creates a ResultStore backed by client.
func NewRedisResultStore(client redis.Cmdable) *RedisResultStore {
	return &RedisResultStore{client: client, prefix: "vibearb:result:"}
}

// GetResult fetches and decodes a cached result.
func (s *RedisResultStore) GetResult(ctx context.Context, key string) (*domain.TrendResult, bool) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Redis result fetch failed")
		}
		return nil, false
	}

	var result domain.TrendResult
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached result")
		return nil, false
	}

	// Each decode is a private copy; the counter marks this serve only.
	result.Processing.Cached++
	return &result, true
}

// SetResult encodes and stores a result for ttl.
func (s *RedisResultStore) SetResult(ctx context.Context, key string, result *domain.TrendResult, ttl time.Duration) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode result for Redis")
		return
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis result write failed")
	}
}
