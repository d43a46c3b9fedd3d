// Package idempotency deduplicates traveler creation requests carrying an
// X-Idempotency-Key header. A replayed request with the same key and body
// gets the originally created traveler back instead of a duplicate.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexusmfg/traveler/model"
)

// Store provides deduplication for traveler creation. The key format is
// "idem:traveler:{key}".
type Store interface {
	// Check looks up a previous result by key. If the key exists and the
	// input hash matches, it returns the cached traveler. If the key
	// exists but the hash differs, it returns a CONFLICT error.
	Check(ctx context.Context, key string, inputHash string) (result *model.Traveler, found bool, err error)

	// Store saves a created traveler keyed by the idempotency key with a
	// TTL.
	Store(ctx context.Context, key string, inputHash string, result model.Traveler, ttl time.Duration) error
}

// entry is the stored value for an idempotency key.
type entry struct {
	InputHash string         `json:"input_hash"`
	Result    model.Traveler `json:"result"`
}

// HashInput digests a request body for input comparison.
func HashInput(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// FormatKey builds the standard idempotency key.
func FormatKey(key string) string {
	return "idem:traveler:" + key
}

// MemoryStore is an in-memory idempotency Store with TTL support. Suitable
// for testing and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	data      entry
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

// Check looks up a cached result. Returns a conflict error if the input
// hash differs.
func (s *MemoryStore) Check(_ context.Context, key string, inputHash string) (*model.Traveler, bool, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if e.data.InputHash != inputHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with different input", key),
		)
	}

	result := e.data.Result
	return &result, true, nil
}

// Store saves a result with TTL.
func (s *MemoryStore) Store(_ context.Context, key string, inputHash string, result model.Traveler, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memEntry{
		data:      entry{InputHash: inputHash, Result: result},
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisStore is a Redis-backed idempotency Store with TTL.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a new Redis-backed idempotency store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Check looks up a cached result in Redis. Returns a conflict error if the
// input hash differs.
func (s *RedisStore) Check(ctx context.Context, key string, inputHash string) (*model.Traveler, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("unmarshal idempotency entry %q: %w", key, err)
	}
	if e.InputHash != inputHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with different input", key),
		)
	}
	return &e.Result, true, nil
}

// Store saves a result in Redis with TTL.
func (s *RedisStore) Store(ctx context.Context, key string, inputHash string, result model.Traveler, ttl time.Duration) error {
	data, err := json.Marshal(entry{InputHash: inputHash, Result: result})
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// HealthCheck verifies Redis connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
