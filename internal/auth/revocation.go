package auth

// revocation.go defines the revocation store used to invalidate tokens on
// logout. Entries are keyed by token hash and carry a TTL equal to the
// token's remaining lifetime, so the store stays bounded by the number of
// tokens that could still verify. The Redis implementation is the production
// path; the in-memory one serves tests and deployments without Redis.

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore is the time-indexed set of revoked token hashes.
type RevocationStore interface {
	// Revoke marks a token hash as revoked for the given duration.
	// Idempotent; revoking again refreshes the entry.
	Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error
	// IsRevoked reports whether the hash is currently revoked.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	// Purge drops every revocation entry.
	Purge(ctx context.Context) error
}

const revocationKeyPrefix = "revoked:token:"

// RedisRevocationStore keeps revoked token hashes in Redis, letting the
// server expire each entry exactly when the underlying token would have
// expired anyway.
type RedisRevocationStore struct {
	rdb *redis.Client
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error {
	return s.rdb.Set(ctx, revocationKeyPrefix+tokenHash, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revocationKeyPrefix+tokenHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) Purge(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, revocationKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// MemoryRevocationStore is a process-local fallback mapping token hash to
// expiry. Stale entries are evicted lazily on lookup and swept opportunistically
// on writes, so the map never outgrows the set of still-live revocations.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenHash string, ttl time.Duration) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	// Sweep expired entries while we hold the write lock anyway.
	for h, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, h)
		}
	}
	s.entries[tokenHash] = now.Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	s.mu.RLock()
	exp, ok := s.entries[tokenHash]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		// Lazy eviction: the token would no longer verify, drop the entry.
		s.mu.Lock()
		delete(s.entries, tokenHash)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationStore) Purge(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]time.Time)
	s.mu.Unlock()
	return nil
}
