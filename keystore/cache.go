package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKeyPrefix is the namespace under which public keys are published.
// The full cache key for a keypair is CacheKeyPrefix + kid.
const CacheKeyPrefix = "keystore.pkey."

// ErrCacheUnavailable is returned when the backing cache cannot be reached.
var ErrCacheUnavailable = errors.New("key cache unavailable")

// Cache is the shared public-key cache. Implementations must treat PutKey
// as an upsert and expire entries after ttl.
type Cache interface {
	PutKey(ctx context.Context, kid string, pub []byte, ttl time.Duration) error
	// GetKey returns ErrKeyNotFound for absent or expired entries.
	GetKey(ctx context.Context, kid string) ([]byte, error)
}

// RedisCache publishes public keys to Redis under "keystore.pkey.{kid}".
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache describes the newrediscache operation and its observable behavior.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// PutKey describes the putkey operation and its observable behavior.
func (c *RedisCache) PutKey(ctx context.Context, kid string, pub []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, CacheKeyPrefix+kid, pub, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// GetKey describes the getkey operation and its observable behavior.
func (c *RedisCache) GetKey(ctx context.Context, kid string) ([]byte, error) {
	raw, err := c.client.Get(ctx, CacheKeyPrefix+kid).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return raw, nil
}

type memoryEntry struct {
	pub      []byte
	deadline time.Time
}

// MemoryCache is a process-local Cache for tests and single-node setups
// where no remote verifier needs the published keys.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache describes the newmemorycache operation and its observable behavior.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// PutKey describes the putkey operation and its observable behavior.
func (c *MemoryCache) PutKey(_ context.Context, kid string, pub []byte, ttl time.Duration) error {
	cp := make([]byte, len(pub))
	copy(cp, pub)

	c.mu.Lock()
	c.entries[kid] = memoryEntry{pub: cp, deadline: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// GetKey describes the getkey operation and its observable behavior.
func (c *MemoryCache) GetKey(_ context.Context, kid string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if time.Now().After(entry.deadline) {
		delete(c.entries, kid)
		return nil, ErrKeyNotFound
	}
	return entry.pub, nil
}

// Drop removes a cached key immediately, simulating TTL lapse. Test helper.
func (c *MemoryCache) Drop(kid string) {
	c.mu.Lock()
	delete(c.entries, kid)
	c.mu.Unlock()
}
