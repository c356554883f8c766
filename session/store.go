package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned by Store.Get for absent or expired ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Record is the persisted projection of a Session. Internal-only fields
// (user agent, dirty flags) are deliberately excluded.
type Record struct {
	ID          string   `json:"id"`
	UserID      string   `json:"uid,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	CreatedAt   int64    `json:"created"`
	ExpiresAt   int64    `json:"expires"`
}

// Store is the backing session store: get/set/delete by id. Every call may
// fail independently; callers must have an explicit failure path.
type Store interface {
	// Get returns ErrSessionNotFound for absent ids and ErrStoreUnavailable
	// when the backend cannot be reached.
	Get(ctx context.Context, id string) (*Record, error)
	Set(ctx context.Context, rec *Record, ttl time.Duration) error
	// Delete is idempotent; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}

// RedisStore persists session records as JSON values with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session."
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get describes the get operation and its observable behavior.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// corrupt blob: treat as absent, the caller falls back to anonymous
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// Set describes the set operation and its observable behavior.
func (s *RedisStore) Set(ctx context.Context, rec *Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+rec.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete describes the delete operation and its observable behavior.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

type memoryItem struct {
	rec      Record
	deadline time.Time
}

// MemoryStore is a process-local Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

// Get describes the get operation and its observable behavior.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(item.deadline) {
		delete(s.items, id)
		return nil, ErrSessionNotFound
	}
	rec := item.rec
	return &rec, nil
}

// Set describes the set operation and its observable behavior.
func (s *MemoryStore) Set(_ context.Context, rec *Record, ttl time.Duration) error {
	s.mu.Lock()
	s.items[rec.ID] = memoryItem{rec: *rec, deadline: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete describes the delete operation and its observable behavior.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
