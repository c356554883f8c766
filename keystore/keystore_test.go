package keystore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

type failingCache struct {
	puts int
}

func (c *failingCache) PutKey(context.Context, string, []byte, time.Duration) error {
	c.puts++
	return ErrCacheUnavailable
}

func (c *failingCache) GetKey(context.Context, string) ([]byte, error) {
	return nil, ErrCacheUnavailable
}

func newTestKeystore(t *testing.T, cfg Config, cache Cache) *Keystore {
	t.Helper()

	if cache == nil {
		cache = NewMemoryCache()
	}
	ks, err := New(cfg, cache, logr.Discard())
	if err != nil {
		t.Fatalf("keystore init failed: %v", err)
	}
	return ks
}

func TestSigningKeyGeneratesAndPublishes(t *testing.T) {
	cache := NewMemoryCache()
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, cache)

	km, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if km.KID == "" {
		t.Fatal("expected non-empty kid")
	}
	if !km.Deadline.After(time.Now()) {
		t.Fatal("expected deadline in the future")
	}

	pub, err := cache.GetKey(context.Background(), km.KID)
	if err != nil {
		t.Fatalf("published key not found in cache: %v", err)
	}
	if !bytes.Equal(pub, km.Public) {
		t.Fatal("cached public key does not match key material")
	}
}

func TestSigningKeyStableAcrossCalls(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, nil)

	first, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	second, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if first.KID != second.KID {
		t.Fatalf("kid changed between calls: %s vs %s", first.KID, second.KID)
	}
}

func TestSigningKeyRegeneratesAfterDeadline(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: 20 * time.Millisecond}, nil)

	first, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	second, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if first.KID == second.KID {
		t.Fatal("expected a new key after deadline")
	}
}

func TestPublicKeyFastPathSkipsCache(t *testing.T) {
	// a broken cache must not affect resolution of the current key
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, &failingCache{})

	km, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}

	pub, err := ks.PublicKey(context.Background(), km.KID)
	if err != nil {
		t.Fatalf("fast path lookup failed: %v", err)
	}
	if !bytes.Equal(pub, km.Public) {
		t.Fatal("fast path returned wrong key")
	}
}

func TestRotateReplacesUnexpiredKey(t *testing.T) {
	// explicit rotation must swap the key even when the current one is
	// nowhere near its deadline
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, nil)

	first, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	rotated, err := ks.Rotate(context.Background())
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if rotated.KID == first.KID {
		t.Fatal("explicit rotation returned the old key unchanged")
	}

	current, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if current.KID != rotated.KID {
		t.Fatalf("rotated key not current: %s vs %s", current.KID, rotated.KID)
	}
}

func TestPublicKeyResolvesRotatedKeyFromCache(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, nil)

	old, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}
	if _, err := ks.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	pub, err := ks.PublicKey(context.Background(), old.KID)
	if err != nil {
		t.Fatalf("rotated-out key not resolvable: %v", err)
	}
	if !bytes.Equal(pub, old.Public) {
		t.Fatal("cache returned wrong key for rotated-out kid")
	}
}

func TestPublicKeyUnknownKid(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, nil)

	if _, err := ks.PublicKey(context.Background(), "no-such-kid"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestPublicKeyCacheOutageIsNotFound(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, &failingCache{})

	if _, err := ks.PublicKey(context.Background(), "some-kid"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound on cache outage, got %v", err)
	}
}

func TestPublishFailureIsNonFatal(t *testing.T) {
	cache := &failingCache{}
	failures := 0
	cfg := Config{
		Lifetime:       time.Hour,
		OnPublishError: func() { failures++ },
	}
	ks := newTestKeystore(t, cfg, cache)

	if _, err := ks.SigningKey(context.Background()); err != nil {
		t.Fatalf("SigningKey must survive a publish failure: %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected one publish attempt, got %d", cache.puts)
	}
	if failures != 1 {
		t.Fatalf("expected one publish error callback, got %d", failures)
	}
}

func TestConcurrentSigningKeySingleWinner(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour}, nil)

	const workers = 32
	kids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			km, err := ks.SigningKey(context.Background())
			if err != nil {
				t.Errorf("SigningKey failed: %v", err)
				return
			}
			kids[i] = km.KID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if kids[i] != kids[0] {
			t.Fatalf("concurrent callers observed different keys: %s vs %s", kids[0], kids[i])
		}
	}
}

func TestMaintainRepublishesNearDeadline(t *testing.T) {
	cache := NewMemoryCache()
	// remaining lifetime is always below the margin, so every maintain tick
	// must republish
	ks := newTestKeystore(t, Config{Lifetime: time.Hour, RefreshMargin: 2 * time.Hour}, cache)

	km, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}

	cache.Drop(km.KID)
	ks.maintain(context.Background())

	if _, err := cache.GetKey(context.Background(), km.KID); err != nil {
		t.Fatalf("expected key republished by maintain, got %v", err)
	}
}

func TestMaintainRotatesExpiredKey(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: 20 * time.Millisecond}, nil)

	first, err := ks.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	ks.maintain(context.Background())

	second := ks.current.Load()
	if second == nil || second.KID == first.KID {
		t.Fatal("expected maintain to rotate the expired key")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ks := newTestKeystore(t, Config{Lifetime: time.Hour, RotateInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ks.Run(ctx)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
