package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// ErrKeyNotFound is returned when no public key exists for a key id, either
// because it never existed or because its cache entry has lapsed.
var ErrKeyNotFound = errors.New("signing key not found")

// KeyMaterial is one signing keypair. The private half never leaves the
// owning Keystore; the public half is published to the shared cache so other
// verifiers can resolve tokens signed with this key after rotation.
type KeyMaterial struct {
	KID      string
	Private  ed25519.PrivateKey
	Public   ed25519.PublicKey
	Deadline time.Time
}

// Expired reports whether the key may no longer be used for signing.
func (k *KeyMaterial) Expired(now time.Time) bool {
	return !now.Before(k.Deadline)
}

// Config defines a public type used by kaijuauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Lifetime is how long a generated key may sign tokens. It is also the
	// TTL of the key's cache entry, so a token whose expiry is clamped to
	// the key deadline can always be verified while it is still valid.
	Lifetime time.Duration

	// RotateInterval is the tick of the background maintenance loop.
	RotateInterval time.Duration

	// RefreshMargin triggers a cache republish when the current key's
	// remaining lifetime drops below it, guarding against a flushed cache.
	RefreshMargin time.Duration

	// OnRotate is invoked after a new key becomes current. Optional.
	OnRotate func()

	// OnPublishError is invoked when a cache publish fails. Optional.
	OnPublishError func()
}

const (
	// DefaultLifetime is an exported constant or variable used by the keystore.
	DefaultLifetime = 24 * time.Hour
	// MinLifetime is the lifetime floor applied by the service configuration;
	// shorter rotation would churn the cache faster than outstanding tokens
	// can drain.
	MinLifetime = time.Hour
	// DefaultRotateInterval is an exported constant or variable used by the keystore.
	DefaultRotateInterval = time.Minute
	// DefaultRefreshMargin is an exported constant or variable used by the keystore.
	DefaultRefreshMargin = 5 * time.Minute
)

// Keystore owns exactly one current signing keypair and keeps the public
// half of every still-relevant key resolvable by key id.
//
// Reads (SigningKey fast path, PublicKey fast path) go through an atomic
// pointer and never block on rotation; only key generation itself is
// serialized. No lock is held across cache I/O.
type Keystore struct {
	cfg     Config
	cache   Cache
	log     logr.Logger
	current atomic.Pointer[KeyMaterial]
	genMu   sync.Mutex
}

// New describes the new operation and its observable behavior.
//
// New validates and defaults cfg; the returned Keystore performs no I/O
// until SigningKey, PublicKey, or Run is called.
func New(cfg Config, cache Cache, log logr.Logger) (*Keystore, error) {
	if cache == nil {
		return nil, errors.New("keystore requires a cache")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.RotateInterval <= 0 {
		cfg.RotateInterval = DefaultRotateInterval
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	return &Keystore{
		cfg:   cfg,
		cache: cache,
		log:   log,
	}, nil
}

// SigningKey returns the current key material, generating a new keypair
// first if none exists yet or the current one has passed its deadline.
func (k *Keystore) SigningKey(ctx context.Context) (*KeyMaterial, error) {
	if cur := k.current.Load(); cur != nil && !cur.Expired(time.Now()) {
		return cur, nil
	}
	return k.rotateIfExpired(ctx)
}

// PublicKey resolves the public key for kid. The currently active key is
// served from memory; anything else goes through the shared cache. A cache
// outage is treated as not-found so verification degrades to a clean
// authentication failure instead of an infrastructure error.
func (k *Keystore) PublicKey(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	if cur := k.current.Load(); cur != nil && cur.KID == kid && !cur.Expired(time.Now()) {
		return cur.Public, nil
	}

	raw, err := k.cache.GetKey(ctx, kid)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			k.log.V(1).Info("public key cache lookup failed", "kid", kid, "err", err.Error())
		}
		return nil, ErrKeyNotFound
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: corrupt cache entry for kid %s", ErrKeyNotFound, kid)
	}
	return ed25519.PublicKey(raw), nil
}

// rotateIfExpired replaces the current key only when it is still missing or
// expired after the lock is acquired; the loser of a generation race observes
// the winner's key instead of generating a second one.
func (k *Keystore) rotateIfExpired(ctx context.Context) (*KeyMaterial, error) {
	k.genMu.Lock()
	if cur := k.current.Load(); cur != nil && !cur.Expired(time.Now()) {
		// another caller rotated while we waited on the lock
		k.genMu.Unlock()
		return cur, nil
	}
	return k.rotateLocked(ctx)
}

// Rotate unconditionally generates a new keypair, makes it current, and
// publishes its public half. Use it for explicit rotation, including
// emergency rotation of a compromised key; the previous public key stays
// resolvable from the cache until its TTL lapses.
func (k *Keystore) Rotate(ctx context.Context) (*KeyMaterial, error) {
	k.genMu.Lock()
	return k.rotateLocked(ctx)
}

// rotateLocked generates and installs a new key. The caller must hold genMu;
// it is released before the cache publish.
func (k *Keystore) rotateLocked(ctx context.Context) (*KeyMaterial, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		k.genMu.Unlock()
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	km := &KeyMaterial{
		KID:      uuid.NewString(),
		Private:  priv,
		Public:   pub,
		Deadline: time.Now().Add(k.cfg.Lifetime),
	}
	k.current.Store(km)
	k.genMu.Unlock()

	k.publish(ctx, km, k.cfg.Lifetime)
	if k.cfg.OnRotate != nil {
		k.cfg.OnRotate()
	}
	k.log.V(1).Info("signing key rotated", "kid", km.KID, "deadline", km.Deadline)
	return km, nil
}

// publish pushes the public key to the shared cache. Failure is logged and
// non-fatal: the key stays valid in memory for signing and for the local
// verification fast path.
func (k *Keystore) publish(ctx context.Context, km *KeyMaterial, ttl time.Duration) {
	if err := k.cache.PutKey(ctx, km.KID, km.Public, ttl); err != nil {
		if k.cfg.OnPublishError != nil {
			k.cfg.OnPublishError()
		}
		k.log.Error(err, "public key publish failed", "kid", km.KID)
	}
}

// Run drives background key maintenance until ctx is cancelled: on every
// tick the current key is republished when its remaining lifetime falls
// below the refresh margin, or replaced outright once its deadline passes.
func (k *Keystore) Run(ctx context.Context) {
	ticker := time.NewTicker(k.cfg.RotateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.maintain(ctx)
		}
	}
}

func (k *Keystore) maintain(ctx context.Context) {
	cur := k.current.Load()
	if cur == nil {
		// nothing issued yet; generate lazily on first SigningKey call
		return
	}

	now := time.Now()
	if cur.Expired(now) {
		if _, err := k.rotateIfExpired(ctx); err != nil {
			k.log.Error(err, "background key rotation failed")
		}
		return
	}
	if remaining := cur.Deadline.Sub(now); remaining < k.cfg.RefreshMargin {
		k.publish(ctx, cur, remaining)
	}
}
