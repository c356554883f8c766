package kaijuauth

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/karudo/kaijuauth/keystore"
	"github.com/karudo/kaijuauth/session"
	"github.com/karudo/kaijuauth/token"
)

// Builder defines a public type used by kaijuauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger logr.Logger

	users        UserVerifier
	keyCache     keystore.Cache
	sessionStore session.Store

	built bool
}

// New describes the new operation and its observable behavior.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: logr.Discard(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing both the public-key cache and
// the session store, unless either is overridden explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(log logr.Logger) *Builder {
	b.logger = log
	return b
}

// WithUserVerifier describes the withuserverifier operation and its observable behavior.
func (b *Builder) WithUserVerifier(users UserVerifier) *Builder {
	b.users = users
	return b
}

// WithKeyCache overrides the public-key cache, e.g. with a MemoryCache for
// single-node deployments or tests.
func (b *Builder) WithKeyCache(cache keystore.Cache) *Builder {
	b.keyCache = cache
	return b
}

// WithSessionStore overrides the session backing store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build wires the keystore, token service, and session manager, starts the
// background key-maintenance loop, and returns the ready Service. The caller
// owns the Service and must Close it on shutdown.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user verifier is required")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	keyCache := b.keyCache
	if keyCache == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or explicit key cache is required")
		}
		keyCache = keystore.NewRedisCache(b.redis)
	}
	sessionStore := b.sessionStore
	if sessionStore == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or explicit session store is required")
		}
		sessionStore = session.NewRedisStore(b.redis, b.config.Session.RedisPrefix)
	}

	metrics := NewMetrics(b.config.Metrics)

	keyLifetime := b.config.Keystore.KeyLifetime
	if keyLifetime != 0 && keyLifetime < keystore.MinLifetime {
		keyLifetime = keystore.MinLifetime
	}
	keys, err := keystore.New(keystore.Config{
		Lifetime:       keyLifetime,
		RotateInterval: b.config.Keystore.RotateInterval,
		RefreshMargin:  b.config.Keystore.RefreshMargin,
		OnRotate:       func() { metrics.Inc(MetricKeyRotated) },
		OnPublishError: func() { metrics.Inc(MetricKeyPublishFailure) },
	}, keyCache, b.logger.WithName("keystore"))
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewService(token.Config{
		AccessTTL:  b.config.Token.AccessTTL,
		RefreshTTL: b.config.Token.RefreshTTL,
	}, keys, b.logger.WithName("token"))
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(session.Config{
		TTL:                b.config.Session.TTL,
		RenewWindow:        b.config.Session.RenewWindow,
		DefaultPermissions: b.config.Session.DefaultPermissions,
	}, sessionStore, b.logger.WithName("session"))
	if err != nil {
		return nil, err
	}

	keysCtx, stopKeys := context.WithCancel(context.Background())
	svc := &Service{
		config:   b.config,
		keys:     keys,
		tokens:   tokens,
		sessions: sessions,
		users:    b.users,
		metrics:  metrics,
		log:      b.logger,
		stopKeys: stopKeys,
		keysDone: make(chan struct{}),
	}
	go func() {
		defer close(svc.keysDone)
		keys.Run(keysCtx)
	}()

	b.built = true
	return svc, nil
}
