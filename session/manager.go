package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/karudo/kaijuauth/internal"
)

const (
	// DefaultTTL is an exported constant or variable used by the session manager.
	DefaultTTL = 24 * time.Hour
	// DefaultRenewWindow is an exported constant or variable used by the session manager.
	DefaultRenewWindow = time.Hour
)

// Config defines a public type used by kaijuauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// TTL is the session lifetime applied on creation, save, and renewal.
	TTL time.Duration

	// RenewWindow extends a loaded session's expiry when its remaining
	// lifetime has dropped below this idle-renewal threshold.
	RenewWindow time.Duration

	// DefaultPermissions seeds every fresh anonymous session, e.g. a guest
	// permission set. Usually empty.
	DefaultPermissions []string
}

// Manager implements session lifecycle over a Store. Safe for concurrent use;
// individual Session values are not, and must stay confined to one request.
type Manager struct {
	cfg   Config
	store Store
	log   logr.Logger
}

// NewManager describes the newmanager operation and its observable behavior.
func NewManager(cfg Config, store Store, log logr.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RenewWindow <= 0 {
		cfg.RenewWindow = DefaultRenewWindow
	}
	if cfg.RenewWindow > cfg.TTL {
		cfg.RenewWindow = cfg.TTL
	}
	return &Manager{cfg: cfg, store: store, log: log}, nil
}

// New constructs a fresh anonymous session with a random id. The session is
// transient until explicitly saved.
func (m *Manager) New(userAgent string) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	var perms []string
	if len(m.cfg.DefaultPermissions) > 0 {
		perms = append([]string(nil), m.cfg.DefaultPermissions...)
	}

	now := time.Now()
	return &Session{
		ID:          sid.String(),
		Permissions: perms,
		UserAgent:   userAgent,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(m.cfg.TTL).Unix(),
		Changed:     true,
	}, nil
}

// Load resolves id against the backing store. Absent, expired, corrupt, or
// unreachable all yield (nil, nil): the caller falls back to a fresh
// anonymous session, never an error. A loaded session inside its idle-renewal
// window gets its expiry extended and re-persisted.
func (m *Manager) Load(ctx context.Context, id, userAgent string) (*Session, error) {
	if _, err := internal.ParseSessionID(id); err != nil {
		return nil, nil
	}

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.log.V(1).Info("session load degraded to absent", "id", id, "err", err.Error())
		}
		return nil, nil
	}

	now := time.Now()
	if rec.ExpiresAt <= now.Unix() {
		return nil, nil
	}

	sess := &Session{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Permissions: rec.Permissions,
		UserAgent:   userAgent,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Stored:      true,
	}

	if time.Unix(rec.ExpiresAt, 0).Sub(now) < m.cfg.RenewWindow {
		sess.ExpiresAt = now.Add(m.cfg.TTL).Unix()
		sess.Changed = true
		if err := m.Save(ctx, sess); err != nil {
			// renewal is best effort; the loaded session stays usable
			m.log.V(1).Info("session renewal failed", "id", id, "err", err.Error())
		}
	}
	return sess, nil
}

// Save upserts the session's persisted projection and marks it stored.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl <= 0 {
		ttl = m.cfg.TTL
		sess.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	rec := &Record{
		ID:          sess.ID,
		UserID:      sess.UserID,
		Permissions: sess.Permissions,
		CreatedAt:   sess.CreatedAt,
		ExpiresAt:   sess.ExpiresAt,
	}
	if err := m.store.Set(ctx, rec, ttl); err != nil {
		return err
	}
	sess.Stored = true
	sess.Changed = false
	return nil
}

// Delete removes the session record. Idempotent: deleting a session that was
// never stored, or whose record already vanished, is not an error.
func (m *Manager) Delete(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return err
	}
	sess.Stored = false
	return nil
}
