package kaijuauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/karudo/kaijuauth/keystore"
	"github.com/karudo/kaijuauth/session"
	"github.com/karudo/kaijuauth/token"
)

// UserVerifier is the external user-credential collaborator. Password
// hashing, user storage, and group membership live behind it.
type UserVerifier interface {
	// VerifyUser checks a username/password pair and returns the user id.
	// Any failure, credential or infrastructure, must come back as an error.
	VerifyUser(ctx context.Context, username, password string) (string, error)

	// UserPermissions resolves the permission set for a user id.
	UserPermissions(ctx context.Context, userID string) ([]string, error)
}

// TokenPair is an access/refresh pair minted by the stateless login flows.
type TokenPair = token.Pair

// Service orchestrates credential verification into sessions and token
// pairs. All methods are safe for concurrent use after Build.
type Service struct {
	config   Config
	keys     *keystore.Keystore
	tokens   *token.Service
	sessions *session.Manager
	users    UserVerifier
	metrics  *Metrics
	log      logr.Logger

	stopKeys context.CancelFunc
	keysDone chan struct{}
}

// Close stops the background key-maintenance loop and waits for it to exit.
func (s *Service) Close() {
	if s == nil || s.stopKeys == nil {
		return
	}
	s.stopKeys()
	<-s.keysDone
	s.stopKeys = nil
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// PasswordAuth authenticates a username/password pair and returns a fresh
// authenticated session. Password auth always starts a new session — any
// previously resolved session for the request is abandoned — and persists it
// (stored = true), since this is the cookie-login flow.
func (s *Service) PasswordAuth(ctx context.Context, username, password string) (*session.Session, error) {
	sess, err := s.verifyIntoSession(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		// store outage degrades to a transient session; the login itself
		// succeeded and must not fail on infrastructure
		s.log.V(1).Info("session persist failed after login", "id", sess.ID, "err", err.Error())
	} else {
		s.metrics.Inc(MetricSessionPersisted)
	}

	setContextSession(ctx, sess)
	s.metrics.Inc(MetricLoginSuccess)
	return sess, nil
}

// BasicAuth authenticates a "login:password" string, raw or base64-encoded,
// and returns a fresh unstored session.
func (s *Service) BasicAuth(ctx context.Context, authString string) (*session.Session, error) {
	if !s.config.EnableBasicAuth {
		s.metrics.Inc(MetricMethodDisabled)
		return nil, ErrMethodNotAllowed
	}

	username, password, err := parseBasicAuth(authString)
	if err != nil {
		s.failLogin("malformed basic auth string", err)
		return nil, ErrNotAuthorized
	}

	sess, err := s.verifyIntoSession(ctx, username, password)
	if err != nil {
		return nil, err
	}

	setContextSession(ctx, sess)
	s.metrics.Inc(MetricLoginSuccess)
	return sess, nil
}

// TokenAuth verifies a bearer token and builds a fresh unstored session from
// its claims. No store round-trip: identity and permissions come from the
// token itself.
func (s *Service) TokenAuth(ctx context.Context, tokenString string) (*session.Session, error) {
	if !s.config.EnableTokenAuth {
		s.metrics.Inc(MetricMethodDisabled)
		return nil, ErrMethodNotAllowed
	}
	if s.tokens == nil || s.sessions == nil {
		return nil, ErrServiceNotReady
	}

	claims, err := s.tokens.Verify(ctx, tokenString)
	if err != nil {
		s.metrics.Inc(MetricTokenVerifyFailure)
		s.failLogin("token verification failed", err)
		if errors.Is(err, token.ErrMalformed) {
			return nil, ErrInvalidToken
		}
		return nil, ErrNotAuthorized
	}

	sess, err := s.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	sess.Authenticate(claims.UID, claims.Permissions)

	setContextSession(ctx, sess)
	s.metrics.Inc(MetricLoginSuccess)
	return sess, nil
}

// AuthFromAuthString dispatches an Authorization header value: "Bearer "
// routes to TokenAuth, "Basic " to BasicAuth, anything else is rejected.
func (s *Service) AuthFromAuthString(ctx context.Context, value string) (*session.Session, error) {
	switch {
	case strings.HasPrefix(value, "Bearer "):
		return s.TokenAuth(ctx, strings.TrimPrefix(value, "Bearer "))
	case strings.HasPrefix(value, "Basic "):
		return s.BasicAuth(ctx, strings.TrimPrefix(value, "Basic "))
	default:
		s.failLogin("unsupported authorization scheme", nil)
		return nil, fmt.Errorf("%w: unsupported authentication type", ErrNotAuthorized)
	}
}

// Token authenticates a username/password pair and mints a token pair whose
// claims embed the user id and permission set. Stateless: no server-side
// session is created or persisted.
func (s *Service) Token(ctx context.Context, username, password string) (TokenPair, error) {
	uid, perms, err := s.verifyUser(ctx, username, password)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.tokens.Pair(ctx, token.Claims{UID: uid, Permissions: perms})
	if err != nil {
		return TokenPair{}, fmt.Errorf("mint token pair: %w", err)
	}
	s.metrics.Inc(MetricTokenIssued)
	return pair, nil
}

// RefreshToken re-issues a token pair from a valid refresh token. Pure
// delegation to the token service; sessions are not touched.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !s.config.EnableTokenAuth {
		s.metrics.Inc(MetricMethodDisabled)
		return TokenPair{}, ErrMethodNotAllowed
	}
	if s.tokens == nil {
		return TokenPair{}, ErrServiceNotReady
	}

	pair, err := s.tokens.RefreshPair(ctx, refreshToken)
	if err != nil {
		s.metrics.Inc(MetricTokenVerifyFailure)
		s.failLogin("refresh token rejected", err)
		if errors.Is(err, token.ErrMalformed) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, ErrNotAuthorized
	}
	s.metrics.Inc(MetricTokenRefreshed)
	return pair, nil
}

// Logout deletes the session from the store if it was ever persisted, and
// replaces the request's active session with a fresh anonymous one. When
// sess is nil the active session is taken from ctx.
func (s *Service) Logout(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if sess == nil {
		sess = SessionFromContext(ctx)
	}

	if sess != nil && sess.Stored {
		if err := s.sessions.Delete(ctx, sess); err != nil {
			s.log.V(1).Info("session delete failed on logout", "id", sess.ID, "err", err.Error())
		}
	}

	fresh, err := s.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	setContextSession(ctx, fresh)
	s.metrics.Inc(MetricLogout)
	return fresh, nil
}

// NewSession constructs a fresh anonymous session for the request.
func (s *Service) NewSession(ctx context.Context) (*session.Session, error) {
	if s.sessions == nil {
		return nil, ErrServiceNotReady
	}
	sess, err := s.sessions.New(userAgentFromContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.Inc(MetricSessionCreated)
	return sess, nil
}

// LoadSession resolves a presented session id, falling back to nil when the
// id is unknown, expired, or the store is unreachable.
func (s *Service) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.sessions.Load(ctx, id, userAgentFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if sess != nil {
		s.metrics.Inc(MetricSessionLoaded)
	}
	return sess, nil
}

// SaveSession persists the session's projected state.
func (s *Service) SaveSession(ctx context.Context, sess *session.Session) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		return err
	}
	s.metrics.Inc(MetricSessionPersisted)
	return nil
}

// verifyUser runs the external credential check and permission resolution.
// Every failure surfaces uniformly as ErrNotAuthorized.
func (s *Service) verifyUser(ctx context.Context, username, password string) (string, []string, error) {
	if s.users == nil {
		return "", nil, ErrServiceNotReady
	}

	uid, err := s.users.VerifyUser(ctx, username, password)
	if err != nil {
		s.failLogin("credential verification failed", err)
		return "", nil, ErrNotAuthorized
	}

	perms, err := s.users.UserPermissions(ctx, uid)
	if err != nil {
		s.failLogin("permission resolution failed", err)
		return "", nil, ErrNotAuthorized
	}
	return uid, perms, nil
}

func (s *Service) verifyIntoSession(ctx context.Context, username, password string) (*session.Session, error) {
	uid, perms, err := s.verifyUser(ctx, username, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	sess.Authenticate(uid, perms)
	return sess, nil
}

// failLogin records the server-side reason for an authentication failure.
// The client only ever sees the generic ErrNotAuthorized.
func (s *Service) failLogin(reason string, err error) {
	s.metrics.Inc(MetricLoginFailure)
	if err != nil {
		s.log.V(1).Info("authentication failed", "reason", reason, "err", err.Error())
	} else {
		s.log.V(1).Info("authentication failed", "reason", reason)
	}
}

// parseBasicAuth accepts "login:password" either raw or base64-encoded. The
// raw form wins: any string containing a literal ':' is split as-is, and only
// colon-free input gets one base64 decode attempt.
func parseBasicAuth(authString string) (string, string, error) {
	if strings.Contains(authString, ":") {
		parts := strings.SplitN(authString, ":", 2)
		return parts[0], parts[1], nil
	}

	decoded, err := base64.StdEncoding.DecodeString(authString)
	if err != nil {
		return "", "", fmt.Errorf("basic auth string is neither raw nor base64: %w", err)
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", errors.New("basic auth string contains no separator")
	}
	return parts[0], parts[1], nil
}
