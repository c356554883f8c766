package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"

	"github.com/karudo/kaijuauth/keystore"
)

var (
	// ErrMalformed is returned for tokens that cannot be parsed at all.
	ErrMalformed = errors.New("malformed token")
	// ErrRejected is returned when a structurally valid token fails
	// verification: bad signature, unknown or rotated-out key id, or expiry.
	ErrRejected = errors.New("token rejected")
)

const (
	// DefaultAccessTTL is an exported constant or variable used by the token service.
	DefaultAccessTTL = 10 * time.Minute
	// MinAccessTTL is an exported constant or variable used by the token service.
	MinAccessTTL = time.Minute
	// DefaultRefreshTTL is an exported constant or variable used by the token service.
	DefaultRefreshTTL = 12 * time.Hour
)

// Claims is the payload carried by both token flavors. UID and Permissions
// are the fields the auth core depends on; Extra is an open extension map
// for caller data.
type Claims struct {
	UID         string         `json:"uid,omitempty"`
	Permissions []string       `json:"perms,omitempty"`
	Extra       map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair issued against one signing key.
type Pair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Config defines a public type used by kaijuauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service issues and verifies token pairs. Safe for concurrent use.
type Service struct {
	cfg  Config
	keys *keystore.Keystore
	log  logr.Logger
}

// NewService describes the newservice operation and its observable behavior.
//
// NewService applies the documented TTL defaults and floors: access defaults
// to 600s with a 60s floor, refresh defaults to 43200s and is never shorter
// than the access TTL.
func NewService(cfg Config, keys *keystore.Keystore, log logr.Logger) (*Service, error) {
	if keys == nil {
		return nil, errors.New("token service requires a keystore")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.AccessTTL < MinAccessTTL {
		cfg.AccessTTL = MinAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		cfg.RefreshTTL = cfg.AccessTTL
	}
	return &Service{cfg: cfg, keys: keys, log: log}, nil
}

// Access issues a short-lived access token for claims.
func (s *Service) Access(ctx context.Context, claims Claims) (string, error) {
	km, err := s.keys.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	return s.sign(km, claims, s.cfg.AccessTTL)
}

// Refresh issues a long-lived refresh token for claims.
func (s *Service) Refresh(ctx context.Context, claims Claims) (string, error) {
	km, err := s.keys.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	return s.sign(km, claims, s.cfg.RefreshTTL)
}

// Pair issues an access and refresh token against a single signing-key
// snapshot, so both tokens of a pair always share one kid even when a
// rotation lands between the two signatures.
func (s *Service) Pair(ctx context.Context, claims Claims) (Pair, error) {
	km, err := s.keys.SigningKey(ctx)
	if err != nil {
		return Pair{}, err
	}

	access, err := s.sign(km, claims, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(km, claims, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Verify checks signature, expiry, and claim structure, and returns the
// embedded claims. The public key is resolved by the token's kid header via
// the keystore; a kid that has rotated out of the cache fails verification.
func (s *Service) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrMalformed)
		}
		pub, err := s.keys.PublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown kid %s", ErrRejected, kid)
		}
		return pub, nil
	})
	if err != nil {
		s.log.V(1).Info("token verification failed", "err", err.Error())
		switch {
		case errors.Is(err, ErrMalformed), errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, ErrRejected
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrRejected
	}
	return claims, nil
}

// RefreshPair verifies refreshToken and re-issues a fresh pair carrying the
// same claims, signed by the current key. A caller refreshing after a
// rotation is migrated onto the new key transparently.
//
// Access and refresh tokens share one claim shape and differ only by TTL, so
// any still-valid token of the pair is accepted here. Callers that need to
// restrict refreshing to the refresh flavor should stamp a distinguishing
// claim into Extra at issuance and check it before calling.
func (s *Service) RefreshPair(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := s.Verify(ctx, refreshToken)
	if err != nil {
		return Pair{}, err
	}

	next := *claims
	next.IssuedAt = nil
	next.ExpiresAt = nil
	next.NotBefore = nil
	return s.Pair(ctx, next)
}

// sign stamps iat/exp and signs claims with km. The expiry is clamped to the
// key deadline so the token cannot outlive its verification key's cache TTL.
func (s *Service) sign(km *keystore.KeyMaterial, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	exp := now.Add(ttl)
	if exp.After(km.Deadline) {
		exp = km.Deadline
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = km.KID

	signed, err := tok.SignedString(km.Private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
