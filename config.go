package kaijuauth

import (
	"errors"
	"time"
)

// Config defines a public type used by kaijuauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token    TokenConfig
	Keystore KeystoreConfig
	Session  SessionConfig
	Resolver ResolverConfig
	Metrics  MetricsConfig

	// EnableBasicAuth gates the Basic authorization flow.
	EnableBasicAuth bool
	// EnableTokenAuth gates the Bearer token flow.
	EnableTokenAuth bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by kaijuauth APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL  time.Duration // default 600s, floor 60s
	RefreshTTL time.Duration // default 43200s, floor = AccessTTL
}

/*
====================================
KEYSTORE CONFIG
====================================
*/

// KeystoreConfig defines a public type used by kaijuauth APIs.
//
// KeystoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type KeystoreConfig struct {
	KeyLifetime    time.Duration // default 86400s, floor 3600s
	RotateInterval time.Duration // default 60s
	RefreshMargin  time.Duration // default 300s
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by kaijuauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	TTL                time.Duration
	RenewWindow        time.Duration
	RedisPrefix        string
	DefaultPermissions []string
}

/*
====================================
RESOLVER CONFIG
====================================
*/

// ResolverConfig defines a public type used by kaijuauth APIs.
//
// ResolverConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResolverConfig struct {
	// SessionHeader is the dedicated session-id header.
	SessionHeader string

	// Environment and AppName form the session cookie name
	// "{env}-{app}-session".
	Environment string
	AppName     string

	// InsecureCookie drops the Secure cookie attribute for local debugging.
	InsecureCookie bool
}

// CookieName describes the cookiename operation and its observable behavior.
func (c ResolverConfig) CookieName() string {
	return c.Environment + "-" + c.AppName + "-session"
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by kaijuauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the documented defaults: 600s access tokens, 43200s
// refresh tokens, 86400s signing keys checked every 60s, 24h sessions, both
// auth modes enabled.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  10 * time.Minute,
			RefreshTTL: 12 * time.Hour,
		},
		Keystore: KeystoreConfig{
			KeyLifetime:    24 * time.Hour,
			RotateInterval: time.Minute,
			RefreshMargin:  5 * time.Minute,
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RenewWindow: time.Hour,
			RedisPrefix: "session.",
		},
		Resolver: ResolverConfig{
			SessionHeader: "X-Session-Id",
			Environment:   "prod",
			AppName:       "kaiju",
		},
		Metrics:         MetricsConfig{Enabled: true},
		EnableBasicAuth: true,
		EnableTokenAuth: true,
	}
}

func (c *Config) validate() error {
	if c.Token.AccessTTL < 0 || c.Token.RefreshTTL < 0 {
		return errors.New("negative token TTL")
	}
	if c.Keystore.KeyLifetime < 0 || c.Keystore.RotateInterval < 0 || c.Keystore.RefreshMargin < 0 {
		return errors.New("negative keystore duration")
	}
	if c.Session.TTL < 0 || c.Session.RenewWindow < 0 {
		return errors.New("negative session duration")
	}
	if c.Resolver.SessionHeader == "" {
		return errors.New("empty session header name")
	}
	if c.Resolver.Environment == "" || c.Resolver.AppName == "" {
		return errors.New("empty cookie environment or app name")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.DefaultPermissions = append([]string(nil), cfg.Session.DefaultPermissions...)
	return out
}
