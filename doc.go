// Package kaijuauth provides a login service built on short-lived signed
// tokens, a rotating asymmetric-key keystore, and Redis-backed sessions with
// cookie/header/bearer session resolution.
//
// The package is designed for concurrent server workloads: Service methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// kaijuauth is the public surface. It exposes [Service], [Builder], [Config],
// [Resolver], and value types (MetricsSnapshot, TokenPair). Key lifecycle,
// token signing, and session persistence live in the keystore, token, and
// session sub-packages; the external user-credential check is injected via
// [UserVerifier].
//
// # Failure policy
//
// Credential failures surface uniformly as [ErrNotAuthorized] with a generic
// message; the underlying reason is logged server-side only. Infrastructure
// failures (cache or store outages) never surface as authentication errors:
// key lookups degrade to not-found, session loads degrade to an anonymous
// session, and key publishes are retried by the background maintenance loop.
package kaijuauth
