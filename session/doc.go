// Package session provides session records, their Redis-backed persistence,
// and the lifecycle rules separating transient from stored sessions.
//
// A session exists first in memory only (Stored=false); explicit persistence
// through [Manager.Save] makes it durable. Loading an unknown, expired, or
// unreachable session id yields nil rather than an error so callers always
// fall back to a fresh anonymous session.
//
// # Architecture boundaries
//
// This package owns the [Session] model and the [Store] contract. It does NOT
// interpret tokens or verify credentials — those belong to the token package
// and the root service.
package session
