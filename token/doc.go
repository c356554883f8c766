// Package token issues and verifies signed access/refresh token pairs bound to
// the keystore's rotating signing key.
//
// Tokens are compact JWS (Ed25519) with the signing key id in the "kid" header.
// A token's expiry is clamped to its signing key's deadline: a token can never
// outlive the cache visibility of the only key able to verify it.
//
// # Architecture boundaries
//
// This package owns [Claims], [Pair], and the signing/verification rules. It
// does NOT manage key lifecycle (keystore) or sessions (session).
package token
