// Package keystore owns the rotating asymmetric signing keypair and the shared
// public-key cache that keeps tokens verifiable across rotations.
//
// # Rotation model
//
// Exactly one keypair is current at a time. Its public half is published to the
// cache under "keystore.pkey.{kid}" with a TTL equal to the key lifetime, so a
// token whose expiry is clamped to the key deadline can always find its
// verification key for as long as the token itself is valid. Rotation replaces
// the current keypair but never withdraws a published public key; old entries
// simply age out of the cache.
//
// # Architecture boundaries
//
// This package owns [KeyMaterial] and the [Cache] contract. It does NOT sign or
// parse tokens — token semantics belong to the token package.
package keystore
