// Package store provides local persistence for cipherlink clients.
//
// File stores serialise JSON under the user's configured home directory and
// replace files atomically. Identity material is sealed with a key derived
// from a passphrase (scrypt, ChaCha20-Poly1305). All methods are safe for
// concurrent use.
//
// The package includes:
//   - IdentityFileStore for identity and signed pre-key material
//   - PoolFileStore for the outbound one-time key pool
//   - BundleFileStore for the last published bundle
//   - MemorySessionStore and SessionFileStore for per-peer sessions
package store
