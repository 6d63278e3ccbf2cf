// Package crypto exposes the minimal primitives used by cipherlink.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     PublicX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Random symmetric keys and uniform indices (RandomKey, RandomIndex)
//   - Short public-key fingerprints and session tags for display (Fingerprint,
//     SessionTag)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Secrets should be wiped with
// internal/util/memzero when practical.
package crypto
