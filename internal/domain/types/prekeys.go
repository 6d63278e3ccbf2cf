package types

import "time"

// KeyBundle is the set of public keys a user publishes to the key directory.
// A peer fetches it read-only to run the handshake.
//
// SigningKey is the Ed25519 key that verifies Signature over SignedPreKey.
type KeyBundle struct {
	IdentityKey  X25519Public  `json:"identityKey"`
	SigningKey   Ed25519Public `json:"signingKey"`
	SignedPreKey X25519Public  `json:"signedPreKey"`
	Signature    []byte        `json:"signature"`
	Username     Username      `json:"username"`
	Timestamp    time.Time     `json:"timestamp"`
}

// PoolEntry is one symmetric key of a one-time key pool.
//
// Consumed is local bookkeeping and is never serialised.
type PoolEntry struct {
	ID       KeyID        `json:"id"`
	Key      SymmetricKey `json:"key"`
	Consumed bool         `json:"-"`
}

// KeyPool is the wire shape of a published pool.
type KeyPool struct {
	Keys []PoolEntry `json:"keys"`
}
