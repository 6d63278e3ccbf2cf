package types

// UserID is the opaque identifier a peer is addressed by on the relay and
// in the key directory.
type UserID string

// String returns the string form of the user ID.
func (u UserID) String() string { return string(u) }

// Username is the human-readable display name published in a key bundle.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// KeyID identifies one entry of a one-time key pool. IDs are dense within a
// pool, starting at zero.
type KeyID uint32

// Strategy selects how a session derives its per-message keys.
type Strategy string

const (
	// StrategyHandshake derives one root key per peer with an X3DH-style
	// triple Diffie-Hellman agreement.
	StrategyHandshake Strategy = "handshake"
	// StrategyPool consumes one pre-published symmetric key per message.
	StrategyPool Strategy = "pool"
)

// String returns the string form of the strategy.
func (s Strategy) String() string { return string(s) }

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyHandshake || s == StrategyPool
}
