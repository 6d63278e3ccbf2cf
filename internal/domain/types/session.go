package types

import "time"

// Session is the per-peer key state. Exactly one of Handshake and Pool is
// set, matching Strategy.
type Session struct {
	Peer      UserID            `json:"peer"`
	Strategy  Strategy          `json:"strategy"`
	Handshake *HandshakeSession `json:"handshake,omitempty"`
	Pool      *PoolSession      `json:"pool,omitempty"`
}

// HandshakeSession holds the root key derived by the triple Diffie-Hellman
// agreement with a peer.
//
// For the initiator, EphemeralPublic/EphemeralPrivate are our own ephemeral
// pair. For the responder, EphemeralPublic is the initiator's ephemeral key
// and EphemeralPrivate is zero.
//
// LocalIdentityKey is our identity key when the session was made. A session
// whose LocalIdentityKey is not the current identity key is stale.
type HandshakeSession struct {
	RootKey          SymmetricKey  `json:"root_key"`
	LocalIdentityKey X25519Public  `json:"local_identity_key"`
	EphemeralPrivate X25519Private `json:"ephemeral_private"`
	EphemeralPublic  X25519Public  `json:"ephemeral_public"`
	PeerIdentityKey  X25519Public  `json:"peer_identity_key"`
	PeerSignedPreKey X25519Public  `json:"peer_signed_pre_key"`
	Initiator        bool          `json:"initiator"`
	EstablishedAt    time.Time     `json:"established_at"`
}

// PoolSession holds the local copy of a peer's published key pool, used to
// decrypt messages that peer sends us.
type PoolSession struct {
	Entries      []PoolEntry `json:"entries"`
	DownloadedAt time.Time   `json:"downloaded_at"`
}
