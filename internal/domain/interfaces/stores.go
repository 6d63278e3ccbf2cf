package interfaces

import domaintypes "cipherlink/internal/domain/types"

// IdentityStore persists your long-term identity material.
type IdentityStore interface {
	SaveIdentity(passphrase string, material domaintypes.IdentityMaterial) error
	LoadIdentity(passphrase string) (domaintypes.IdentityMaterial, error)
}

// PoolStore persists the local outbound key pool and its consumed flags, so
// a restarted sender never reuses a key.
type PoolStore interface {
	SavePool(entries []domaintypes.PoolEntry) error
	LoadPool() ([]domaintypes.PoolEntry, bool, error)
	MarkConsumed(id domaintypes.KeyID) error
}

// SessionStore is the single source of truth for per-peer sessions.
type SessionStore interface {
	SaveSession(peer domaintypes.UserID, session domaintypes.Session) error
	LoadSession(peer domaintypes.UserID) (domaintypes.Session, bool, error)
	DeleteSession(peer domaintypes.UserID) error
	Peers() ([]domaintypes.UserID, error)
}

// BundleStore caches the last bundle you published.
type BundleStore interface {
	SaveBundle(bundle domaintypes.KeyBundle) error
	LoadBundle() (domaintypes.KeyBundle, bool, error)
}
