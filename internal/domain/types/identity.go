package types

import "time"

// Identity holds your long-term X25519 agreement keys and the Ed25519 keys
// used to sign the signed pre-key.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// SignedPreKey is the medium-term agreement key pair. Signature is a detached
// Ed25519 signature over exactly the 32 bytes of Pub.
type SignedPreKey struct {
	Pub       X25519Public  `json:"pub"`
	Priv      X25519Private `json:"priv"`
	Signature []byte        `json:"signature"`
}

// IdentityMaterial is everything the local user needs to publish a bundle
// and answer handshakes.
type IdentityMaterial struct {
	Identity     Identity     `json:"identity"`
	SignedPreKey SignedPreKey `json:"signed_pre_key"`
	CreatedAt    time.Time    `json:"created_at"`
}
