package types

import (
	"encoding/base64"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a standard base64 key.
func (p *X25519Public) UnmarshalText(b []byte) error { return unmarshalKey("X25519 public", p[:], b) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a standard base64 key.
func (k *X25519Private) UnmarshalText(b []byte) error {
	return unmarshalKey("X25519 private", k[:], b)
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p Ed25519Public) IsZero() bool { return p == Ed25519Public{} }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a standard base64 key.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return unmarshalKey("Ed25519 public", p[:], b)
}

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a standard base64 key.
func (k *Ed25519Private) UnmarshalText(b []byte) error {
	return unmarshalKey("Ed25519 private", k[:], b)
}

// SymmetricKey is a 32-byte AEAD key: a handshake root key or a pool entry.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// IsZero reports whether the key is unset.
func (k SymmetricKey) IsZero() bool { return k == SymmetricKey{} }

// MarshalText encodes the key as standard base64.
func (k SymmetricKey) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a standard base64 key.
func (k *SymmetricKey) UnmarshalText(b []byte) error { return unmarshalKey("symmetric", k[:], b) }

func marshalKey(k []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(out, k)
	return out, nil
}

func unmarshalKey(kind string, dst, text []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return fmt.Errorf("%s key: %w", kind, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s key: want %d bytes, got %d", kind, len(dst), n)
	}
	copy(dst, raw[:n])
	return nil
}
