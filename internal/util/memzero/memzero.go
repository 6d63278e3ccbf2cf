// Package memzero wipes key material from memory on a best-effort basis.
package memzero

import (
	"runtime"

	"cipherlink/internal/domain"
)

// Zero overwrites b with zeros.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}

// X25519 wipes a private agreement key in place.
func X25519(k *domain.X25519Private) { Zero(k[:]) }

// Symmetric wipes a symmetric key in place.
func Symmetric(k *domain.SymmetricKey) { Zero(k[:]) }
