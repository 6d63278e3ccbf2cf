package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"cipherlink/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) domain.Fingerprint {
	sum := sha256.Sum256(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}

// SessionTag returns a short, non-secret tag of a root key so two peers can
// compare sessions out of band without revealing the key.
func SessionTag(root domain.SymmetricKey) domain.Fingerprint {
	h, _ := blake2b.New(10, []byte("cipherlink-session-tag"))
	h.Write(root[:])
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
