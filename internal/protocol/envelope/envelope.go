package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"cipherlink/internal/domain"
)

const (
	// NonceSize is the XChaCha20-Poly1305 nonce length.
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the Poly1305 authentication tag length.
	TagSize = chacha20poly1305.Overhead
	// KeyIDSize is the trailing little-endian key ID length in pool envelopes.
	KeyIDSize = 4

	minHandshakeLen = NonceSize + TagSize
	minPoolLen      = NonceSize + TagSize + KeyIDSize
)

// Seal encrypts plaintext under key and returns base64(nonce || ciphertext).
// Every call draws a fresh random nonce.
func Seal(plaintext []byte, key domain.SymmetricKey) (string, error) {
	raw, err := seal(plaintext, key, 0)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SealWithKeyID encrypts plaintext under a pool key and returns
// base64(nonce || ciphertext || keyID), keyID little-endian.
func SealWithKeyID(plaintext []byte, key domain.SymmetricKey, id domain.KeyID) (string, error) {
	raw, err := seal(plaintext, key, KeyIDSize)
	if err != nil {
		return "", err
	}
	raw = binary.LittleEndian.AppendUint32(raw, uint32(id))
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Open decodes and decrypts a handshake envelope.
func Open(env string, key domain.SymmetricKey) ([]byte, error) {
	raw, err := decode(env, minHandshakeLen)
	if err != nil {
		return nil, err
	}
	return open(raw[:NonceSize], raw[NonceSize:], key)
}

// KeyIDOf returns the key ID trailing a pool envelope.
func KeyIDOf(env string) (domain.KeyID, error) {
	raw, err := decode(env, minPoolLen)
	if err != nil {
		return 0, err
	}
	return keyID(raw), nil
}

// OpenWithKeyID decodes a pool envelope, resolves its key through lookup and
// decrypts it. Errors from lookup are returned unchanged.
func OpenWithKeyID(
	env string,
	lookup func(domain.KeyID) (domain.SymmetricKey, error),
) ([]byte, domain.KeyID, error) {
	raw, err := decode(env, minPoolLen)
	if err != nil {
		return nil, 0, err
	}
	id := keyID(raw)
	key, err := lookup(id)
	if err != nil {
		return nil, id, err
	}
	body := raw[:len(raw)-KeyIDSize]
	pt, err := open(body[:NonceSize], body[NonceSize:], key)
	return pt, id, err
}

func seal(plaintext []byte, key domain.SymmetricKey, extra int) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Slice())
	if err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize+extra)
	if _, err := rand.Read(out); err != nil {
		return nil, errors.Wrap(err, "draw nonce")
	}
	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

func open(nonce, ciphertext []byte, key domain.SymmetricKey) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Slice())
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return pt, nil
}

func decode(env string, minLen int) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(env)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformedEnvelope, "base64")
	}
	if len(raw) < minLen {
		return nil, errors.Wrapf(domain.ErrMalformedEnvelope, "%d bytes, need at least %d", len(raw), minLen)
	}
	return raw, nil
}

func keyID(raw []byte) domain.KeyID {
	return domain.KeyID(binary.LittleEndian.Uint32(raw[len(raw)-KeyIDSize:]))
}
