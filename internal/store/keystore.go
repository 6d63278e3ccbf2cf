package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// keystoreVersion is the newest sealed-blob format this package writes.
const keystoreVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or the blob
// has been modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

// sealedBlob is the on-disk JSON structure holding the ciphertext and KDF
// parameters.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// kdfParams are the scrypt cost parameters.
type kdfParams struct{ N, R, P int }

// defaultKDF is used for everything written to disk. Tests lower it.
var defaultKDF = kdfParams{N: 1 << 15, R: 8, P: 1}

// seal derives a key from passphrase and encrypts raw into a JSON blob. The
// key is bound to a fresh salt, so the zero nonce is never reused.
func seal(passphrase string, raw []byte, kdf kdfParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, errors.Wrap(err, "draw salt")
	}
	aead, err := keystoreAEAD(passphrase, salt[:], kdf)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return json.Marshal(sealedBlob{
		V:      keystoreVersion,
		Salt:   salt[:],
		N:      kdf.N,
		R:      kdf.R,
		P:      kdf.P,
		Cipher: aead.Seal(nil, nonce[:], raw, salt[:]),
	})
}

// unseal opens a blob produced by seal.
func unseal(passphrase string, b []byte) ([]byte, error) {
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, errors.Wrap(err, "decode keystore")
	}
	if bl.V > keystoreVersion {
		return nil, errors.Errorf("unsupported keystore version %d", bl.V)
	}
	aead, err := keystoreAEAD(passphrase, bl.Salt, kdfParams{N: bl.N, R: bl.R, P: bl.P})
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func keystoreAEAD(passphrase string, salt []byte, kdf kdfParams) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, kdf.N, kdf.R, kdf.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "derive keystore key")
	}
	return chacha20poly1305.New(key)
}
