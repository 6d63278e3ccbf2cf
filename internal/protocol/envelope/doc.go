// Package envelope seals and opens individual messages under a session key.
//
// The AEAD is XChaCha20-Poly1305 with a random 24-byte nonce per message and
// no associated data. Envelopes are base64 strings of
//
//	nonce(24) || ciphertext                  handshake sessions
//	nonce(24) || ciphertext || keyID(4, LE)  pool sessions
//
// Any authentication failure is reported as domain.ErrDecryptionFailed
// without detail. Input that cannot be decoded or is shorter than the fixed
// overhead is domain.ErrMalformedEnvelope.
package envelope
