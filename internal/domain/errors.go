package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the session layer. Callers match them with
// errors.Is; every layer wraps rather than replaces them.
var (
	// ErrPeerNotFound means the directory has no bundle or pool for the user.
	ErrPeerNotFound = errors.New("peer not found in key directory")
	// ErrDirectoryUnavailable is a transient directory or network failure.
	ErrDirectoryUnavailable = errors.New("key directory unavailable")

	// ErrInvalidSignature means the signed pre-key signature did not verify.
	ErrInvalidSignature = errors.New("invalid signed pre-key signature")
	// ErrMalformedBundle means a published bundle is missing required fields.
	ErrMalformedBundle = errors.New("malformed key bundle")
	// ErrMalformedHandshake means a handshake header cannot be answered with
	// the local keys.
	ErrMalformedHandshake = errors.New("malformed handshake header")

	// ErrPoolExhausted means every key of the local pool has been consumed.
	ErrPoolExhausted = errors.New("key pool exhausted")
	// ErrNoLocalPool means no pool has been generated for outbound messages.
	ErrNoLocalPool = errors.New("no local key pool")
	// ErrKeyNotFound means a key ID is absent from the local copy of a pool.
	ErrKeyNotFound = errors.New("pool key not found")

	// ErrDecryptionFailed is returned for any AEAD authentication failure.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrMalformedEnvelope means an envelope cannot be decoded or is too short.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrNoSession means there is no usable session with the peer.
	ErrNoSession = errors.New("no session with peer")
	// ErrUnknownStrategy means a strategy name is not recognised.
	ErrUnknownStrategy = errors.New("unknown session strategy")
	// ErrNoIdentity means identity material has not been generated or loaded.
	ErrNoIdentity = errors.New("no local identity")
)

// DirectoryError describes a failed key-directory call. Err is
// ErrPeerNotFound or ErrDirectoryUnavailable, optionally wrapping the cause.
type DirectoryError struct {
	Op     string
	UserID UserID
	Status int
	Err    error
}

func (e *DirectoryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("directory %s %q: status %d: %v", e.Op, e.UserID, e.Status, e.Err)
	}
	return fmt.Sprintf("directory %s %q: %v", e.Op, e.UserID, e.Err)
}

// Unwrap exposes the error kind.
func (e *DirectoryError) Unwrap() error { return e.Err }
