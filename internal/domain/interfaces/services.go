package interfaces

import (
	"context"

	domaintypes "cipherlink/internal/domain/types"
)

// IdentityService creates, persists and exposes the local identity material.
type IdentityService interface {
	Generate() (domaintypes.IdentityMaterial, domaintypes.Fingerprint, error)
	Current() (domaintypes.IdentityMaterial, bool)
	Persist(passphrase string) error
	Load(passphrase string) (domaintypes.IdentityMaterial, error)
	Fingerprint() (domaintypes.Fingerprint, error)
}

// PreKeyService assembles and publishes your key bundle.
type PreKeyService interface {
	Bundle(username domaintypes.Username) (domaintypes.KeyBundle, error)
	Publish(
		ctx context.Context,
		user domaintypes.UserID,
		username domaintypes.Username,
	) (domaintypes.KeyBundle, error)
}

// HandshakeService runs the triple Diffie-Hellman agreement on either side.
type HandshakeService interface {
	Establish(
		local domaintypes.IdentityMaterial,
		peer domaintypes.UserID,
		bundle domaintypes.KeyBundle,
	) (domaintypes.Session, error)
	Accept(
		local domaintypes.IdentityMaterial,
		peer domaintypes.UserID,
		header domaintypes.HandshakeHeader,
	) (domaintypes.Session, error)
	Derive(
		local domaintypes.IdentityMaterial,
		header domaintypes.HandshakeHeader,
	) (domaintypes.SymmetricKey, error)
}

// KeyPoolService generates, publishes, downloads and consumes one-time keys.
type KeyPoolService interface {
	GeneratePool(size int) ([]domaintypes.PoolEntry, error)
	PublishPool(ctx context.Context, user domaintypes.UserID, size int) ([]domaintypes.PoolEntry, error)
	DownloadPool(ctx context.Context, peer domaintypes.UserID) (domaintypes.PoolSession, error)
	SelectKeyForEncryption() (domaintypes.PoolEntry, error)
	LookupKeyForDecryption(
		pool domaintypes.PoolSession,
		id domaintypes.KeyID,
	) (domaintypes.PoolEntry, error)
	Remaining() int
}

// SessionService ensures sessions exist and seals/opens frames with them.
type SessionService interface {
	EnsureSession(
		ctx context.Context,
		peer domaintypes.UserID,
		strategy domaintypes.Strategy,
	) (domaintypes.Session, error)
	HasSession(peer domaintypes.UserID) bool
	EncryptFor(ctx context.Context, peer domaintypes.UserID, plaintext []byte) (domaintypes.Frame, error)
	DecryptFrom(ctx context.Context, peer domaintypes.UserID, frame domaintypes.Frame) ([]byte, error)
	Forget(peer domaintypes.UserID) error
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendMessage(ctx context.Context, to domaintypes.UserID, plaintext []byte) (domaintypes.Frame, error)
	ReceiveMessages(ctx context.Context, limit int) ([]domaintypes.DecryptedMessage, error)
	HandleFrame(ctx context.Context, frame domaintypes.Frame) domaintypes.DecryptedMessage
}
