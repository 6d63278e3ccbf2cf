package interfaces

import (
	"context"

	domaintypes "cipherlink/internal/domain/types"
)

// KeyDirectory publishes and retrieves public key bundles and one-time key
// pools. It is the external key-directory service boundary.
type KeyDirectory interface {
	PublishBundle(ctx context.Context, user domaintypes.UserID, bundle domaintypes.KeyBundle) error
	FetchBundle(ctx context.Context, user domaintypes.UserID) (domaintypes.KeyBundle, error)

	PublishKeyPool(ctx context.Context, user domaintypes.UserID, entries []domaintypes.PoolEntry) error
	FetchKeyPool(ctx context.Context, user domaintypes.UserID) ([]domaintypes.PoolEntry, error)
}

// Transport moves frames between users through the relay queue.
type Transport interface {
	SendFrame(ctx context.Context, frame domaintypes.Frame) error
	FetchFrames(ctx context.Context, user domaintypes.UserID, limit int) ([]domaintypes.Frame, error)
	AckFrames(ctx context.Context, user domaintypes.UserID, ids []string) error
}

// Subscriber delivers frames pushed by the relay as they arrive. Subscribe
// blocks until ctx is done or the connection fails.
type Subscriber interface {
	Subscribe(
		ctx context.Context,
		user domaintypes.UserID,
		handle func(domaintypes.Frame),
	) error
}
