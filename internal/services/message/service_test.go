package message_test

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/domain"
	"cipherlink/internal/relay"
	"cipherlink/internal/services/handshake"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/services/keypool"
	"cipherlink/internal/services/message"
	"cipherlink/internal/services/prekey"
	"cipherlink/internal/services/session"
	"cipherlink/internal/store"
)

// flakyDirectory fails bundle fetches while down is set.
type flakyDirectory struct {
	domain.KeyDirectory
	down atomic.Bool
}

func (f *flakyDirectory) FetchBundle(ctx context.Context, user domain.UserID) (domain.KeyBundle, error) {
	if f.down.Load() {
		return domain.KeyBundle{}, &domain.DirectoryError{
			Op: "fetch bundle", UserID: user, Err: domain.ErrDirectoryUnavailable,
		}
	}
	return f.KeyDirectory.FetchBundle(ctx, user)
}

func newClient(t *testing.T, id domain.UserID, dir domain.KeyDirectory, tr domain.Transport) *message.Service {
	t.Helper()
	ids := identity.New(nil, nil)
	_, _, err := ids.Generate()
	require.NoError(t, err)
	_, err = prekey.New(ids, dir, nil, nil).Publish(context.Background(), id, domain.Username(id))
	require.NoError(t, err)

	sessions := store.NewMemorySessionStore()
	mgr := session.New(
		session.Config{LocalUser: id, Strategy: domain.StrategyHandshake},
		ids, dir, handshake.New(sessions, nil), keypool.New(dir, nil, nil), sessions, nil,
	)
	return message.New(id, mgr, tr, nil)
}

func TestSendReceive(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory()
	alice := newClient(t, "alice", r, r)
	bob := newClient(t, "bob", r, r)

	for _, text := range []string{"hi", "how are you"} {
		_, err := alice.SendMessage(ctx, "bob", []byte(text))
		require.NoError(t, err)
	}

	msgs, err := bob.ReceiveMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", string(msgs[0].Plaintext))
	require.Equal(t, "how are you", string(msgs[1].Plaintext))
	require.Equal(t, domain.UserID("alice"), msgs[0].From)
	require.NotEmpty(t, msgs[0].ID)

	left, err := r.FetchFrames(ctx, "bob", 0)
	require.NoError(t, err)
	require.Empty(t, left)

	_, err = bob.SendMessage(ctx, "alice", []byte("fine"))
	require.NoError(t, err)
	msgs, err = alice.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "fine", string(msgs[0].Plaintext))
}

func TestReceive_UnreadableFrameIsAcked(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory()
	alice := newClient(t, "alice", r, r)
	bob := newClient(t, "bob", r, r)

	f, err := alice.SendMessage(ctx, "bob", []byte("first"))
	require.NoError(t, err)

	// Queue a corrupted copy behind the real frame.
	raw, err := base64.StdEncoding.DecodeString(f.EncryptedMessage)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	bad := f
	bad.ID = ""
	bad.EncryptedMessage = base64.StdEncoding.EncodeToString(raw)
	require.NoError(t, r.SendFrame(ctx, bad))

	_, err = alice.SendMessage(ctx, "bob", []byte("third"))
	require.NoError(t, err)

	msgs, err := bob.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", string(msgs[0].Plaintext))
	require.ErrorIs(t, msgs[1].Err, domain.ErrDecryptionFailed)
	require.Nil(t, msgs[1].Plaintext)
	require.Equal(t, "third", string(msgs[2].Plaintext))

	left, err := r.FetchFrames(ctx, "bob", 0)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestReceive_RetryableFailureLeavesQueued(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory()
	dir := &flakyDirectory{KeyDirectory: r}

	alice := newClient(t, "alice", r, r)
	bob := newClient(t, "bob", dir, r)

	_, err := alice.SendMessage(ctx, "bob", []byte("one"))
	require.NoError(t, err)
	_, err = alice.SendMessage(ctx, "bob", []byte("two"))
	require.NoError(t, err)

	dir.down.Store(true)
	msgs, err := bob.ReceiveMessages(ctx, 0)
	require.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	require.Empty(t, msgs)

	left, err := r.FetchFrames(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, left, 2)

	dir.down.Store(false)
	msgs, err = bob.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "two", string(msgs[1].Plaintext))
}

func TestSend_UnknownPeer(t *testing.T) {
	r := relay.NewMemory()
	alice := newClient(t, "alice", r, r)

	_, err := alice.SendMessage(context.Background(), "ghost", []byte("boo"))
	require.ErrorIs(t, err, domain.ErrPeerNotFound)

	left, err := r.FetchFrames(context.Background(), "ghost", 0)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestListen_PushedFrames(t *testing.T) {
	r := relay.NewMemory()
	alice := newClient(t, "alice", r, r)
	bob := newClient(t, "bob", r, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.DecryptedMessage, 16)
	go func() { _ = bob.Listen(ctx, r, func(m domain.DecryptedMessage) { got <- m }) }()

	require.Eventually(t, func() bool {
		_, err := alice.SendMessage(context.Background(), "bob", []byte("pushed"))
		require.NoError(t, err)
		select {
		case m := <-got:
			return string(m.Plaintext) == "pushed"
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPermanent(t *testing.T) {
	require.True(t, message.Permanent(domain.ErrDecryptionFailed))
	require.True(t, message.Permanent(&domain.DirectoryError{Err: domain.ErrPeerNotFound}))
	require.False(t, message.Permanent(&domain.DirectoryError{Err: domain.ErrDirectoryUnavailable}))
	require.False(t, message.Permanent(context.DeadlineExceeded))
}
