package session

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/envelope"
	"cipherlink/internal/services/handshake"
)

// Config is the per-user configuration of a Manager.
type Config struct {
	// LocalUser is the ID frames are sent from. It also breaks handshake
	// glare: when both sides initiated, the lower ID keeps its session.
	LocalUser domain.UserID
	// Strategy is used by EncryptFor.
	Strategy domain.Strategy
}

// Manager is the entry point of the session layer. It makes sure a session
// exists for a peer and seals or opens frames with it.
type Manager struct {
	cfg        Config
	identity   domain.IdentityService
	directory  domain.KeyDirectory
	handshakes domain.HandshakeService
	pools      domain.KeyPoolService
	sessions   domain.SessionStore
	logger     *zap.Logger
	now        func() time.Time

	inflight singleflight.Group
}

// New returns a Manager.
func New(
	cfg Config,
	identity domain.IdentityService,
	directory domain.KeyDirectory,
	handshakes domain.HandshakeService,
	pools domain.KeyPoolService,
	sessions domain.SessionStore,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = domain.StrategyHandshake
	}
	return &Manager{
		cfg:        cfg,
		identity:   identity,
		directory:  directory,
		handshakes: handshakes,
		pools:      pools,
		sessions:   sessions,
		logger:     logger.With(zap.Namespace("session"), zap.Stringer("local", cfg.LocalUser)),
		now:        time.Now,
	}
}

// EnsureSession returns the session with peer for strategy, establishing it
// first if needed. Establishment and acceptance for one peer never overlap;
// concurrent callers for the same peer and strategy share one establishment.
func (m *Manager) EnsureSession(
	ctx context.Context,
	peer domain.UserID,
	strategy domain.Strategy,
) (domain.Session, error) {
	if !strategy.Valid() {
		return domain.Session{}, errors.Wrapf(domain.ErrUnknownStrategy, "%q", strategy)
	}
	if sess, ok, err := m.lookup(peer, strategy); err != nil || ok {
		return sess, err
	}
	return m.exclusive(ctx, peer, strategy.String(), func() (domain.Session, error) {
		// Another caller may have finished between the check above and here.
		if sess, ok, err := m.lookup(peer, strategy); err != nil || ok {
			return sess, err
		}
		return m.establish(ctx, peer, strategy)
	})
}

// flight is the result shared by the callers of one gated run. kind names
// the work it did.
type flight struct {
	kind string
	sess domain.Session
	err  error
}

// exclusive runs fn as the only gated run for peer. A caller that finds a
// run of the same kind in flight shares its result; one that finds a run of
// another kind waits for it and tries again.
func (m *Manager) exclusive(
	ctx context.Context,
	peer domain.UserID,
	kind string,
	fn func() (domain.Session, error),
) (domain.Session, error) {
	for {
		v, _, shared := m.inflight.Do(peer.String(), func() (any, error) {
			sess, err := fn()
			return flight{kind: kind, sess: sess, err: err}, nil
		})
		f := v.(flight)
		if f.kind == kind {
			if shared {
				m.logger.Debug("joined in-flight run", zap.Stringer("peer", peer), zap.String("kind", kind))
			}
			return f.sess, f.err
		}
		if err := ctx.Err(); err != nil {
			return domain.Session{}, err
		}
	}
}

// HasSession reports whether any session with peer exists.
func (m *Manager) HasSession(peer domain.UserID) bool {
	_, ok := m.Session(peer)
	return ok
}

// Session returns the stored session with peer.
func (m *Manager) Session(peer domain.UserID) (domain.Session, bool) {
	sess, ok, err := m.load(peer)
	if err != nil {
		m.logger.Warn("failed to load session", zap.Stringer("peer", peer), zap.Error(err))
		return domain.Session{}, false
	}
	return sess, ok
}

// Peers lists the peers we hold a current session with.
func (m *Manager) Peers() ([]domain.UserID, error) {
	peers, err := m.sessions.Peers()
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserID, 0, len(peers))
	for _, p := range peers {
		if _, ok, err := m.load(p); err != nil {
			return nil, err
		} else if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Forget drops the session with peer. The next send establishes a new one.
func (m *Manager) Forget(peer domain.UserID) error {
	return m.sessions.DeleteSession(peer)
}

// EncryptFor seals plaintext for peer with the configured strategy.
//
// Handshake frames from the initiator carry the handshake header so the
// peer can derive the same root key. Pool frames are sealed with a key from
// our own published pool.
func (m *Manager) EncryptFor(ctx context.Context, peer domain.UserID, plaintext []byte) (domain.Frame, error) {
	frame := domain.Frame{
		From:      m.cfg.LocalUser,
		To:        peer,
		Strategy:  m.cfg.Strategy,
		Timestamp: m.now().Unix(),
	}

	switch m.cfg.Strategy {
	case domain.StrategyHandshake:
		sess, err := m.EnsureSession(ctx, peer, domain.StrategyHandshake)
		if err != nil {
			return domain.Frame{}, err
		}
		hs := sess.Handshake
		env, err := envelope.Seal(plaintext, hs.RootKey)
		if err != nil {
			return domain.Frame{}, err
		}
		frame.EncryptedMessage = env
		if hs.Initiator {
			local, ok := m.identity.Current()
			if !ok {
				return domain.Frame{}, domain.ErrNoIdentity
			}
			hdr := handshake.HeaderFor(local, hs)
			frame.Handshake = &hdr
		}

	case domain.StrategyPool:
		e, err := m.pools.SelectKeyForEncryption()
		if err != nil {
			return domain.Frame{}, errors.Wrap(err, "select pool key")
		}
		env, err := envelope.SealWithKeyID(plaintext, e.Key, e.ID)
		if err != nil {
			return domain.Frame{}, err
		}
		frame.EncryptedMessage = env

	default:
		return domain.Frame{}, errors.Wrapf(domain.ErrUnknownStrategy, "%q", m.cfg.Strategy)
	}
	return frame, nil
}

// DecryptFrom opens a frame peer sent us. A frame that fails to
// authenticate never changes the stored session.
func (m *Manager) DecryptFrom(ctx context.Context, peer domain.UserID, frame domain.Frame) ([]byte, error) {
	switch frame.Strategy {
	case domain.StrategyHandshake:
		if frame.Handshake != nil {
			return m.openWithHeader(ctx, peer, *frame.Handshake, frame.EncryptedMessage)
		}
		sess, ok, err := m.load(peer)
		if err != nil {
			return nil, err
		}
		if !ok || sess.Handshake == nil {
			return nil, errors.Wrapf(domain.ErrNoSession, "handshake frame from %s", peer)
		}
		return envelope.Open(frame.EncryptedMessage, sess.Handshake.RootKey)

	case domain.StrategyPool:
		return m.openPool(ctx, peer, frame.EncryptedMessage)

	default:
		return nil, errors.Wrapf(domain.ErrUnknownStrategy, "%q", frame.Strategy)
	}
}

// openWithHeader handles a frame from a handshake initiator.
func (m *Manager) openWithHeader(
	ctx context.Context,
	peer domain.UserID,
	hdr domain.HandshakeHeader,
	env string,
) ([]byte, error) {
	local, ok := m.identity.Current()
	if !ok {
		return nil, domain.ErrNoIdentity
	}
	hs, err := m.handshakeWith(peer)
	if err != nil {
		return nil, err
	}
	if accepted(hs, hdr) {
		return envelope.Open(env, hs.RootKey)
	}

	if err := m.verifySender(ctx, peer, hdr.IdentityKey, hs); err != nil {
		return nil, err
	}
	root, err := m.handshakes.Derive(local, hdr)
	if err != nil {
		return nil, err
	}
	pt, err := envelope.Open(env, root)
	if err != nil {
		return nil, err
	}

	kind := "accept/" + hex.EncodeToString(hdr.EphemeralKey.Slice())
	_, err = m.exclusive(ctx, peer, kind, func() (domain.Session, error) {
		// An establishment may have run while we decrypted.
		hs, err := m.handshakeWith(peer)
		if err != nil {
			return domain.Session{}, err
		}
		if accepted(hs, hdr) {
			return domain.Session{}, nil
		}
		// Both sides initiated. The lower user ID keeps its own session; the
		// other side adopts it when it sees our header.
		if hs != nil && hs.Initiator && hs.PeerIdentityKey == hdr.IdentityKey && m.cfg.LocalUser < peer {
			m.logger.Debug("handshake glare, keeping our session", zap.Stringer("peer", peer))
			return domain.Session{}, nil
		}
		return m.handshakes.Accept(local, peer, hdr)
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// handshakeWith returns the current handshake session with peer, or nil.
func (m *Manager) handshakeWith(peer domain.UserID) (*domain.HandshakeSession, error) {
	sess, ok, err := m.load(peer)
	if err != nil || !ok {
		return nil, err
	}
	return sess.Handshake, nil
}

// accepted reports whether hs is the responder session for hdr.
func accepted(hs *domain.HandshakeSession, hdr domain.HandshakeHeader) bool {
	return hs != nil && !hs.Initiator &&
		hs.EphemeralPublic == hdr.EphemeralKey && hs.PeerIdentityKey == hdr.IdentityKey
}

// verifySender checks that the identity key in a handshake header belongs to
// peer according to the key directory.
func (m *Manager) verifySender(
	ctx context.Context,
	peer domain.UserID,
	identityKey domain.X25519Public,
	known *domain.HandshakeSession,
) error {
	if known != nil && known.PeerIdentityKey == identityKey {
		return nil
	}
	b, err := m.directory.FetchBundle(ctx, peer)
	if err != nil {
		return errors.Wrapf(err, "verify identity of %s", peer)
	}
	if b.IdentityKey != identityKey {
		return errors.Wrapf(domain.ErrMalformedHandshake, "identity key of %s does not match directory", peer)
	}
	return nil
}

// openPool decrypts with our copy of peer's pool, downloading it again once
// if the key ID is unknown (the peer may have published a new pool).
func (m *Manager) openPool(ctx context.Context, peer domain.UserID, env string) ([]byte, error) {
	sess, err := m.EnsureSession(ctx, peer, domain.StrategyPool)
	if err != nil {
		return nil, err
	}
	pt, id, err := envelope.OpenWithKeyID(env, m.poolLookup(sess.Pool))
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return pt, err
	}

	m.logger.Debug("unknown pool key, refreshing", zap.Stringer("peer", peer), zap.Uint32("id", uint32(id)))
	sess, err = m.exclusive(ctx, peer, "refresh/pool", func() (domain.Session, error) {
		return m.establish(ctx, peer, domain.StrategyPool)
	})
	if err != nil {
		return nil, err
	}
	pt, _, err = envelope.OpenWithKeyID(env, m.poolLookup(sess.Pool))
	return pt, err
}

func (m *Manager) poolLookup(ps *domain.PoolSession) func(domain.KeyID) (domain.SymmetricKey, error) {
	return func(id domain.KeyID) (domain.SymmetricKey, error) {
		e, err := m.pools.LookupKeyForDecryption(*ps, id)
		return e.Key, err
	}
}

// load returns the stored session with peer. A handshake session made under
// another local identity is reported as absent; the next establishment or
// acceptance overwrites it.
func (m *Manager) load(peer domain.UserID) (domain.Session, bool, error) {
	sess, ok, err := m.sessions.LoadSession(peer)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	if sess.Handshake == nil {
		return sess, true, nil
	}
	local, have := m.identity.Current()
	if !have || sess.Handshake.LocalIdentityKey == local.Identity.XPub {
		return sess, true, nil
	}
	m.logger.Debug("ignoring session made under a previous identity", zap.Stringer("peer", peer))
	return domain.Session{}, false, nil
}

func (m *Manager) lookup(peer domain.UserID, strategy domain.Strategy) (domain.Session, bool, error) {
	sess, ok, err := m.load(peer)
	if err != nil || !ok || sess.Strategy != strategy {
		return domain.Session{}, false, err
	}
	switch strategy {
	case domain.StrategyHandshake:
		ok = sess.Handshake != nil
	case domain.StrategyPool:
		ok = sess.Pool != nil
	}
	return sess, ok, nil
}

func (m *Manager) establish(ctx context.Context, peer domain.UserID, strategy domain.Strategy) (domain.Session, error) {
	switch strategy {
	case domain.StrategyHandshake:
		local, ok := m.identity.Current()
		if !ok {
			return domain.Session{}, domain.ErrNoIdentity
		}
		bundle, err := m.directory.FetchBundle(ctx, peer)
		if err != nil {
			return domain.Session{}, errors.Wrapf(err, "fetch bundle of %s", peer)
		}
		return m.handshakes.Establish(local, peer, bundle)

	case domain.StrategyPool:
		ps, err := m.pools.DownloadPool(ctx, peer)
		if err != nil {
			return domain.Session{}, err
		}
		sess := domain.Session{Peer: peer, Strategy: domain.StrategyPool, Pool: &ps}
		if err := m.sessions.SaveSession(peer, sess); err != nil {
			return domain.Session{}, errors.Wrap(err, "save session")
		}
		return sess, nil
	}
	return domain.Session{}, errors.Wrapf(domain.ErrUnknownStrategy, "%q", strategy)
}

var _ domain.SessionService = (*Manager)(nil)
