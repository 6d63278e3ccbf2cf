package handshake

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/x3dh"
)

// Engine runs the triple Diffie-Hellman agreement and records the resulting
// sessions in the session store.
type Engine struct {
	sessions domain.SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

// New returns an Engine that writes sessions to sessions.
func New(sessions domain.SessionStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sessions: sessions,
		logger:   logger.With(zap.Namespace("handshake")),
		now:      time.Now,
	}
}

// Establish verifies the peer's bundle, runs the agreement as initiator with
// a fresh ephemeral key and stores the session, replacing any previous one.
// Nothing is stored when the bundle fails validation.
func (e *Engine) Establish(
	local domain.IdentityMaterial,
	peer domain.UserID,
	bundle domain.KeyBundle,
) (domain.Session, error) {
	if err := x3dh.ValidateBundle(bundle); err != nil {
		e.logger.Warn("rejected bundle", zap.Stringer("peer", peer), zap.Error(err))
		return domain.Session{}, errors.Wrapf(err, "bundle of %s", peer)
	}

	ekPriv, ekPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "generate ephemeral key")
	}
	root, err := x3dh.InitiatorRoot(local.Identity.XPriv, ekPriv, bundle.IdentityKey, bundle.SignedPreKey)
	if err != nil {
		return domain.Session{}, errors.Wrapf(domain.ErrMalformedBundle, "agreement with %s: %v", peer, err)
	}

	sess := domain.Session{
		Peer:     peer,
		Strategy: domain.StrategyHandshake,
		Handshake: &domain.HandshakeSession{
			RootKey:          root,
			LocalIdentityKey: local.Identity.XPub,
			EphemeralPrivate: ekPriv,
			EphemeralPublic:  ekPub,
			PeerIdentityKey:  bundle.IdentityKey,
			PeerSignedPreKey: bundle.SignedPreKey,
			Initiator:        true,
			EstablishedAt:    e.now().UTC(),
		},
	}
	if err := e.sessions.SaveSession(peer, sess); err != nil {
		return domain.Session{}, errors.Wrap(err, "save session")
	}
	e.logger.Debug("established session",
		zap.Stringer("peer", peer),
		zap.Stringer("tag", crypto.SessionTag(root)),
	)
	return sess, nil
}

// Accept answers a handshake header as responder and stores the session,
// replacing any previous one.
func (e *Engine) Accept(
	local domain.IdentityMaterial,
	peer domain.UserID,
	header domain.HandshakeHeader,
) (domain.Session, error) {
	root, err := e.Derive(local, header)
	if err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{
		Peer:     peer,
		Strategy: domain.StrategyHandshake,
		Handshake: &domain.HandshakeSession{
			RootKey:          root,
			LocalIdentityKey: local.Identity.XPub,
			EphemeralPublic:  header.EphemeralKey,
			PeerIdentityKey:  header.IdentityKey,
			Initiator:        false,
			EstablishedAt:    e.now().UTC(),
		},
	}
	if err := e.sessions.SaveSession(peer, sess); err != nil {
		return domain.Session{}, errors.Wrap(err, "save session")
	}
	e.logger.Debug("accepted session",
		zap.Stringer("peer", peer),
		zap.Stringer("tag", crypto.SessionTag(root)),
	)
	return sess, nil
}

// Derive computes the responder root key for header without storing
// anything. The header must name our current signed pre-key.
func (e *Engine) Derive(local domain.IdentityMaterial, header domain.HandshakeHeader) (domain.SymmetricKey, error) {
	if header.IdentityKey.IsZero() || header.EphemeralKey.IsZero() {
		return domain.SymmetricKey{}, errors.Wrap(domain.ErrMalformedHandshake, "missing keys")
	}
	if header.SignedPreKey != local.SignedPreKey.Pub {
		return domain.SymmetricKey{}, errors.Wrap(domain.ErrMalformedHandshake, "unknown signed pre-key")
	}
	root, err := x3dh.ResponderRoot(
		local.Identity.XPriv,
		local.SignedPreKey.Priv,
		header.IdentityKey,
		header.EphemeralKey,
	)
	if err != nil {
		return domain.SymmetricKey{}, errors.Wrapf(domain.ErrMalformedHandshake, "agreement: %v", err)
	}
	return root, nil
}

// HeaderFor returns the header an initiator attaches to its frames.
func HeaderFor(local domain.IdentityMaterial, hs *domain.HandshakeSession) domain.HandshakeHeader {
	return domain.HandshakeHeader{
		IdentityKey:  local.Identity.XPub,
		EphemeralKey: hs.EphemeralPublic,
		SignedPreKey: hs.PeerSignedPreKey,
	}
}

var _ domain.HandshakeService = (*Engine)(nil)
