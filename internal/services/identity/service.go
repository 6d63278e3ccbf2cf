package identity

import (
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
)

// minPassphraseLength is the minimum number of characters required for a passphrase.
const minPassphraseLength = 12

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = errors.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrNoStore is returned by Persist and Load when no backing store is configured.
	ErrNoStore = errors.New("identity persistence not configured")
)

// Service owns the local identity material for the lifetime of the process.
//
// The material contains:
//   - X25519 identity key pair for the handshake agreement.
//   - Ed25519 key pair that signs the signed pre-key.
//   - X25519 signed pre-key pair and its signature.
//
// A backing store is optional. Without one the identity is ephemeral.
type Service struct {
	store  domain.IdentityStore
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *domain.IdentityMaterial
}

// New returns an identity service. store may be nil.
func New(store domain.IdentityStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger.With(zap.Namespace("identity")),
		now:    time.Now,
	}
}

// Generate creates fresh identity material, installs it as current and
// returns it with the fingerprint of the X25519 identity key.
func (s *Service) Generate() (domain.IdentityMaterial, domain.Fingerprint, error) {
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.IdentityMaterial{}, "", errors.Wrap(err, "generate identity key")
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.IdentityMaterial{}, "", errors.Wrap(err, "generate signing key")
	}
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.IdentityMaterial{}, "", errors.Wrap(err, "generate signed pre-key")
	}

	m := domain.IdentityMaterial{
		Identity: domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv},
		SignedPreKey: domain.SignedPreKey{
			Pub:       spkPub,
			Priv:      spkPriv,
			Signature: crypto.SignEd25519(edPriv, spkPub.Slice()),
		},
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.current = &m
	s.mu.Unlock()

	fp := crypto.Fingerprint(xPub.Slice())
	s.logger.Debug("generated identity", zap.Stringer("fingerprint", fp))
	return m, fp, nil
}

// Current returns the installed material, if any.
func (s *Service) Current() (domain.IdentityMaterial, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.IdentityMaterial{}, false
	}
	return *s.current, true
}

// Persist seals the current material with passphrase.
func (s *Service) Persist(passphrase string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	m, ok := s.Current()
	if !ok {
		return domain.ErrNoIdentity
	}
	if err := s.store.SaveIdentity(passphrase, m); err != nil {
		return errors.Wrap(err, "save identity")
	}
	s.logger.Debug("persisted identity")
	return nil
}

// Load unseals stored material with passphrase and installs it as current.
func (s *Service) Load(passphrase string) (domain.IdentityMaterial, error) {
	if s.store == nil {
		return domain.IdentityMaterial{}, ErrNoStore
	}
	m, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return domain.IdentityMaterial{}, errors.Wrap(err, "load identity")
	}

	s.mu.Lock()
	s.current = &m
	s.mu.Unlock()
	return m, nil
}

// Fingerprint returns a short fingerprint of the current X25519 identity key.
func (s *Service) Fingerprint() (domain.Fingerprint, error) {
	m, ok := s.Current()
	if !ok {
		return "", domain.ErrNoIdentity
	}
	return crypto.Fingerprint(m.Identity.XPub.Slice()), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len([]rune(passphrase)) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

var _ domain.IdentityService = (*Service)(nil)
