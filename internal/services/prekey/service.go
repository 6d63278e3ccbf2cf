package prekey

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// Service builds the public key bundle from the current identity material
// and publishes it to the key directory.
type Service struct {
	ids       domain.IdentityService
	directory domain.KeyDirectory
	cache     domain.BundleStore
	logger    *zap.Logger
	now       func() time.Time
}

// New returns a prekey service. cache may be nil.
func New(
	ids domain.IdentityService,
	directory domain.KeyDirectory,
	cache domain.BundleStore,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ids:       ids,
		directory: directory,
		cache:     cache,
		logger:    logger.With(zap.Namespace("prekey")),
		now:       time.Now,
	}
}

// Bundle returns the public bundle for the current identity.
func (s *Service) Bundle(username domain.Username) (domain.KeyBundle, error) {
	m, ok := s.ids.Current()
	if !ok {
		return domain.KeyBundle{}, domain.ErrNoIdentity
	}
	return domain.KeyBundle{
		IdentityKey:  m.Identity.XPub,
		SigningKey:   m.Identity.EdPub,
		SignedPreKey: m.SignedPreKey.Pub,
		Signature:    append([]byte(nil), m.SignedPreKey.Signature...),
		Username:     username,
		Timestamp:    s.now().UTC(),
	}, nil
}

// Publish uploads the current bundle under user and caches it locally.
// Publishing again replaces the previous bundle.
func (s *Service) Publish(
	ctx context.Context,
	user domain.UserID,
	username domain.Username,
) (domain.KeyBundle, error) {
	b, err := s.Bundle(username)
	if err != nil {
		return domain.KeyBundle{}, err
	}
	if stale, err := s.Stale(); err != nil {
		s.logger.Warn("failed to read cached bundle", zap.Error(err))
	} else if stale {
		s.logger.Info("identity changed since last publish", zap.Stringer("user", user))
	}
	if err := s.directory.PublishBundle(ctx, user, b); err != nil {
		return domain.KeyBundle{}, errors.Wrap(err, "publish bundle")
	}
	if s.cache != nil {
		if err := s.cache.SaveBundle(b); err != nil {
			s.logger.Warn("failed to cache bundle", zap.Error(err))
		}
	}
	s.logger.Debug("published bundle", zap.Stringer("user", user))
	return b, nil
}


// Published returns the bundle cached by the last Publish, if any.
func (s *Service) Published() (domain.KeyBundle, bool, error) {
	if s.cache == nil {
		return domain.KeyBundle{}, false, nil
	}
	b, ok, err := s.cache.LoadBundle()
	if err != nil {
		return domain.KeyBundle{}, false, errors.Wrap(err, "load cached bundle")
	}
	return b, ok, nil
}

// Stale reports whether the last published bundle carries keys other than
// the current identity's. Sessions peers made with those keys no longer
// work, so the bundle must be published again.
func (s *Service) Stale() (bool, error) {
	b, ok, err := s.Published()
	if err != nil || !ok {
		return false, err
	}
	m, have := s.ids.Current()
	if !have {
		return false, domain.ErrNoIdentity
	}
	return b.IdentityKey != m.Identity.XPub || b.SignedPreKey != m.SignedPreKey.Pub, nil
}

var _ domain.PreKeyService = (*Service)(nil)
