package app

import (
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/keypool"
	"cipherlink/internal/relay"
	"cipherlink/internal/services/handshake"
	"cipherlink/internal/services/identity"
	keypoolsvc "cipherlink/internal/services/keypool"
	"cipherlink/internal/services/message"
	"cipherlink/internal/services/prekey"
	"cipherlink/internal/services/session"
	"cipherlink/internal/store"
)

// Relay is everything the app needs from a relay.
type Relay interface {
	domain.KeyDirectory
	domain.Transport
	domain.Subscriber
}

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Config Config

	Identity   *identity.Service
	Prekeys    *prekey.Service
	Handshakes *handshake.Engine
	Pools      *keypoolsvc.Manager
	Sessions   *session.Manager
	Messages   *message.Service
	Relay      Relay
	Logger     *zap.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = domain.StrategyHandshake
	}
	if !cfg.Strategy.Valid() {
		return nil, errors.Wrapf(domain.ErrUnknownStrategy, "%q", cfg.Strategy)
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = keypool.DefaultSize
	}
	if cfg.HTTP == nil {
		cfg.HTTP = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger

	var (
		identityStore domain.IdentityStore
		poolStore     domain.PoolStore
		bundleStore   domain.BundleStore
		sessionStore  domain.SessionStore = store.NewMemorySessionStore()
	)
	if cfg.Home != "" {
		identityStore = store.NewIdentityFileStore(cfg.Home)
		poolStore = store.NewPoolFileStore(cfg.Home)
		bundleStore = store.NewBundleFileStore(cfg.Home)
		sessionStore = store.NewSessionFileStore(cfg.Home)
	}

	var rc Relay
	if cfg.RelayURL != "" {
		h := relay.NewHTTP(cfg.RelayURL, logger)
		h.HTTP = cfg.HTTP
		rc = h
	} else {
		rc = relay.NewMemory()
	}

	ids := identity.New(identityStore, logger)
	handshakes := handshake.New(sessionStore, logger)
	pools := keypoolsvc.New(rc, poolStore, logger)
	if _, err := pools.Restore(); err != nil {
		return nil, errors.Wrap(err, "restore key pool")
	}
	sessions := session.New(
		session.Config{LocalUser: cfg.UserID, Strategy: cfg.Strategy},
		ids, rc, handshakes, pools, sessionStore, logger,
	)

	return &Wire{
		Config:     cfg,
		Identity:   ids,
		Prekeys:    prekey.New(ids, rc, bundleStore, logger),
		Handshakes: handshakes,
		Pools:      pools,
		Sessions:   sessions,
		Messages:   message.New(cfg.UserID, sessions, rc, logger),
		Relay:      rc,
		Logger:     logger,
	}, nil
}
