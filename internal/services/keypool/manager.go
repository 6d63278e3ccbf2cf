package keypool

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/keypool"
)

// Manager owns the local outbound pool and fetches peers' pools from the
// key directory.
//
// Each user encrypts with the pool they published; receivers decrypt with
// their downloaded copy of the sender's pool. Only the owner tracks which
// keys were used, so a pool must have a single sender process at a time.
type Manager struct {
	directory domain.KeyDirectory
	store     domain.PoolStore
	logger    *zap.Logger
	now       func() time.Time

	mu  sync.RWMutex
	own *keypool.Pool
}

// New returns a Manager. store may be nil, in which case consumption is only
// tracked in memory.
func New(directory domain.KeyDirectory, store domain.PoolStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		directory: directory,
		store:     store,
		logger:    logger.With(zap.Namespace("keypool")),
		now:       time.Now,
	}
}

// Restore installs the pool kept in the store, if any, with its consumed
// flags.
func (m *Manager) Restore() (bool, error) {
	if m.store == nil {
		return false, nil
	}
	entries, ok, err := m.store.LoadPool()
	if err != nil || !ok {
		return false, err
	}
	m.install(keypool.New(entries))
	m.logger.Debug("restored pool", zap.Int("remaining", m.Remaining()))
	return true, nil
}

// GeneratePool draws size fresh keys and installs them as the local pool,
// replacing the previous one.
func (m *Manager) GeneratePool(size int) ([]domain.PoolEntry, error) {
	entries, err := keypool.Generate(size)
	if err != nil {
		return nil, err
	}
	if m.store != nil {
		if err := m.store.SavePool(entries); err != nil {
			return nil, errors.Wrap(err, "save pool")
		}
	}
	m.install(keypool.New(entries))
	return entries, nil
}

// PublishPool generates a pool of size keys, installs it and uploads it under
// user.
func (m *Manager) PublishPool(ctx context.Context, user domain.UserID, size int) ([]domain.PoolEntry, error) {
	entries, err := m.GeneratePool(size)
	if err != nil {
		return nil, err
	}
	if err := m.directory.PublishKeyPool(ctx, user, entries); err != nil {
		return nil, errors.Wrap(err, "publish pool")
	}
	m.logger.Debug("published pool", zap.Stringer("user", user), zap.Int("size", len(entries)))
	return entries, nil
}

// DownloadPool fetches the pool peer published.
func (m *Manager) DownloadPool(ctx context.Context, peer domain.UserID) (domain.PoolSession, error) {
	entries, err := m.directory.FetchKeyPool(ctx, peer)
	if err != nil {
		return domain.PoolSession{}, errors.Wrap(err, "download pool")
	}
	m.logger.Debug("downloaded pool", zap.Stringer("peer", peer), zap.Int("size", len(entries)))
	return domain.PoolSession{Entries: entries, DownloadedAt: m.now().UTC()}, nil
}

// SelectKeyForEncryption consumes one unused key of the local pool.
func (m *Manager) SelectKeyForEncryption() (domain.PoolEntry, error) {
	m.mu.RLock()
	own := m.own
	m.mu.RUnlock()
	if own == nil {
		return domain.PoolEntry{}, domain.ErrNoLocalPool
	}

	e, err := own.Select()
	if err != nil {
		return domain.PoolEntry{}, err
	}
	if m.store != nil {
		if err := m.store.MarkConsumed(e.ID); err != nil {
			return domain.PoolEntry{}, errors.Wrapf(err, "record key %d as used", e.ID)
		}
	}
	if left := own.Remaining(); left == 0 {
		m.logger.Warn("local pool exhausted, publish a new one")
	}
	return e, nil
}

// LookupKeyForDecryption finds id in a downloaded pool. Lookups never
// consume keys.
func (m *Manager) LookupKeyForDecryption(pool domain.PoolSession, id domain.KeyID) (domain.PoolEntry, error) {
	return keypool.Find(pool.Entries, id)
}

// Remaining reports how many keys of the local pool are unused.
func (m *Manager) Remaining() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.own == nil {
		return 0
	}
	return m.own.Remaining()
}

func (m *Manager) install(p *keypool.Pool) {
	m.mu.Lock()
	m.own = p
	m.mu.Unlock()
}

var _ domain.KeyPoolService = (*Manager)(nil)
