package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cipherlink/internal/domain"
)

// Memory is an in-process key directory and message queue. It backs tests
// and single-process demos with the same semantics as the HTTP relay.
type Memory struct {
	mu      sync.Mutex
	bundles map[domain.UserID]domain.KeyBundle
	pools   map[domain.UserID][]domain.PoolEntry
	queues  map[domain.UserID][]domain.Frame
	subs    map[domain.UserID]map[chan domain.Frame]struct{}
	now     func() time.Time
}

// NewMemory returns an empty Memory relay.
func NewMemory() *Memory {
	return &Memory{
		bundles: make(map[domain.UserID]domain.KeyBundle),
		pools:   make(map[domain.UserID][]domain.PoolEntry),
		queues:  make(map[domain.UserID][]domain.Frame),
		subs:    make(map[domain.UserID]map[chan domain.Frame]struct{}),
		now:     time.Now,
	}
}

// PublishBundle stores or replaces the bundle for user.
func (m *Memory) PublishBundle(ctx context.Context, user domain.UserID, b domain.KeyBundle) error {
	if err := ctx.Err(); err != nil {
		return unavailable("publish bundle", user, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Signature = append([]byte(nil), b.Signature...)
	m.bundles[user] = b
	return nil
}

// FetchBundle returns the bundle for user.
func (m *Memory) FetchBundle(ctx context.Context, user domain.UserID) (domain.KeyBundle, error) {
	if err := ctx.Err(); err != nil {
		return domain.KeyBundle{}, unavailable("fetch bundle", user, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[user]
	if !ok {
		return domain.KeyBundle{}, notFound("fetch bundle", user)
	}
	b.Signature = append([]byte(nil), b.Signature...)
	return b, nil
}

// PublishKeyPool stores or replaces the pool for user. Consumed flags are
// not kept.
func (m *Memory) PublishKeyPool(ctx context.Context, user domain.UserID, entries []domain.PoolEntry) error {
	if err := ctx.Err(); err != nil {
		return unavailable("publish pool", user, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[user] = copyPool(entries)
	return nil
}

// FetchKeyPool returns the pool for user.
func (m *Memory) FetchKeyPool(ctx context.Context, user domain.UserID) ([]domain.PoolEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch pool", user, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[user]
	if !ok {
		return nil, notFound("fetch pool", user)
	}
	return copyPool(p), nil
}

// SendFrame queues f for f.To and pushes it to live subscribers.
func (m *Memory) SendFrame(ctx context.Context, f domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp == 0 {
		f.Timestamp = m.now().Unix()
	}

	m.mu.Lock()
	m.queues[f.To] = append(m.queues[f.To], f)
	subs := make([]chan domain.Frame, 0, len(m.subs[f.To]))
	for ch := range m.subs[f.To] {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- f:
		default:
		}
	}
	return nil
}

// FetchFrames returns up to limit queued frames for user, oldest first.
// limit <= 0 returns all of them.
func (m *Memory) FetchFrames(ctx context.Context, user domain.UserID, limit int) ([]domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[user]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	return append([]domain.Frame(nil), q...), nil
}

// AckFrames removes the frames with the given IDs from user's queue.
func (m *Memory) AckFrames(ctx context.Context, user domain.UserID, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.queues[user][:0]
	for _, f := range m.queues[user] {
		if _, ok := drop[f.ID]; !ok {
			kept = append(kept, f)
		}
	}
	m.queues[user] = kept
	return nil
}

// Subscribe calls handle for every frame sent to user until ctx is done.
// Frames already queued are not replayed.
func (m *Memory) Subscribe(ctx context.Context, user domain.UserID, handle func(domain.Frame)) error {
	ch := make(chan domain.Frame, 64)
	m.mu.Lock()
	if m.subs[user] == nil {
		m.subs[user] = make(map[chan domain.Frame]struct{})
	}
	m.subs[user][ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs[user], ch)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-ch:
			handle(f)
		}
	}
}

func copyPool(entries []domain.PoolEntry) []domain.PoolEntry {
	out := make([]domain.PoolEntry, len(entries))
	for i, e := range entries {
		out[i] = domain.PoolEntry{ID: e.ID, Key: e.Key}
	}
	return out
}

func notFound(op string, user domain.UserID) error {
	return &domain.DirectoryError{Op: op, UserID: user, Status: http.StatusNotFound, Err: domain.ErrPeerNotFound}
}

func unavailable(op string, user domain.UserID, cause error) error {
	return &domain.DirectoryError{Op: op, UserID: user, Err: wrapUnavailable(cause)}
}

var (
	_ domain.KeyDirectory = (*Memory)(nil)
	_ domain.Transport    = (*Memory)(nil)
	_ domain.Subscriber   = (*Memory)(nil)
)
