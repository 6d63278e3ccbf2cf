package keypool

import (
	"sync"

	"github.com/pkg/errors"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
)

// DefaultSize is the number of keys generated when no size is configured.
const DefaultSize = 1000

// Generate draws size independent random keys with dense IDs 0..size-1.
func Generate(size int) ([]domain.PoolEntry, error) {
	if size <= 0 {
		return nil, errors.Errorf("key pool size must be positive, got %d", size)
	}
	entries := make([]domain.PoolEntry, size)
	for i := range entries {
		k, err := crypto.RandomKey()
		if err != nil {
			return nil, errors.Wrap(err, "draw pool key")
		}
		entries[i] = domain.PoolEntry{ID: domain.KeyID(i), Key: k}
	}
	return entries, nil
}

// Pool is a set of one-time keys with local consumption tracking.
// All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	entries []domain.PoolEntry
	free    []int // indices of unconsumed entries
}

// New returns a Pool over a copy of entries. Entries already marked consumed
// stay consumed.
func New(entries []domain.PoolEntry) *Pool {
	p := &Pool{entries: append([]domain.PoolEntry(nil), entries...)}
	for i, e := range p.entries {
		if !e.Consumed {
			p.free = append(p.free, i)
		}
	}
	return p
}

// Select picks an unconsumed entry uniformly at random and marks it consumed
// before returning it.
func (p *Pool) Select() (domain.PoolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return domain.PoolEntry{}, domain.ErrPoolExhausted
	}
	n, err := crypto.RandomIndex(len(p.free))
	if err != nil {
		return domain.PoolEntry{}, errors.Wrap(err, "pick pool key")
	}
	idx := p.free[n]
	last := len(p.free) - 1
	p.free[n] = p.free[last]
	p.free = p.free[:last]

	p.entries[idx].Consumed = true
	return p.entries[idx], nil
}

// Lookup returns the entry with id, consumed or not.
func (p *Pool) Lookup(id domain.KeyID) (domain.PoolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Find(p.entries, id)
}

// Remaining reports how many entries are still unconsumed.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Len reports the total number of entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Entries returns a snapshot of all entries including consumed flags.
func (p *Pool) Entries() []domain.PoolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PoolEntry(nil), p.entries...)
}

// Find looks id up in entries. Dense pools hit the index directly.
func Find(entries []domain.PoolEntry, id domain.KeyID) (domain.PoolEntry, error) {
	if int64(id) < int64(len(entries)) && entries[id].ID == id {
		return entries[id], nil
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.PoolEntry{}, errors.Wrapf(domain.ErrKeyNotFound, "key id %d", id)
}
