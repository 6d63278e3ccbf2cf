package store

import (
	"bytes"
	"path/filepath"
	"strconv"
	"sync"

	"cipherlink/internal/domain"
)

const (
	poolFilename     = "keypool.json"
	consumedFilename = "keypool.consumed"
)

// poolRecord is the on-disk form of a pool entry. Unlike the wire form it
// keeps the consumed flag.
type poolRecord struct {
	ID       domain.KeyID        `json:"id"`
	Key      domain.SymmetricKey `json:"key"`
	Consumed bool                `json:"consumed,omitempty"`
}

// PoolFileStore persists your outbound key pool and which keys were used.
//
// The pool itself is written once per SavePool. Consumption is appended to a
// separate log, one key ID per line, so marking a key costs one small
// synced write regardless of pool size.
type PoolFileStore struct {
	dir string

	mu  sync.Mutex
	ids map[domain.KeyID]struct{} // stored pool IDs; nil until read
}

// NewPoolFileStore returns a PoolFileStore rooted at dir.
func NewPoolFileStore(dir string) *PoolFileStore {
	return &PoolFileStore{dir: dir}
}

// SavePool replaces the stored pool and clears the consumption log.
func (s *PoolFileStore) SavePool(entries []domain.PoolEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]poolRecord, len(entries))
	for i, e := range entries {
		recs[i] = poolRecord{ID: e.ID, Key: e.Key, Consumed: e.Consumed}
	}
	if err := writeJSON(s.poolPath(), recs, 0o600); err != nil {
		return err
	}
	// A crash before this leaves old IDs marked in the new pool. That only
	// retires keys early.
	if err := removeFile(s.consumedPath()); err != nil {
		return err
	}
	s.ids = idSet(recs)
	return nil
}

// LoadPool returns the stored pool, or ok=false if none was saved.
func (s *PoolFileStore) LoadPool() ([]domain.PoolEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok, err := s.load()
	if err != nil || !ok {
		return nil, false, err
	}
	consumed, err := s.consumed()
	if err != nil {
		return nil, false, err
	}

	out := make([]domain.PoolEntry, len(recs))
	for i, r := range recs {
		_, used := consumed[r.ID]
		out[i] = domain.PoolEntry{ID: r.ID, Key: r.Key, Consumed: r.Consumed || used}
	}
	s.ids = idSet(recs)
	return out, true, nil
}

// MarkConsumed flags id as used. Unknown IDs yield domain.ErrKeyNotFound.
func (s *PoolFileStore) MarkConsumed(id domain.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids == nil {
		recs, ok, err := s.load()
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoLocalPool
		}
		s.ids = idSet(recs)
	}
	if _, ok := s.ids[id]; !ok {
		return domain.ErrKeyNotFound
	}
	return appendLine(s.consumedPath(), strconv.FormatUint(uint64(id), 10), 0o600)
}

func (s *PoolFileStore) load() ([]poolRecord, bool, error) {
	var recs []poolRecord
	ok, err := readJSON(s.poolPath(), &recs)
	return recs, ok, err
}

// consumed reads the consumption log. An unterminated last line is a torn
// write whose MarkConsumed never returned, so it is skipped.
func (s *PoolFileStore) consumed() (map[domain.KeyID]struct{}, error) {
	b, err := readFile(s.consumedPath())
	if err != nil {
		return nil, err
	}
	out := make(map[domain.KeyID]struct{})
	lines := bytes.Split(b, []byte{'\n'})
	for _, line := range lines[:len(lines)-1] {
		id, err := strconv.ParseUint(string(bytes.TrimSpace(line)), 10, 32)
		if err != nil {
			continue
		}
		out[domain.KeyID(id)] = struct{}{}
	}
	return out, nil
}

func (s *PoolFileStore) poolPath() string     { return filepath.Join(s.dir, poolFilename) }
func (s *PoolFileStore) consumedPath() string { return filepath.Join(s.dir, consumedFilename) }

func idSet(recs []poolRecord) map[domain.KeyID]struct{} {
	ids := make(map[domain.KeyID]struct{}, len(recs))
	for _, r := range recs {
		ids[r.ID] = struct{}{}
	}
	return ids
}

var _ domain.PoolStore = (*PoolFileStore)(nil)
