package relayserver

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"cipherlink/internal/domain"
)

// Backend holds everything the relay stores. Bundles and pools are kept as
// the JSON the client uploaded.
type Backend interface {
	PutBundle(user domain.UserID, raw []byte) error
	GetBundle(user domain.UserID) ([]byte, bool, error)
	PutPool(user domain.UserID, raw []byte) error
	GetPool(user domain.UserID) ([]byte, bool, error)

	Enqueue(f domain.Frame) error
	Fetch(user domain.UserID, limit int) ([]domain.Frame, error)
	Ack(user domain.UserID, ids []string) (int, error)

	Close() error
}

// LevelDB is a Backend on goleveldb.
//
// Keys:
//
//	bundle/<user>
//	pool/<user>
//	msg/<user>/<seq>
//
// <user> is path-escaped so it never contains '/'. <seq> is a zero-padded
// decimal that grows monotonically, so iteration order is arrival order.
type LevelDB struct {
	db *leveldb.DB

	mu      sync.Mutex
	lastSeq uint64
}

// OpenLevelDB opens or creates a database at path. An empty path keeps
// everything in memory.
func OpenLevelDB(path string) (*LevelDB, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, &opt.Options{})
	}
	if err != nil {
		return nil, errors.Wrap(err, "open relay database")
	}
	return &LevelDB{db: db}, nil
}

func bundleKey(user domain.UserID) []byte { return []byte("bundle/" + url.PathEscape(user.String())) }
func poolKey(user domain.UserID) []byte   { return []byte("pool/" + url.PathEscape(user.String())) }
func queuePrefix(user domain.UserID) []byte {
	return []byte("msg/" + url.PathEscape(user.String()) + "/")
}

// PutBundle stores raw as user's bundle.
func (l *LevelDB) PutBundle(user domain.UserID, raw []byte) error {
	return l.db.Put(bundleKey(user), raw, nil)
}

// GetBundle returns user's bundle.
func (l *LevelDB) GetBundle(user domain.UserID) ([]byte, bool, error) {
	return l.get(bundleKey(user))
}

// PutPool stores raw as user's key pool.
func (l *LevelDB) PutPool(user domain.UserID, raw []byte) error {
	return l.db.Put(poolKey(user), raw, nil)
}

// GetPool returns user's key pool.
func (l *LevelDB) GetPool(user domain.UserID) ([]byte, bool, error) {
	return l.get(poolKey(user))
}

func (l *LevelDB) get(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Enqueue appends f to the queue of f.To.
func (l *LevelDB) Enqueue(f domain.Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	key := append(queuePrefix(f.To), l.nextSeq()...)
	return l.db.Put(key, raw, nil)
}

// Fetch returns up to limit frames queued for user, oldest first. limit <= 0
// returns all of them.
func (l *LevelDB) Fetch(user domain.UserID, limit int) ([]domain.Frame, error) {
	it := l.db.NewIterator(util.BytesPrefix(queuePrefix(user)), nil)
	defer it.Release()

	var out []domain.Frame
	for it.Next() {
		var f domain.Frame
		if err := json.Unmarshal(it.Value(), &f); err != nil {
			return nil, errors.Wrapf(err, "decode queued frame %s", it.Key())
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, it.Error()
}

// Ack deletes the frames with the given IDs from user's queue and reports
// how many were removed. Unknown IDs are ignored.
func (l *LevelDB) Ack(user domain.UserID, ids []string) (int, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	it := l.db.NewIterator(util.BytesPrefix(queuePrefix(user)), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		var f struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(it.Value(), &f); err != nil {
			continue
		}
		if _, ok := want[f.ID]; ok {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return batch.Len(), l.db.Write(batch, nil)
}

// Close closes the database.
func (l *LevelDB) Close() error { return l.db.Close() }

// nextSeq returns a sortable sequence number that keeps increasing across
// restarts as long as the clock does not jump back.
func (l *LevelDB) nextSeq() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := uint64(time.Now().UnixNano())
	if seq <= l.lastSeq {
		seq = l.lastSeq + 1
	}
	l.lastSeq = seq
	return []byte(fmt.Sprintf("%020d", seq))
}

var _ Backend = (*LevelDB)(nil)
