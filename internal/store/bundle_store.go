package store

import (
	"path/filepath"
	"sync"

	"cipherlink/internal/domain"
)

const bundleFilename = "bundle.json"

// BundleFileStore caches the last key bundle you published.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SaveBundle writes the bundle to disk.
func (s *BundleFileStore) SaveBundle(b domain.KeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.dir, bundleFilename), b, 0o600)
}

// LoadBundle returns the cached bundle and whether it was present.
func (s *BundleFileStore) LoadBundle() (domain.KeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b domain.KeyBundle
	ok, err := readJSON(filepath.Join(s.dir, bundleFilename), &b)
	if err != nil || !ok {
		return domain.KeyBundle{}, false, err
	}
	return b, true, nil
}

var _ domain.BundleStore = (*BundleFileStore)(nil)
