package store

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"cipherlink/internal/domain"
	"cipherlink/internal/util/memzero"
)

const identityFilename = "identity.json.enc"

// IdentityFileStore keeps the identity material sealed under a passphrase.
type IdentityFileStore struct {
	dir string
	kdf kdfParams
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, kdf: defaultKDF}
}

// SaveIdentity seals material with passphrase and writes it to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, material domain.IdentityMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(material)
	if err != nil {
		return errors.Wrap(err, "encode identity")
	}
	defer memzero.Zero(raw)

	blob, err := seal(passphrase, raw, s.kdf)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, identityFilename), blob, 0o600)
}

// LoadIdentity reads and unseals the identity material. A missing file
// yields domain.ErrNoIdentity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.IdentityMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := readFile(filepath.Join(s.dir, identityFilename))
	if err != nil {
		return domain.IdentityMaterial{}, err
	}
	if blob == nil {
		return domain.IdentityMaterial{}, domain.ErrNoIdentity
	}
	raw, err := unseal(passphrase, blob)
	if err != nil {
		return domain.IdentityMaterial{}, err
	}
	defer memzero.Zero(raw)

	var m domain.IdentityMaterial
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.IdentityMaterial{}, errors.Wrap(err, "decode identity")
	}
	return m, nil
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)
