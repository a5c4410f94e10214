package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"pfskit/internal/domain"
)

const identityFile = "identity.enc"

// FileIdentityStore keeps the local identity passphrase-encrypted on disk.
type FileIdentityStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileIdentityStore returns an identity store rooted at dir.
func NewFileIdentityStore(dir string) *FileIdentityStore { return &FileIdentityStore{dir: dir} }

// SaveIdentity seals the identity under passphrase and writes it to disk.
func (s *FileIdentityStore) SaveIdentity(id domain.Identity, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	blob, err := seal(passphrase, raw)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, identityFile), blob, 0o600)
}

// LoadIdentity reads and decrypts the stored identity.
func (s *FileIdentityStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if err != nil {
		return domain.Identity{}, err
	}
	raw, err := open(passphrase, blob)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// HasIdentity reports whether an identity file exists at the store's root.
func (s *FileIdentityStore) HasIdentity() bool {
	_, err := os.Stat(filepath.Join(s.dir, identityFile))
	return err == nil
}
