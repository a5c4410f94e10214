package store

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"pfskit/internal/domain"
)

// keyEntry is one stored private key with its creation timestamp.
type keyEntry struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// FileKeyStore keeps key entries in a single JSON file. One mutex guards
// the whole file; writes go through a temp file then rename.
type FileKeyStore struct {
	path string
	mu   sync.Mutex
}

// NewFileKeyStore returns a key store backed by the file at path.
func NewFileKeyStore(path string) *FileKeyStore { return &FileKeyStore{path: path} }

var _ domain.KeyBlobStore = (*FileKeyStore)(nil)

func (s *FileKeyStore) Store(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]keyEntry{}
	if err := readJSON(s.path, &entries); err != nil {
		return err
	}
	entries[name] = keyEntry{Value: append([]byte(nil), value...), CreatedAt: time.Now()}
	return writeJSON(s.path, entries, 0o600)
}

func (s *FileKeyStore) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]keyEntry{}
	if err := readJSON(s.path, &entries); err != nil {
		return nil, err
	}
	e, ok := entries[name]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return e.Value, nil
}

func (s *FileKeyStore) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]keyEntry{}
	if err := readJSON(s.path, &entries); err != nil {
		return false
	}
	_, ok := entries[name]
	return ok
}

func (s *FileKeyStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]keyEntry{}
	if err := readJSON(s.path, &entries); err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(entries, name)
	return writeJSON(s.path, entries, 0o600)
}

func (s *FileKeyStore) ListAttrs() ([]domain.KeyAttrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]keyEntry{}
	if err := readJSON(s.path, &entries); err != nil {
		return nil, err
	}
	attrs := make([]domain.KeyAttrs, 0, len(entries))
	for name, e := range entries {
		attrs = append(attrs, domain.KeyAttrs{Name: name, CreationDate: e.CreatedAt})
	}
	return attrs, nil
}

// FileStateStore keeps state blobs in a single JSON file, with the same
// locking and write discipline as FileKeyStore. Blobs are stored as opaque
// bytes so Load returns exactly what Store was given.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore returns a state store backed by the file at path.
func NewFileStateStore(path string) *FileStateStore { return &FileStateStore{path: path} }

var _ domain.StateBlobStore = (*FileStateStore)(nil)

func (s *FileStateStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string][]byte{}
	if err := readJSON(s.path, &entries); err != nil {
		return nil, err
	}
	blob, ok := entries[key]
	if !ok {
		return nil, nil
	}
	return blob, nil
}

func (s *FileStateStore) Store(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string][]byte{}
	if err := readJSON(s.path, &entries); err != nil {
		return err
	}
	entries[key] = append([]byte(nil), value...)
	return writeJSON(s.path, entries, 0o600)
}

func (s *FileStateStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string][]byte{}
	if err := readJSON(s.path, &entries); err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return writeJSON(s.path, entries, 0o600)
}

// readJSON best-effort reads path into out; a missing file is not an error.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// writeJSON writes JSON via a temp file then rename.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
