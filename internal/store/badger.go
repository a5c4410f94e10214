package store

import (
	"encoding/json"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"pfskit/internal/domain"
)

// Key layout inside the shared badger database. Key entries carry a JSON
// keyEntry value so ListAttrs can report creation times; state entries hold
// the raw blob.
const (
	badgerKeyPrefix   = "k/"
	badgerStatePrefix = "s/"
)

// Badger is a badger-backed database exposing both blob store interfaces
// over one set of files.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) the database at dir.
func OpenBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

// Close releases the database files.
func (b *Badger) Close() error { return b.db.Close() }

// Keys returns the key material view of the database.
func (b *Badger) Keys() domain.KeyBlobStore { return &badgerKeyStore{db: b.db} }

// States returns the structured state view of the database.
func (b *Badger) States() domain.StateBlobStore { return &badgerStateStore{db: b.db} }

type badgerKeyStore struct {
	db *badger.DB
}

var _ domain.KeyBlobStore = (*badgerKeyStore)(nil)

func (s *badgerKeyStore) Store(name string, value []byte) error {
	raw, err := json.Marshal(keyEntry{Value: value, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+name), raw)
	})
}

func (s *badgerKeyStore) Load(name string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			var e keyEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			value = e.Value
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *badgerKeyStore) Exists(name string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerKeyPrefix + name))
		return err
	})
	return err == nil
}

func (s *badgerKeyStore) Delete(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(badgerKeyPrefix + name)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrKeyNotFound
	}
	return err
}

func (s *badgerKeyStore) ListAttrs() ([]domain.KeyAttrs, error) {
	var attrs []domain.KeyAttrs
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(badgerKeyPrefix):])
			if err := item.Value(func(raw []byte) error {
				var e keyEntry
				if err := json.Unmarshal(raw, &e); err != nil {
					return err
				}
				attrs = append(attrs, domain.KeyAttrs{Name: name, CreationDate: e.CreatedAt})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

type badgerStateStore struct {
	db *badger.DB
}

var _ domain.StateBlobStore = (*badgerStateStore)(nil)

func (s *badgerStateStore) Load(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerStatePrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *badgerStateStore) Store(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerStatePrefix+key), value)
	})
}

func (s *badgerStateStore) Remove(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerStatePrefix + key))
	})
}
