package keystore

import (
	"encoding/base64"
	"time"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"pfskit/internal/domain"
)

// KeyEntry pairs a private key with its logical name (card id).
type KeyEntry struct {
	PrivateKey []byte
	Name       string
}

// Manager maps logical key references (long-term name, one-time name,
// session id) to scoped storage entries and back, for one local identity.
type Manager struct {
	store domain.KeyBlobStore
	names entryNames
}

// New returns a key lifecycle manager scoped to identityID.
func New(store domain.KeyBlobStore, identityID string) *Manager {
	return &Manager{store: store, names: entryNames{identityID: identityID}}
}

// SaveKeys persists every supplied one-time private key plus the optional
// long-term key under their scoped names. A partial failure is surfaced to
// the caller; entries already stored stay put and remain discoverable by
// the rotation engine's orphan GC.
func (m *Manager) SaveKeys(otKeys []KeyEntry, ltKey *KeyEntry) error {
	for _, k := range otKeys {
		if err := m.store.Store(m.names.otKeyName(k.Name), k.PrivateKey); err != nil {
			return errors.Wrapf(err, "saving one-time key %q", k.Name)
		}
	}
	if ltKey != nil {
		if err := m.store.Store(m.names.ltKeyName(ltKey.Name), ltKey.PrivateKey); err != nil {
			return errors.Wrapf(err, "saving long-term key %q", ltKey.Name)
		}
	}
	return nil
}

// HasRelevantLtKey reports whether at least one stored long-term key was
// created within ttl of now.
func (m *Manager) HasRelevantLtKey(now time.Time, ttl time.Duration) bool {
	attrs, err := m.store.ListAttrs()
	if err != nil {
		return false
	}
	for _, a := range attrs {
		if m.names.isLtKeyName(a.Name) && now.Before(a.CreationDate.Add(ttl)) {
			return true
		}
	}
	return false
}

// GetLtPrivateKey loads a long-term private key by logical name.
func (m *Manager) GetLtPrivateKey(name string) ([]byte, error) {
	return m.load(m.names.ltKeyName(name))
}

// GetOtPrivateKey loads a one-time private key by logical name.
func (m *Manager) GetOtPrivateKey(name string) ([]byte, error) {
	return m.load(m.names.otKeyName(name))
}

// GetSessionKeys loads the symmetric key pair for a session.
func (m *Manager) GetSessionKeys(sessionID []byte) (domain.SessionKeys, error) {
	blob, err := m.load(m.names.sessionKeysName(sessionID))
	if err != nil {
		return domain.SessionKeys{}, err
	}
	return domain.SessionKeysFromBytes(blob), nil
}

// SaveSessionKeys persists the symmetric key pair for a session.
func (m *Manager) SaveSessionKeys(keys domain.SessionKeys, sessionID []byte) error {
	return m.store.Store(m.names.sessionKeysName(sessionID), keys.Marshal())
}

// RemoveOtPrivateKey deletes one one-time private key. Deleting an absent
// key returns ErrKeyNotFound.
func (m *Manager) RemoveOtPrivateKey(name string) error {
	return m.store.Delete(m.names.otKeyName(name))
}

// RemoveOtPrivateKeys deletes a batch of one-time private keys,
// failing on the first absent entry.
func (m *Manager) RemoveOtPrivateKeys(names []string) error {
	for _, name := range names {
		if err := m.store.Delete(m.names.otKeyName(name)); err != nil {
			return errors.Wrapf(err, "removing one-time key %q", name)
		}
	}
	return nil
}

// RemoveLtPrivateKeys deletes a batch of long-term private keys.
func (m *Manager) RemoveLtPrivateKeys(names []string) error {
	for _, name := range names {
		if err := m.store.Delete(m.names.ltKeyName(name)); err != nil {
			return errors.Wrapf(err, "removing long-term key %q", name)
		}
	}
	return nil
}

// RemoveSessionKeys deletes the symmetric keys of one session.
func (m *Manager) RemoveSessionKeys(sessionID []byte) error {
	return m.store.Delete(m.names.sessionKeysName(sessionID))
}

// RemoveSessionsKeys deletes the symmetric keys of a batch of sessions.
func (m *Manager) RemoveSessionsKeys(sessionIDs [][]byte) error {
	for _, id := range sessionIDs {
		if err := m.store.Delete(m.names.sessionKeysName(id)); err != nil {
			return errors.Wrapf(err, "removing session keys %q",
				base64.StdEncoding.EncodeToString(id))
		}
	}
	return nil
}

// GetAllKeysAttrs enumerates the backing store once and classifies every
// owned entry by key class, mapping entry names back to logical names.
// This is the single source of truth for GC and TTL decisions.
func (m *Manager) GetAllKeysAttrs() (domain.AllKeysAttrs, error) {
	attrs, err := m.store.ListAttrs()
	if err != nil {
		return domain.AllKeysAttrs{}, err
	}

	var out domain.AllKeysAttrs
	for _, a := range attrs {
		switch {
		case m.names.isSessionKeysName(a.Name):
			id, ok := m.names.extractSessionID(a.Name)
			if !ok {
				continue
			}
			out.Session = append(out.Session, domain.KeyAttrs{
				Name:         base64.StdEncoding.EncodeToString(id),
				CreationDate: a.CreationDate,
			})
		case m.names.isLtKeyName(a.Name):
			out.Lt = append(out.Lt, domain.KeyAttrs{
				Name:         m.names.extractLtName(a.Name),
				CreationDate: a.CreationDate,
			})
		case m.names.isOtKeyName(a.Name):
			out.Ot = append(out.Ot, domain.KeyAttrs{
				Name:         m.names.extractOtName(a.Name),
				CreationDate: a.CreationDate,
			})
		}
	}
	return out, nil
}

// GentleReset deletes every entry owned by this identity. Per-entry
// failures are deliberately swallowed: the intent is "delete everything
// possible", the one documented exception to surfacing storage errors.
func (m *Manager) GentleReset() {
	attrs, err := m.store.ListAttrs()
	if err != nil {
		logger.Warningf("gentle reset: listing key entries: %v", err)
		return
	}
	for _, a := range attrs {
		if !m.names.isOwnedName(a.Name) {
			continue
		}
		if err := m.store.Delete(a.Name); err != nil {
			logger.Warningf("gentle reset: deleting %q: %v", a.Name, err)
		}
	}
}

func (m *Manager) load(entryName string) ([]byte, error) {
	blob, err := m.store.Load(entryName)
	if err != nil {
		return nil, err
	}
	return blob, nil
}
