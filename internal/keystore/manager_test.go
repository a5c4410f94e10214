package keystore_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"pfskit/internal/domain"
	"pfskit/internal/keystore"
	"pfskit/internal/store"
)

func makeManager(t *testing.T, identityID string) *keystore.Manager {
	t.Helper()
	s := store.NewFileKeyStore(filepath.Join(t.TempDir(), "keys.json"))
	return keystore.New(s, identityID)
}

func TestSaveKeys_LoadByLogicalName(t *testing.T) {
	m := makeManager(t, "alice")

	err := m.SaveKeys([]keystore.KeyEntry{
		{PrivateKey: []byte{1}, Name: "ot-1"},
		{PrivateKey: []byte{2}, Name: "ot-2"},
	}, &keystore.KeyEntry{PrivateKey: []byte{3}, Name: "lt-1"})
	if err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	got, err := m.GetOtPrivateKey("ot-2")
	if err != nil {
		t.Fatalf("GetOtPrivateKey: %v", err)
	}
	if !bytes.Equal(got, []byte{2}) {
		t.Fatalf("one-time key mismatch: %v", got)
	}
	got, err = m.GetLtPrivateKey("lt-1")
	if err != nil {
		t.Fatalf("GetLtPrivateKey: %v", err)
	}
	if !bytes.Equal(got, []byte{3}) {
		t.Fatalf("long-term key mismatch: %v", got)
	}
}

func TestGetOtPrivateKey_Missing_Fails(t *testing.T) {
	m := makeManager(t, "alice")
	if _, err := m.GetOtPrivateKey("nope"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSessionKeys_RoundTrip(t *testing.T) {
	m := makeManager(t, "alice")
	id := []byte{0xde, 0xad, 0xbe, 0xef}
	keys := domain.SessionKeys{
		EncryptionKey: bytes.Repeat([]byte{1}, 32),
		DecryptionKey: bytes.Repeat([]byte{2}, 32),
	}

	if err := m.SaveSessionKeys(keys, id); err != nil {
		t.Fatalf("SaveSessionKeys: %v", err)
	}
	got, err := m.GetSessionKeys(id)
	if err != nil {
		t.Fatalf("GetSessionKeys: %v", err)
	}
	if !bytes.Equal(got.EncryptionKey, keys.EncryptionKey) || !bytes.Equal(got.DecryptionKey, keys.DecryptionKey) {
		t.Fatal("session keys mismatch after reload")
	}

	if err := m.RemoveSessionKeys(id); err != nil {
		t.Fatalf("RemoveSessionKeys: %v", err)
	}
	if _, err := m.GetSessionKeys(id); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after removal, got %v", err)
	}
}

func TestGetAllKeysAttrs_ClassifiesByKeyClass(t *testing.T) {
	m := makeManager(t, "alice")

	err := m.SaveKeys([]keystore.KeyEntry{
		{PrivateKey: []byte{1}, Name: "ot-1"},
		{PrivateKey: []byte{2}, Name: "ot-2"},
	}, &keystore.KeyEntry{PrivateKey: []byte{3}, Name: "lt-1"})
	if err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	if err := m.SaveSessionKeys(domain.SessionKeys{
		EncryptionKey: []byte{4},
		DecryptionKey: []byte{5},
	}, []byte{9, 9}); err != nil {
		t.Fatalf("SaveSessionKeys: %v", err)
	}

	attrs, err := m.GetAllKeysAttrs()
	if err != nil {
		t.Fatalf("GetAllKeysAttrs: %v", err)
	}
	if len(attrs.Lt) != 1 || len(attrs.Ot) != 2 || len(attrs.Session) != 1 {
		t.Fatalf("classification wrong: lt=%d ot=%d session=%d",
			len(attrs.Lt), len(attrs.Ot), len(attrs.Session))
	}

	var otNames []string
	for _, a := range attrs.Ot {
		otNames = append(otNames, a.Name)
	}
	sort.Strings(otNames)
	if otNames[0] != "ot-1" || otNames[1] != "ot-2" {
		t.Fatalf("one-time names not mapped back: %v", otNames)
	}
}

func TestManagers_IsolatedPerIdentity(t *testing.T) {
	shared := store.NewFileKeyStore(filepath.Join(t.TempDir(), "keys.json"))
	alice := keystore.New(shared, "alice")
	bob := keystore.New(shared, "bob")

	if err := alice.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-1"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	if _, err := bob.GetLtPrivateKey("lt-1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("bob sees alice's key: %v", err)
	}
	attrs, err := bob.GetAllKeysAttrs()
	if err != nil {
		t.Fatalf("GetAllKeysAttrs: %v", err)
	}
	if len(attrs.Lt)+len(attrs.Ot)+len(attrs.Session) != 0 {
		t.Fatal("bob's listing includes alice's entries")
	}
}

func TestHasRelevantLtKey(t *testing.T) {
	m := makeManager(t, "alice")
	now := time.Now()

	if m.HasRelevantLtKey(now, time.Hour) {
		t.Fatal("relevant key reported before any were saved")
	}
	if err := m.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-1"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	if !m.HasRelevantLtKey(now, time.Hour) {
		t.Fatal("fresh long-term key not reported relevant")
	}
	if m.HasRelevantLtKey(now.Add(2*time.Hour), time.Hour) {
		t.Fatal("aged long-term key still reported relevant")
	}
}

func TestGentleReset_SweepsOnlyOwnIdentity(t *testing.T) {
	shared := store.NewFileKeyStore(filepath.Join(t.TempDir(), "keys.json"))
	alice := keystore.New(shared, "alice")
	bob := keystore.New(shared, "bob")

	if err := alice.SaveKeys([]keystore.KeyEntry{{PrivateKey: []byte{1}, Name: "ot-1"}}, nil); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	if err := bob.SaveKeys([]keystore.KeyEntry{{PrivateKey: []byte{2}, Name: "ot-1"}}, nil); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	alice.GentleReset()

	if _, err := alice.GetOtPrivateKey("ot-1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("alice's key survived reset: %v", err)
	}
	if _, err := bob.GetOtPrivateKey("ot-1"); err != nil {
		t.Fatalf("bob's key did not survive alice's reset: %v", err)
	}
}
