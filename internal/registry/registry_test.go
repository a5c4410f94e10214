package registry_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pfskit/internal/domain"
	"pfskit/internal/registry"
	"pfskit/internal/store"
)

func makeRegistry(t *testing.T) (*registry.Registry, domain.StateBlobStore) {
	t.Helper()
	s := store.NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))
	return registry.New(s, "alice"), s
}

func makeState(id byte, created time.Time) domain.SessionState {
	return domain.SessionState{
		CreationDate:   created,
		ExpirationDate: created.Add(time.Hour),
		SessionID:      []byte{id},
		AdditionalData: []byte("ad"),
	}
}

func TestAddAndGetSessionState(t *testing.T) {
	r, _ := makeRegistry(t)
	state := makeState(1, time.Now().UTC())

	if err := r.AddSessionState(state, "bob"); err != nil {
		t.Fatalf("AddSessionState: %v", err)
	}
	got, err := r.GetSessionState("bob", []byte{1})
	if err != nil {
		t.Fatalf("GetSessionState: %v", err)
	}
	if got == nil || !got.CreationDate.Equal(state.CreationDate) {
		t.Fatalf("stored state mismatch: %+v", got)
	}

	got, err = r.GetSessionState("bob", []byte{2})
	if err != nil {
		t.Fatalf("GetSessionState absent: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for absent session")
	}
}

func TestGetNewestSessionState_NewestWins(t *testing.T) {
	r, _ := makeRegistry(t)
	base := time.Now().UTC()

	if err := r.AddSessionState(makeState(1, base), "bob"); err != nil {
		t.Fatalf("AddSessionState: %v", err)
	}
	if err := r.AddSessionState(makeState(2, base.Add(time.Minute)), "bob"); err != nil {
		t.Fatalf("AddSessionState: %v", err)
	}

	newest, err := r.GetNewestSessionState("bob")
	if err != nil {
		t.Fatalf("GetNewestSessionState: %v", err)
	}
	if newest == nil || newest.SessionID[0] != 2 {
		t.Fatalf("expected session 2 as newest, got %+v", newest)
	}

	// Removing the newest reverts to the next-newest.
	if err := r.RemoveSessionState("bob", []byte{2}); err != nil {
		t.Fatalf("RemoveSessionState: %v", err)
	}
	newest, err = r.GetNewestSessionState("bob")
	if err != nil {
		t.Fatalf("GetNewestSessionState: %v", err)
	}
	if newest == nil || newest.SessionID[0] != 1 {
		t.Fatalf("expected session 1 after removal, got %+v", newest)
	}
}

func TestGetNewestSessionState_TieBrokenDeterministically(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	// Insert in both orders; the winner must be the same either way.
	for name, ids := range map[string][]byte{"ascending": {1, 2}, "descending": {2, 1}} {
		r, _ := makeRegistry(t)
		for _, id := range ids {
			if err := r.AddSessionState(makeState(id, base), "bob"); err != nil {
				t.Fatalf("%s AddSessionState: %v", name, err)
			}
		}
		newest, err := r.GetNewestSessionState("bob")
		if err != nil {
			t.Fatalf("%s GetNewestSessionState: %v", name, err)
		}
		if newest.SessionID[0] != 2 {
			t.Fatalf("%s: tie broken inconsistently, got session %d", name, newest.SessionID[0])
		}
	}
}

func TestGetNewestSessionState_NoSessions(t *testing.T) {
	r, _ := makeRegistry(t)
	newest, err := r.GetNewestSessionState("bob")
	if err != nil {
		t.Fatalf("GetNewestSessionState: %v", err)
	}
	if newest != nil {
		t.Fatalf("expected nil, got %+v", newest)
	}
}

func TestRemoveSessionState_Missing_Fails(t *testing.T) {
	r, _ := makeRegistry(t)
	if err := r.RemoveSessionState("bob", []byte{1}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRemoveSessionsStates_AllOrNothing(t *testing.T) {
	r, _ := makeRegistry(t)
	if err := r.AddSessionState(makeState(1, time.Now().UTC()), "bob"); err != nil {
		t.Fatalf("AddSessionState: %v", err)
	}

	err := r.RemoveSessionsStates([]registry.SessionRemoval{
		{ParticipantID: "bob", SessionID: []byte{1}},
		{ParticipantID: "bob", SessionID: []byte{99}},
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	// The batch failed, so session 1 must still be there.
	got, err := r.GetSessionState("bob", []byte{1})
	if err != nil {
		t.Fatalf("GetSessionState: %v", err)
	}
	if got == nil {
		t.Fatal("partial batch removal persisted")
	}
}

func TestRegistry_CorruptedBlob_Fails(t *testing.T) {
	r, s := makeRegistry(t)
	if err := s.Store("SESSIONS.OWNER=alice", []byte("not json")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := r.GetNewestSessionState("bob"); !errors.Is(err, domain.ErrCorruptedState) {
		t.Fatalf("expected ErrCorruptedState, got %v", err)
	}
}

func TestRegistries_IsolatedPerIdentity(t *testing.T) {
	s := store.NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))
	alice := registry.New(s, "alice")
	eve := registry.New(s, "eve")

	if err := alice.AddSessionState(makeState(1, time.Now().UTC()), "bob"); err != nil {
		t.Fatalf("AddSessionState: %v", err)
	}
	got, err := eve.GetNewestSessionState("bob")
	if err != nil {
		t.Fatalf("GetNewestSessionState: %v", err)
	}
	if got != nil {
		t.Fatal("eve sees alice's sessions")
	}
}
