package rotation_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/logger"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
	"pfskit/internal/exhaust"
	"pfskit/internal/keystore"
	"pfskit/internal/protocol/pfs"
	"pfskit/internal/registry"
	"pfskit/internal/rotation"
	"pfskit/internal/store"
)

func TestMain(m *testing.M) {
	logger.Init("rotation-test", false, false, io.Discard)
	os.Exit(m.Run())
}

// memKeyStore is an in-memory KeyBlobStore with settable creation dates.
type memKeyStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value   []byte
	created time.Time
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{entries: map[string]memEntry{}}
}

func (s *memKeyStore) Store(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = memEntry{value: append([]byte(nil), value...), created: time.Now()}
	return nil
}

func (s *memKeyStore) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return e.value, nil
}

func (s *memKeyStore) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

func (s *memKeyStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(s.entries, name)
	return nil
}

func (s *memKeyStore) ListAttrs() ([]domain.KeyAttrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]domain.KeyAttrs, 0, len(s.entries))
	for name, e := range s.entries {
		attrs = append(attrs, domain.KeyAttrs{Name: name, CreationDate: e.created})
	}
	return attrs, nil
}

// backdate rewrites an entry's creation date.
func (s *memKeyStore) backdate(name string, created time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[name]
	e.created = created
	s.entries[name] = e
}

// fakeCardService records submissions and serves canned pool data.
type fakeCardService struct {
	mu             sync.Mutex
	active         int
	exhaustedIDs   []string
	failSubmit     bool
	bootstrapCalls int
	createCalls    int
	validated      [][]string
	statusGate     chan struct{}
	statusEntered  chan struct{}
	enteredOnce    sync.Once
}

var errSubmitRejected = errors.New("card request rejected")

func (f *fakeCardService) BootstrapCardsSet(_ context.Context, _ string, ltc domain.CardRequest, otc []domain.CardRequest) (domain.Card, []domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapCalls++
	if f.failSubmit {
		return domain.Card{}, nil, errSubmitRejected
	}
	cards := make([]domain.Card, len(otc))
	for i, req := range otc {
		cards[i] = cardFromRequest(req)
	}
	return cardFromRequest(ltc), cards, nil
}

func (f *fakeCardService) CreateOneTimeCards(_ context.Context, _ string, otc []domain.CardRequest) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failSubmit {
		return nil, errSubmitRejected
	}
	cards := make([]domain.Card, len(otc))
	for i, req := range otc {
		cards[i] = cardFromRequest(req)
	}
	return cards, nil
}

func (f *fakeCardService) GetCardsStatus(_ context.Context, _ string) (domain.CardsStatus, error) {
	if f.statusEntered != nil {
		f.enteredOnce.Do(func() { close(f.statusEntered) })
	}
	if f.statusGate != nil {
		<-f.statusGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.CardsStatus{Active: f.active}, nil
}

func (f *fakeCardService) ValidateOneTimeCards(_ context.Context, _ string, cardIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, append([]string(nil), cardIDs...))
	var out []string
	for _, id := range cardIDs {
		for _, ex := range f.exhaustedIDs {
			if id == ex {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeCardService) GetRecipientCardsSets(context.Context, []string) ([]domain.RecipientCardsSet, error) {
	return nil, nil
}

func cardFromRequest(req domain.CardRequest) domain.Card {
	return domain.Card{
		ID:            crypto.SnapshotID(req.Snapshot),
		Identity:      req.Identity,
		PublicKeyData: req.PublicKeyData,
		Snapshot:      req.Snapshot,
		Signatures:    req.Signatures,
	}
}

// fixture bundles a rotation engine with its collaborators and a movable
// clock.
type fixture struct {
	keys     *keystore.Manager
	keyStore *memKeyStore
	sessions *registry.Registry
	tracker  *exhaust.Tracker
	cards    *fakeCardService
	engine   *rotation.Engine
	now      time.Time
}

func makeFixture(t *testing.T, cards *fakeCardService) *fixture {
	t.Helper()
	identity, err := crypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	f := &fixture{
		keyStore: newMemKeyStore(),
		cards:    cards,
		now:      time.Now(),
	}
	stateStore := store.NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))
	f.keys = keystore.New(f.keyStore, "alice-ic")
	f.sessions = registry.New(stateStore, "alice-ic")
	f.tracker = exhaust.New(stateStore, "alice-ic")

	engine := pfs.New()
	replenisher := rotation.NewReplenisher(engine, cards, f.keys, identity, "alice-ic")
	f.engine = rotation.NewEngine(f.keys, f.sessions, f.tracker, cards, replenisher, "alice-ic", rotation.Config{
		LongTermKeyTTL:          7 * 24 * time.Hour,
		ExhaustedLongTermKeyTTL: 24 * time.Hour,
		ExpiredSessionTTL:       24 * time.Hour,
		ExhaustedOneTimeKeyTTL:  24 * time.Hour,
		Now:                     func() time.Time { return f.now },
	})
	return f
}

func TestRotate_ReplenishesMissingCards(t *testing.T) {
	cards := &fakeCardService{active: 40}
	f := makeFixture(t, cards)

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// No relevant long-term key existed, so the bootstrap path was used.
	if cards.bootstrapCalls != 1 || cards.createCalls != 0 {
		t.Fatalf("bootstrap=%d create=%d", cards.bootstrapCalls, cards.createCalls)
	}
	attrs, err := f.keys.GetAllKeysAttrs()
	if err != nil {
		t.Fatalf("GetAllKeysAttrs: %v", err)
	}
	if len(attrs.Ot) != 60 {
		t.Fatalf("expected 60 one-time keys, got %d", len(attrs.Ot))
	}
	if len(attrs.Lt) != 1 {
		t.Fatalf("expected 1 long-term key, got %d", len(attrs.Lt))
	}
}

func TestRotate_LighterPathWhenLongTermKeyFresh(t *testing.T) {
	cards := &fakeCardService{active: 90}
	f := makeFixture(t, cards)

	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-fresh"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if cards.bootstrapCalls != 0 || cards.createCalls != 1 {
		t.Fatalf("bootstrap=%d create=%d", cards.bootstrapCalls, cards.createCalls)
	}
}

func TestRotate_PoolFull_NoReplenishment(t *testing.T) {
	cards := &fakeCardService{active: 120}
	f := makeFixture(t, cards)

	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-fresh"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if cards.bootstrapCalls+cards.createCalls != 0 {
		t.Fatal("replenishment ran with a full pool")
	}
}

func TestRotate_ConcurrentCallFailsFast(t *testing.T) {
	cards := &fakeCardService{
		active:        100,
		statusGate:    make(chan struct{}),
		statusEntered: make(chan struct{}),
	}
	f := makeFixture(t, cards)
	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-fresh"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.engine.Rotate(context.Background(), 100)
	}()

	// Wait until the first pass is blocked inside the status check, then a
	// second call must fail fast instead of queuing.
	<-cards.statusEntered
	if err := f.engine.Rotate(context.Background(), 100); !errors.Is(err, domain.ErrRotationInProgress) {
		t.Fatalf("expected ErrRotationInProgress, got %v", err)
	}

	close(cards.statusGate)
	if err := <-done; err != nil {
		t.Fatalf("first Rotate: %v", err)
	}

	// The lock is released once the pass completes.
	cards.statusGate = nil
	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate after completion: %v", err)
	}
}

func TestRotate_SubmissionRejected_NothingPersisted(t *testing.T) {
	cards := &fakeCardService{active: 0, failSubmit: true}
	f := makeFixture(t, cards)

	err := f.engine.Rotate(context.Background(), 10)
	if !errors.Is(err, domain.ErrReplenishFailed) {
		t.Fatalf("expected ErrReplenishFailed, got %v", err)
	}

	attrs, err := f.keys.GetAllKeysAttrs()
	if err != nil {
		t.Fatalf("GetAllKeysAttrs: %v", err)
	}
	if len(attrs.Ot)+len(attrs.Lt) != 0 {
		t.Fatal("keys persisted for a rejected batch")
	}
}

func TestRotate_ExpiredSessionRemovedInOnePass(t *testing.T) {
	cards := &fakeCardService{active: 100}
	f := makeFixture(t, cards)

	addSession := func(sessionID []byte, expired time.Duration) {
		t.Helper()
		state := domain.SessionState{
			CreationDate:   f.now.Add(-expired - 48*time.Hour),
			ExpirationDate: f.now.Add(-expired),
			SessionID:      sessionID,
		}
		if err := f.sessions.AddSessionState(state, "bob-ic"); err != nil {
			t.Fatalf("AddSessionState: %v", err)
		}
		if err := f.keys.SaveSessionKeys(domain.SessionKeys{
			EncryptionKey: []byte{1},
			DecryptionKey: []byte{2},
		}, sessionID); err != nil {
			t.Fatalf("SaveSessionKeys: %v", err)
		}
	}

	// One session expired well past the 24h grace window, one inside it.
	oldID := []byte{0xaa}
	recentID := []byte{0xab}
	addSession(oldID, 72*time.Hour)
	addSession(recentID, time.Hour)

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// A single pass removes the long-expired session, entry and keys both.
	if got, err := f.sessions.GetSessionState("bob-ic", oldID); err != nil || got != nil {
		t.Fatalf("expired session survived: %v, %v", got, err)
	}
	if _, err := f.keys.GetSessionKeys(oldID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expired session keys survived: %v", err)
	}

	// The recently expired session stays until its grace window passes.
	if got, err := f.sessions.GetSessionState("bob-ic", recentID); err != nil || got == nil {
		t.Fatalf("session removed inside its grace window: %v, %v", got, err)
	}
	if _, err := f.keys.GetSessionKeys(recentID); err != nil {
		t.Fatalf("session keys removed inside the grace window: %v", err)
	}
}

func TestRotate_OrphanedSessionKeysCollected(t *testing.T) {
	cards := &fakeCardService{active: 100}
	f := makeFixture(t, cards)
	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-fresh"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	orphanID := []byte{0xbb}
	if err := f.keys.SaveSessionKeys(domain.SessionKeys{
		EncryptionKey: []byte{1},
		DecryptionKey: []byte{2},
	}, orphanID); err != nil {
		t.Fatalf("SaveSessionKeys: %v", err)
	}

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := f.keys.GetSessionKeys(orphanID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("orphaned session keys survived: %v", err)
	}
}

func TestRotate_ExhaustedOneTimeKeysLifecycle(t *testing.T) {
	cards := &fakeCardService{active: 100, exhaustedIDs: []string{"ot-spent"}}
	f := makeFixture(t, cards)
	if err := f.keys.SaveKeys([]keystore.KeyEntry{
		{PrivateKey: []byte{1}, Name: "ot-spent"},
		{PrivateKey: []byte{2}, Name: "ot-live"},
	}, &keystore.KeyEntry{PrivateKey: []byte{3}, Name: "lt-fresh"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	// First pass learns "ot-spent" is exhausted but keeps the key.
	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := f.keys.GetOtPrivateKey("ot-spent"); err != nil {
		t.Fatalf("spent key removed before its grace window: %v", err)
	}
	info, err := f.tracker.GetKeysExhaustInfo()
	if err != nil {
		t.Fatalf("GetKeysExhaustInfo: %v", err)
	}
	if len(info.Otc) != 1 || info.Otc[0].CardID != "ot-spent" {
		t.Fatalf("tracker did not record exhaustion: %+v", info.Otc)
	}

	// Second pass after the grace window deletes the key and prunes the
	// ledger; the still-live key is revalidated, the tracked one is not.
	f.now = f.now.Add(25 * time.Hour)
	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := f.keys.GetOtPrivateKey("ot-spent"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("spent key survived its grace window: %v", err)
	}
	if _, err := f.keys.GetOtPrivateKey("ot-live"); err != nil {
		t.Fatalf("live key removed: %v", err)
	}
	info, err = f.tracker.GetKeysExhaustInfo()
	if err != nil {
		t.Fatalf("GetKeysExhaustInfo: %v", err)
	}
	if len(info.Otc) != 0 {
		t.Fatalf("tracker entry not pruned: %+v", info.Otc)
	}

	last := cards.validated[len(cards.validated)-1]
	if len(last) != 1 || last[0] != "ot-live" {
		t.Fatalf("second validation should cover only the live key, got %v", last)
	}
}

func TestRotate_StaleLongTermKeyRemovedInOnePass(t *testing.T) {
	cards := &fakeCardService{active: 100}
	f := makeFixture(t, cards)

	// lt-old is past its 7-day TTL plus the 24h grace window; lt-aging is
	// past the TTL but still inside the window.
	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-old"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{2}, Name: "lt-aging"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	f.keyStore.backdate("OWNER=alice-ic.LT_KEY.lt-old", f.now.Add(-9*24*time.Hour))
	f.keyStore.backdate("OWNER=alice-ic.LT_KEY.lt-aging", f.now.Add(-7*24*time.Hour-12*time.Hour))

	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := f.keys.GetLtPrivateKey("lt-old"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("stale long-term key survived: %v", err)
	}
	if _, err := f.keys.GetLtPrivateKey("lt-aging"); err != nil {
		t.Fatalf("long-term key removed inside its grace window: %v", err)
	}
}

func TestRotate_FullPool_StaleLongTermKeyDoesNotReplenish(t *testing.T) {
	cards := &fakeCardService{active: 120}
	f := makeFixture(t, cards)

	if err := f.keys.SaveKeys(nil, &keystore.KeyEntry{PrivateKey: []byte{1}, Name: "lt-aging"}); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}
	f.keyStore.backdate("OWNER=alice-ic.LT_KEY.lt-aging", f.now.Add(-7*24*time.Hour-12*time.Hour))

	// With no cards missing the pass ends without issuing anything; the
	// replacement long-term key rides along with the next real shortfall.
	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if cards.bootstrapCalls+cards.createCalls != 0 {
		t.Fatal("replenishment ran with a full pool")
	}

	cards.active = 90
	if err := f.engine.Rotate(context.Background(), 100); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if cards.bootstrapCalls != 1 {
		t.Fatalf("expected a bootstrap carrying the replacement long-term key, got bootstrap=%d create=%d",
			cards.bootstrapCalls, cards.createCalls)
	}
}
