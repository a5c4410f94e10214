package exhaust

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"pfskit/internal/domain"
)

// Tracker persists one-time card, long-term card, and session exhaustion
// bookkeeping under a single state entry per local identity:
//
//	"EXHAUSTINFO.OWNER=<identityId>"
//
// The rotation engine is the only writer; reads and writes still share a
// mutex so a status command never observes a torn entry.
type Tracker struct {
	mu         sync.Mutex
	storage    domain.StateBlobStore
	identityID string
}

// New returns an exhaustion tracker scoped to identityID.
func New(storage domain.StateBlobStore, identityID string) *Tracker {
	return &Tracker{storage: storage, identityID: identityID}
}

func (t *Tracker) entryKey() string {
	return "EXHAUSTINFO.OWNER=" + t.identityID
}

// GetKeysExhaustInfo returns the stored exhaustion aggregate, or an empty
// aggregate when none has been saved yet.
func (t *Tracker) GetKeysExhaustInfo() (domain.ExhaustInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := t.storage.Load(t.entryKey())
	if err != nil {
		return domain.ExhaustInfo{}, err
	}
	if raw == nil {
		return domain.ExhaustInfo{}, nil
	}
	var info domain.ExhaustInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.ExhaustInfo{}, errors.Wrap(domain.ErrCorruptedExhaustInfo, err.Error())
	}
	return info, nil
}

// SaveKeysExhaustInfo replaces the stored aggregate wholesale. Callers
// read, rewrite, and save the full aggregate in one rotation pass.
func (t *Tracker) SaveKeysExhaustInfo(info domain.ExhaustInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return t.storage.Store(t.entryKey(), raw)
}
