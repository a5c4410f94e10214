package registry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"pfskit/internal/domain"
)

// Registry persists session bookkeeping per remote participant under a
// single state entry per local identity:
//
//	"SESSIONS.OWNER=<identityId>" -> participantId -> base64(sessionId) -> SessionState
//
// Every mutation is a read-modify-write of the whole entry under the
// registry mutex, so a cleanup pass and a fresh handshake cannot lose each
// other's updates.
type Registry struct {
	mu         sync.Mutex
	storage    domain.StateBlobStore
	identityID string
}

// New returns a session registry scoped to identityID.
func New(storage domain.StateBlobStore, identityID string) *Registry {
	return &Registry{storage: storage, identityID: identityID}
}

// SessionRemoval identifies one (participant, session) pair for batch
// removal.
type SessionRemoval struct {
	ParticipantID string
	SessionID     []byte
}

// ParticipantSession pairs a participant id with one of its session states.
type ParticipantSession struct {
	ParticipantID string
	State         domain.SessionState
}

type registryBlob map[string]map[string]domain.SessionState

func (r *Registry) entryKey() string {
	return "SESSIONS.OWNER=" + r.identityID
}

func (r *Registry) loadBlob() (registryBlob, error) {
	raw, err := r.storage.Load(r.entryKey())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return registryBlob{}, nil
	}
	var blob registryBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, errors.Wrap(domain.ErrCorruptedState, err.Error())
	}
	return blob, nil
}

func (r *Registry) storeBlob(blob registryBlob) error {
	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return r.storage.Store(r.entryKey(), raw)
}

// AddSessionState inserts or overwrites the state for (participantID,
// state.SessionID).
func (r *Registry) AddSessionState(state domain.SessionState, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return err
	}
	sessions, ok := blob[participantID]
	if !ok {
		sessions = map[string]domain.SessionState{}
		blob[participantID] = sessions
	}
	sessions[base64.StdEncoding.EncodeToString(state.SessionID)] = state
	return r.storeBlob(blob)
}

// GetSessionState returns the exact state for (participantID, sessionID),
// or (nil, nil) when absent.
func (r *Registry) GetSessionState(participantID string, sessionID []byte) (*domain.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return nil, err
	}
	state, ok := blob[participantID][base64.StdEncoding.EncodeToString(sessionID)]
	if !ok {
		return nil, nil
	}
	if !bytes.Equal(state.SessionID, sessionID) {
		return nil, errors.Wrap(domain.ErrCorruptedState, "stored session id mismatch")
	}
	return &state, nil
}

// GetNewestSessionState returns the participant's session with the latest
// creation date, or (nil, nil) when the participant has none. Equal
// creation dates are broken deterministically by the lexicographically
// greater base64 session id.
func (r *Registry) GetNewestSessionState(participantID string) (*domain.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return nil, err
	}
	sessions := blob[participantID]
	if len(sessions) == 0 {
		return nil, nil
	}

	var newest *domain.SessionState
	var newestKey string
	for key, state := range sessions {
		state := state
		if newest == nil ||
			state.CreationDate.After(newest.CreationDate) ||
			(state.CreationDate.Equal(newest.CreationDate) && key > newestKey) {
			newest = &state
			newestKey = key
		}
	}
	return newest, nil
}

// GetSessionStatesIDs returns the session ids recorded for a participant.
func (r *Registry) GetSessionStatesIDs(participantID string) ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return nil, err
	}
	var ids [][]byte
	for key := range blob[participantID] {
		id, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, errors.Wrap(domain.ErrCorruptedState, "malformed session id key")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetAllSessionsStates returns every stored (participant, state) pair.
func (r *Registry) GetAllSessionsStates() ([]ParticipantSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return nil, err
	}
	var out []ParticipantSession
	for participantID, sessions := range blob {
		for _, state := range sessions {
			out = append(out, ParticipantSession{ParticipantID: participantID, State: state})
		}
	}
	return out, nil
}

// RemoveSessionState removes one session entry, returning
// ErrSessionNotFound when the pair is absent.
func (r *Registry) RemoveSessionState(participantID string, sessionID []byte) error {
	return r.RemoveSessionsStates([]SessionRemoval{{ParticipantID: participantID, SessionID: sessionID}})
}

// RemoveSessionsStates removes a batch of session entries. The not-found
// check is per pair, but the write-back is all-or-nothing: when any pair is
// missing nothing is persisted.
func (r *Registry) RemoveSessionsStates(removals []SessionRemoval) error {
	if len(removals) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.loadBlob()
	if err != nil {
		return err
	}
	for _, rm := range removals {
		sessions, ok := blob[rm.ParticipantID]
		if !ok {
			return errors.Wrapf(domain.ErrSessionNotFound, "no sessions for participant %q", rm.ParticipantID)
		}
		key := base64.StdEncoding.EncodeToString(rm.SessionID)
		if _, ok := sessions[key]; !ok {
			return errors.Wrapf(domain.ErrSessionNotFound, "session %q for participant %q", key, rm.ParticipantID)
		}
		delete(sessions, key)
		if len(sessions) == 0 {
			delete(blob, rm.ParticipantID)
		}
	}
	return r.storeBlob(blob)
}
