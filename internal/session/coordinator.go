package session

import (
	"time"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"pfskit/internal/domain"
	"pfskit/internal/keystore"
	"pfskit/internal/registry"
)

// Coordinator is the session facade: it starts, accepts, recovers, and
// removes sessions, delegating crypto to the establisher and persistence to
// the key manager and the session registry. A freshly derived session is
// persisted before it is handed to the caller, so a crash between handshake
// and first use loses nothing.
type Coordinator struct {
	establisher *Establisher
	keys        *keystore.Manager
	sessions    *registry.Registry

	sessionTTL time.Duration
	now        func() time.Time
}

// NewCoordinator wires a coordinator. sessionTTL bounds the lifetime of
// every session it creates.
func NewCoordinator(establisher *Establisher, keys *keystore.Manager, sessions *registry.Registry, sessionTTL time.Duration) *Coordinator {
	return &Coordinator{
		establisher: establisher,
		keys:        keys,
		sessions:    sessions,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

// ActiveSession returns the recovered session for the participant's newest
// non-expired state, or (nil, nil) when the participant has none. An
// expired newest state is removed on the way out rather than waiting for
// the next rotation pass.
func (c *Coordinator) ActiveSession(participantID string) (*SecureSession, error) {
	state, err := c.sessions.GetNewestSessionState(participantID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	if state.IsExpired(c.now()) {
		logger.Infof("removing expired session for %s", participantID)
		if err := c.RemoveSession(participantID, state.SessionID); err != nil {
			logger.Warningf("removing expired session for %s: %v", participantID, err)
		}
		return nil, nil
	}

	keys, err := c.keys.GetSessionKeys(state.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "loading session keys")
	}
	return c.establisher.RecoverSession(participantID, *state, keys)
}

// InitializeInitiatorSession validates the recipient's cards, runs the
// initiator handshake, and persists the new session before returning it.
func (c *Coordinator) InitializeInitiatorSession(cardsSet domain.RecipientCardsSet, additionalData []byte) (*SecureSession, error) {
	now := c.now()
	sess, err := c.establisher.StartInitiatorSession(cardsSet, additionalData, now.Add(c.sessionTTL))
	if err != nil {
		return nil, err
	}
	if err := c.persist(sess, now); err != nil {
		return nil, err
	}
	logger.Infof("initiator session established with %s", sess.ParticipantID())
	return sess, nil
}

// InitializeResponderSession accepts an initiation message from
// initiatorCard, runs the responder handshake, and persists the new session.
// It returns the session together with the message's decrypted payload.
func (c *Coordinator) InitializeResponderSession(initiatorCard domain.Card, message, additionalData []byte) (*SecureSession, []byte, error) {
	now := c.now()
	sess := c.establisher.NewResponderSession(initiatorCard, additionalData, now.Add(c.sessionTTL))

	plaintext, err := sess.Decrypt(message)
	if err != nil {
		return nil, nil, err
	}
	if err := c.persist(sess, now); err != nil {
		return nil, nil, err
	}
	logger.Infof("responder session established with %s", sess.ParticipantID())
	return sess, plaintext, nil
}

// LoadSession recovers one specific stored session.
func (c *Coordinator) LoadSession(participantID string, sessionID []byte) (*SecureSession, error) {
	state, err := c.sessions.GetSessionState(participantID, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errors.Wrapf(domain.ErrSessionNotFound, "participant %q", participantID)
	}
	keys, err := c.keys.GetSessionKeys(state.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "loading session keys")
	}
	return c.establisher.RecoverSession(participantID, *state, keys)
}

// RemoveSession removes one session's registry entry and symmetric keys.
// The registry entry goes first; keys left behind by a partial failure are
// reclaimed by the rotation engine's orphan GC.
func (c *Coordinator) RemoveSession(participantID string, sessionID []byte) error {
	if err := c.sessions.RemoveSessionState(participantID, sessionID); err != nil {
		return err
	}
	return c.keys.RemoveSessionKeys(sessionID)
}

// RemoveSessions removes every session stored for a participant.
func (c *Coordinator) RemoveSessions(participantID string) error {
	ids, err := c.sessions.GetSessionStatesIDs(participantID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	removals := make([]registry.SessionRemoval, 0, len(ids))
	for _, id := range ids {
		removals = append(removals, registry.SessionRemoval{ParticipantID: participantID, SessionID: id})
	}
	if err := c.sessions.RemoveSessionsStates(removals); err != nil {
		return err
	}
	return c.keys.RemoveSessionsKeys(ids)
}

// GentleReset removes every session across every participant, then sweeps
// all key material for the identity. Best-effort throughout.
func (c *Coordinator) GentleReset() {
	all, err := c.sessions.GetAllSessionsStates()
	if err != nil {
		logger.Warningf("gentle reset: listing sessions: %v", err)
	}
	for _, ps := range all {
		if err := c.sessions.RemoveSessionState(ps.ParticipantID, ps.State.SessionID); err != nil {
			logger.Warningf("gentle reset: removing session for %s: %v", ps.ParticipantID, err)
		}
	}
	c.keys.GentleReset()
}

func (c *Coordinator) persist(sess *SecureSession, now time.Time) error {
	keys, err := sess.Keys()
	if err != nil {
		return err
	}
	if err := c.keys.SaveSessionKeys(keys, sess.ID()); err != nil {
		return errors.Wrap(err, "saving session keys")
	}
	state := domain.SessionState{
		CreationDate:   now,
		ExpirationDate: sess.ExpirationDate(),
		SessionID:      sess.ID(),
		AdditionalData: sess.AdditionalData(),
	}
	if err := c.sessions.AddSessionState(state, sess.ParticipantID()); err != nil {
		return errors.Wrap(err, "recording session state")
	}
	return nil
}
