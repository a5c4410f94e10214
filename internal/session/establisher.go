package session

import (
	"time"

	"github.com/pkg/errors"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
	"pfskit/internal/keystore"
	"pfskit/internal/wire"
)

// CardValidator checks an ephemeral card's snapshot-derived id and its
// signatures before the card's public key is trusted for a handshake.
// owner is the identity card the ephemeral card claims to belong to.
type CardValidator interface {
	Validate(card domain.Card, owner domain.CardEntry) error
}

// Establisher runs the handshake for both roles and rebuilds sessions from
// stored symmetric keys. It owns no persistence beyond the private keys it
// reads (and, for one-time keys, consumes) through the key manager.
type Establisher struct {
	engine    domain.Engine
	keys      *keystore.Manager
	validator CardValidator

	identity       domain.KeyPair
	identityCardID string
}

// NewEstablisher returns an establisher bound to the local identity key
// pair and its published identity card id.
func NewEstablisher(engine domain.Engine, keys *keystore.Manager, validator CardValidator, identity domain.KeyPair, identityCardID string) *Establisher {
	return &Establisher{
		engine:         engine,
		keys:           keys,
		validator:      validator,
		identity:       identity,
		identityCardID: identityCardID,
	}
}

// StartInitiatorSession validates the recipient's ephemeral cards, derives
// the handshake with a fresh ephemeral key, and returns an established
// initiator session whose first Encrypt frames an InitiationMessage.
func (e *Establisher) StartInitiatorSession(cardsSet domain.RecipientCardsSet, additionalData []byte, expiration time.Time) (*SecureSession, error) {
	owner := cardsSet.IdentityCard.Entry()
	if err := e.validator.Validate(cardsSet.LongTermCard, owner); err != nil {
		return nil, errors.Wrapf(domain.ErrCardValidation, "long-term card %q: %v", cardsSet.LongTermCard.ID, err)
	}
	if cardsSet.OneTimeCard != nil {
		if err := e.validator.Validate(*cardsSet.OneTimeCard, owner); err != nil {
			return nil, errors.Wrapf(domain.ErrCardValidation, "one-time card %q: %v", cardsSet.OneTimeCard.ID, err)
		}
	}

	eph, err := e.engine.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "generating ephemeral key")
	}
	defer crypto.Wipe(eph.Private)

	ephSig, err := e.engine.Sign(eph.Public, e.identity.Private)
	if err != nil {
		return nil, errors.Wrap(err, "signing ephemeral key")
	}

	pub := domain.ResponderPublicInfo{
		IdentityKey: cardsSet.IdentityCard.PublicKeyData,
		LongTermKey: cardsSet.LongTermCard.PublicKeyData,
	}
	var otcID string
	if cardsSet.OneTimeCard != nil {
		pub.OneTimeKey = cardsSet.OneTimeCard.PublicKeyData
		otcID = cardsSet.OneTimeCard.ID
	}

	cipher, err := e.engine.StartInitiatorSession(domain.InitiatorPrivateInfo{
		IdentityKey:  e.identity.Private,
		EphemeralKey: eph.Private,
	}, pub, additionalData)
	if err != nil {
		return nil, errors.Wrap(domain.ErrHandshakeFailed, err.Error())
	}

	return &SecureSession{
		role:           RoleInitiator,
		participantID:  cardsSet.IdentityCard.ID,
		expirationDate: expiration,
		cipher:         cipher,
		pending: &initiationData{
			initiatorIcID:  e.identityCardID,
			responderIcID:  cardsSet.IdentityCard.ID,
			responderLtcID: cardsSet.LongTermCard.ID,
			responderOtcID: otcID,
			ephPublicKey:   eph.Public,
			ephSignature:   ephSig,
		},
	}, nil
}

// NewResponderSession returns a not-yet-established responder session for
// the given initiator. The handshake runs on the first decrypted
// InitiationMessage: the embedded ephemeral-key signature is verified
// against the initiator's identity card, the referenced long-term and
// one-time private keys are loaded, and on success the one-time key is
// deleted before the session is handed back. A concurrent second decrypt
// for the same one-time card id therefore fails with ErrKeyNotFound.
func (e *Establisher) NewResponderSession(initiatorCard domain.Card, additionalData []byte, expiration time.Time) *SecureSession {
	return &SecureSession{
		role:           RoleResponder,
		participantID:  initiatorCard.ID,
		expirationDate: expiration,
		bootstrap: func(msg wire.InitiationMessage) (domain.SessionCipher, error) {
			return e.respond(initiatorCard, msg, additionalData)
		},
	}
}

func (e *Establisher) respond(initiatorCard domain.Card, msg wire.InitiationMessage, additionalData []byte) (domain.SessionCipher, error) {
	if err := e.engine.Verify(msg.EphPublicKey, msg.EphPublicKeySignature, initiatorCard.PublicKeyData); err != nil {
		return nil, errors.Wrap(domain.ErrInvalidSignature, err.Error())
	}
	if msg.InitiatorIcID != initiatorCard.ID {
		return nil, errors.Wrapf(domain.ErrIdentityMismatch,
			"message claims initiator %q, expected %q", msg.InitiatorIcID, initiatorCard.ID)
	}

	ltPriv, err := e.keys.GetLtPrivateKey(msg.ResponderLtcID)
	if err != nil {
		return nil, errors.Wrapf(err, "long-term key %q", msg.ResponderLtcID)
	}
	defer crypto.Wipe(ltPriv)

	priv := domain.ResponderPrivateInfo{
		IdentityKey: e.identity.Private,
		LongTermKey: ltPriv,
	}
	if msg.ResponderOtcID != "" {
		otPriv, err := e.keys.GetOtPrivateKey(msg.ResponderOtcID)
		if err != nil {
			return nil, errors.Wrapf(err, "one-time key %q", msg.ResponderOtcID)
		}
		defer crypto.Wipe(otPriv)
		priv.OneTimeKey = otPriv
	}

	cipher, err := e.engine.StartResponderSession(priv, domain.InitiatorPublicInfo{
		IdentityKey:  initiatorCard.PublicKeyData,
		EphemeralKey: msg.EphPublicKey,
	}, additionalData)
	if err != nil {
		return nil, errors.Wrap(domain.ErrHandshakeFailed, err.Error())
	}

	// Consume the one-time key before the session leaves this function. If
	// a racing handshake already deleted it, this attempt loses.
	if msg.ResponderOtcID != "" {
		if err := e.keys.RemoveOtPrivateKey(msg.ResponderOtcID); err != nil {
			return nil, errors.Wrapf(err, "consuming one-time key %q", msg.ResponderOtcID)
		}
	}
	return cipher, nil
}

// RecoverSession rebuilds a session from stored state and symmetric keys.
func (e *Establisher) RecoverSession(participantID string, state domain.SessionState, keys domain.SessionKeys) (*SecureSession, error) {
	cipher, err := e.engine.RestoreSession(state.SessionID, keys, state.AdditionalData)
	if err != nil {
		return nil, errors.Wrap(err, "recovering session")
	}
	return &SecureSession{
		role:           RoleRecovered,
		participantID:  participantID,
		expirationDate: state.ExpirationDate,
		cipher:         cipher,
	}, nil
}
