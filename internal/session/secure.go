package session

import (
	"bytes"
	"time"

	"github.com/pkg/errors"

	"pfskit/internal/domain"
	"pfskit/internal/wire"
)

// Role tags which side of the handshake a session object represents.
type Role int

const (
	// RoleInitiator sessions derive their cipher at construction and wrap
	// their first ciphertext in an InitiationMessage.
	RoleInitiator Role = iota
	// RoleResponder sessions derive their cipher lazily, on the first
	// decrypted InitiationMessage.
	RoleResponder
	// RoleRecovered sessions are rebuilt from stored symmetric keys and
	// skip the handshake entirely.
	RoleRecovered
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	case RoleRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// initiationData is what the first initiator Encrypt needs to frame an
// InitiationMessage. Consumed exactly once.
type initiationData struct {
	initiatorIcID  string
	responderIcID  string
	responderLtcID string
	responderOtcID string
	ephPublicKey   []byte
	ephSignature   []byte
}

// bootstrapFunc performs the responder handshake for one initiation
// message, returning the derived cipher.
type bootstrapFunc func(wire.InitiationMessage) (domain.SessionCipher, error)

// SecureSession is one live pairwise session. A single type covers all
// three roles; Encrypt and Decrypt dispatch on the role tag and on whether
// the cipher has been derived yet.
type SecureSession struct {
	role           Role
	participantID  string
	expirationDate time.Time

	cipher    domain.SessionCipher
	pending   *initiationData
	bootstrap bootstrapFunc
}

// Role returns the session's role tag.
func (s *SecureSession) Role() Role { return s.role }

// ParticipantID returns the remote identity card id.
func (s *SecureSession) ParticipantID() string { return s.participantID }

// ExpirationDate returns when the session stops being usable.
func (s *SecureSession) ExpirationDate() time.Time { return s.expirationDate }

// IsExpired reports whether the session has passed its expiration date.
func (s *SecureSession) IsExpired(now time.Time) bool {
	return now.After(s.expirationDate)
}

// Established reports whether the session cipher has been derived.
func (s *SecureSession) Established() bool { return s.cipher != nil }

// ID returns the session id, or nil before the responder handshake.
func (s *SecureSession) ID() []byte {
	if s.cipher == nil {
		return nil
	}
	return s.cipher.ID()
}

// Keys returns the session's symmetric key pair for persistence.
func (s *SecureSession) Keys() (domain.SessionKeys, error) {
	if s.cipher == nil {
		return domain.SessionKeys{}, domain.ErrSessionNotInitialized
	}
	return s.cipher.Keys(), nil
}

// AdditionalData returns the authenticated context bytes, or nil before the
// responder handshake.
func (s *SecureSession) AdditionalData() []byte {
	if s.cipher == nil {
		return nil
	}
	return s.cipher.AdditionalData()
}

// Encrypt encrypts plaintext into a complete wire message. The first
// initiator call produces an InitiationMessage; every later call, on any
// role, produces a plain Message. A responder that has not yet decrypted an
// initiation message cannot encrypt.
func (s *SecureSession) Encrypt(plaintext []byte) ([]byte, error) {
	if s.cipher == nil {
		return nil, errors.Wrap(domain.ErrSessionNotInitialized, "encrypt")
	}

	salt, ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	if s.pending != nil {
		p := s.pending
		s.pending = nil
		return wire.InitiationMessage{
			InitiatorIcID:         p.initiatorIcID,
			ResponderIcID:         p.responderIcID,
			ResponderLtcID:        p.responderLtcID,
			ResponderOtcID:        p.responderOtcID,
			EphPublicKey:          p.ephPublicKey,
			EphPublicKeySignature: p.ephSignature,
			Salt:                  salt,
			CipherText:            ciphertext,
		}.Marshal()
	}

	return wire.Message{
		SessionID:  s.cipher.ID(),
		Salt:       salt,
		CipherText: ciphertext,
	}.Marshal()
}

// Decrypt decrypts one wire message. A not-yet-established responder
// accepts only an InitiationMessage, runs the handshake, and decrypts the
// embedded payload in the same call. Established sessions accept either
// framing.
func (s *SecureSession) Decrypt(data []byte) ([]byte, error) {
	switch wire.DetectMessageType(data) {
	case wire.TypeInitial:
		msg, err := wire.ParseInitiationMessage(data)
		if err != nil {
			return nil, err
		}
		if s.cipher == nil {
			if s.role != RoleResponder {
				return nil, errors.Wrap(domain.ErrSessionNotInitialized, "decrypt")
			}
			cipher, err := s.bootstrap(msg)
			if err != nil {
				return nil, err
			}
			s.cipher = cipher
		}
		return s.cipher.Decrypt(msg.Salt, msg.CipherText)

	case wire.TypeRegular:
		if s.cipher == nil {
			return nil, errors.Wrap(domain.ErrSessionNotInitialized, "decrypt")
		}
		msg, err := wire.ParseMessage(data)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(msg.SessionID, s.cipher.ID()) {
			return nil, errors.New("decrypt: message belongs to another session")
		}
		return s.cipher.Decrypt(msg.Salt, msg.CipherText)

	default:
		return nil, errors.New("decrypt: unrecognized wire message")
	}
}
