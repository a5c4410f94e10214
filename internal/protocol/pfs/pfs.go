package pfs

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
)

const (
	sessionIDSize  = 32
	sessionKeySize = 32
)

var sessionInfo = []byte("pfskit-v1 session")

// Engine implements domain.Engine with X25519 Diffie-Hellman, HKDF-SHA256
// key derivation, and ChaCha20-Poly1305 message encryption.
type Engine struct{}

// New returns the default PFS engine.
func New() *Engine { return &Engine{} }

var _ domain.Engine = (*Engine)(nil)

// GenerateKeyPair returns a fresh X25519 key pair for ephemeral, long-term,
// or one-time cards.
func (e *Engine) GenerateKeyPair() (domain.KeyPair, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs data with the signing half of an identity private key.
func (e *Engine) Sign(data, privateKey []byte) ([]byte, error) {
	return crypto.Sign(data, privateKey)
}

// Verify checks a signature against the signing half of an identity public key.
func (e *Engine) Verify(data, signature, publicKey []byte) error {
	return crypto.Verify(data, signature, publicKey)
}

// StartInitiatorSession derives a session from the initiator's side:
//
//	dh1 = DH(IK_A, LTK_B)   dh2 = DH(EK_A, IK_B)
//	dh3 = DH(EK_A, LTK_B)   dh4 = DH(EK_A, OTK_B)   (dh4 only when present)
func (e *Engine) StartInitiatorSession(priv domain.InitiatorPrivateInfo, pub domain.ResponderPublicInfo, additionalData []byte) (domain.SessionCipher, error) {
	dh1, err := crypto.DH(priv.IdentityKey, pub.LongTermKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh identity/long-term")
	}
	dh2, err := crypto.DH(priv.EphemeralKey, pub.IdentityKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh ephemeral/identity")
	}
	dh3, err := crypto.DH(priv.EphemeralKey, pub.LongTermKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh ephemeral/long-term")
	}

	ikm := concat(dh1, dh2, dh3)
	if pub.OneTimeKey != nil {
		dh4, err := crypto.DH(priv.EphemeralKey, pub.OneTimeKey)
		if err != nil {
			return nil, errors.Wrap(err, "dh ephemeral/one-time")
		}
		ikm = append(ikm, dh4...)
	}
	defer crypto.Wipe(ikm)

	id, keyA, keyB, err := deriveSession(ikm, additionalData)
	if err != nil {
		return nil, err
	}
	return newSession(id, keyA, keyB, additionalData)
}

// StartResponderSession mirrors StartInitiatorSession with the responder's
// private keys, swapping the encryption and decryption keys.
func (e *Engine) StartResponderSession(priv domain.ResponderPrivateInfo, pub domain.InitiatorPublicInfo, additionalData []byte) (domain.SessionCipher, error) {
	dh1, err := crypto.DH(priv.LongTermKey, pub.IdentityKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh long-term/identity")
	}
	dh2, err := crypto.DH(priv.IdentityKey, pub.EphemeralKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh identity/ephemeral")
	}
	dh3, err := crypto.DH(priv.LongTermKey, pub.EphemeralKey)
	if err != nil {
		return nil, errors.Wrap(err, "dh long-term/ephemeral")
	}

	ikm := concat(dh1, dh2, dh3)
	if priv.OneTimeKey != nil {
		dh4, err := crypto.DH(priv.OneTimeKey, pub.EphemeralKey)
		if err != nil {
			return nil, errors.Wrap(err, "dh one-time/ephemeral")
		}
		ikm = append(ikm, dh4...)
	}
	defer crypto.Wipe(ikm)

	id, keyA, keyB, err := deriveSession(ikm, additionalData)
	if err != nil {
		return nil, err
	}
	return newSession(id, keyB, keyA, additionalData)
}

// RestoreSession rebuilds a session cipher from previously stored symmetric
// keys, bypassing the handshake.
func (e *Engine) RestoreSession(sessionID []byte, keys domain.SessionKeys, additionalData []byte) (domain.SessionCipher, error) {
	if len(sessionID) == 0 {
		return nil, errors.New("restore session: empty session id")
	}
	if len(keys.EncryptionKey) == 0 || len(keys.EncryptionKey) != len(keys.DecryptionKey) {
		return nil, errors.New("restore session: malformed symmetric keys")
	}
	return newSession(sessionID, keys.EncryptionKey, keys.DecryptionKey, additionalData)
}

// deriveSession expands the DH shared material into a session id and two
// directional keys. Both sides derive identical output; the caller decides
// which key encrypts and which decrypts.
func deriveSession(ikm, additionalData []byte) (id, keyA, keyB []byte, err error) {
	info := append(append([]byte(nil), sessionInfo...), additionalData...)
	r := hkdf.New(sha256.New, ikm, nil, info)

	okm := make([]byte, sessionIDSize+2*sessionKeySize)
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, nil, nil, errors.Wrap(err, "deriving session keys")
	}

	id = okm[:sessionIDSize]
	keyA = okm[sessionIDSize : sessionIDSize+sessionKeySize]
	keyB = okm[sessionIDSize+sessionKeySize:]
	return id, keyA, keyB, nil
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
