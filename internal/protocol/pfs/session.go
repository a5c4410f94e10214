package pfs

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"pfskit/internal/domain"
)

// SaltSize is the length of the per-message salt.
const SaltSize = 16

var messageInfo = []byte("pfskit-v1 message")

// Session is a live symmetric session. Each message derives a one-off
// ChaCha20-Poly1305 key and nonce from the directional key and a fresh
// salt, with the session's additional data bound as AEAD associated data.
type Session struct {
	id             []byte
	encryptionKey  []byte
	decryptionKey  []byte
	additionalData []byte
}

var _ domain.SessionCipher = (*Session)(nil)

func newSession(id, encKey, decKey, additionalData []byte) (*Session, error) {
	if additionalData == nil {
		additionalData = []byte{}
	}
	return &Session{
		id:             append([]byte(nil), id...),
		encryptionKey:  append([]byte(nil), encKey...),
		decryptionKey:  append([]byte(nil), decKey...),
		additionalData: append([]byte(nil), additionalData...),
	}, nil
}

func (s *Session) ID() []byte { return s.id }

func (s *Session) Keys() domain.SessionKeys {
	return domain.SessionKeys{
		EncryptionKey: s.encryptionKey,
		DecryptionKey: s.decryptionKey,
	}
}

func (s *Session) AdditionalData() []byte { return s.additionalData }

// Encrypt seals one message under a fresh salt.
func (s *Session) Encrypt(plaintext []byte) (salt, ciphertext []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	aead, nonce, err := messageAEAD(s.encryptionKey, salt)
	if err != nil {
		return nil, nil, err
	}
	return salt, aead.Seal(nil, nonce, plaintext, s.additionalData), nil
}

// Decrypt opens one message sealed by the peer under the given salt.
func (s *Session) Decrypt(salt, ciphertext []byte) ([]byte, error) {
	aead, nonce, err := messageAEAD(s.decryptionKey, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, s.additionalData)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting message")
	}
	return plaintext, nil
}

func messageAEAD(directionKey, salt []byte) (cipher.AEAD, []byte, error) {
	r := hkdf.New(sha256.New, directionKey, salt, messageInfo)
	okm := make([]byte, chacha20poly1305.KeySize+chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, nil, errors.Wrap(err, "deriving message key")
	}
	a, err := chacha20poly1305.New(okm[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, nil, err
	}
	return a, okm[chacha20poly1305.KeySize:], nil
}
