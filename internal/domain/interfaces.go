package domain

import "context"

// KeyBlobStore is a durable name->bytes store for secret key material.
// Implementations must record a creation timestamp per entry.
type KeyBlobStore interface {
	Store(name string, value []byte) error
	Load(name string) ([]byte, error) // ErrKeyNotFound if absent
	Exists(name string) bool
	Delete(name string) error // ErrKeyNotFound if absent
	ListAttrs() ([]KeyAttrs, error)
}

// StateBlobStore is a durable name->value store for non-secret structured
// state (session registry, exhaustion ledger). Values are JSON blobs.
// Load returns (nil, nil) for an absent key.
type StateBlobStore interface {
	Load(key string) ([]byte, error)
	Store(key string, value []byte) error
	Remove(key string) error
}

// CardService is the remote ephemeral-cards service.
type CardService interface {
	// BootstrapCardsSet publishes a long-term card together with a batch of
	// one-time cards in a single call.
	BootstrapCardsSet(ctx context.Context, ownerID string, ltc CardRequest, otc []CardRequest) (Card, []Card, error)
	// CreateOneTimeCards publishes one-time cards only.
	CreateOneTimeCards(ctx context.Context, ownerID string, otc []CardRequest) ([]Card, error)
	// GetCardsStatus returns the remote active/exhausted counts for ownerID.
	GetCardsStatus(ctx context.Context, ownerID string) (CardsStatus, error)
	// ValidateOneTimeCards returns the subset of cardIDs the service reports
	// as exhausted.
	ValidateOneTimeCards(ctx context.Context, ownerID string, cardIDs []string) ([]string, error)
	// GetRecipientCardsSets fetches handshake material for the given
	// identity card ids, reserving one one-time card per recipient when
	// available.
	GetRecipientCardsSets(ctx context.Context, identityIDs []string) ([]RecipientCardsSet, error)
}

// KeyPair is an opaque asymmetric key pair produced by the Engine.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// InitiatorPrivateInfo is the initiator's secret handshake material.
type InitiatorPrivateInfo struct {
	IdentityKey  []byte
	EphemeralKey []byte
}

// ResponderPublicInfo is the responder's public handshake material as seen
// by the initiator. OneTimeKey is nil for a weak session.
type ResponderPublicInfo struct {
	IdentityKey []byte
	LongTermKey []byte
	OneTimeKey  []byte
}

// ResponderPrivateInfo is the responder's secret handshake material.
// OneTimeKey is nil for a weak session.
type ResponderPrivateInfo struct {
	IdentityKey []byte
	LongTermKey []byte
	OneTimeKey  []byte
}

// InitiatorPublicInfo is the initiator's public handshake material as seen
// by the responder.
type InitiatorPublicInfo struct {
	IdentityKey  []byte
	EphemeralKey []byte
}

// SessionCipher is a live symmetric session produced by the Engine.
type SessionCipher interface {
	ID() []byte
	Keys() SessionKeys
	AdditionalData() []byte
	// Encrypt produces a fresh salt and the ciphertext for one message.
	Encrypt(plaintext []byte) (salt, ciphertext []byte, err error)
	Decrypt(salt, ciphertext []byte) ([]byte, error)
}

// Engine is the cryptographic engine boundary: key generation, signing,
// and handshake derivation. The core never interprets key bytes itself.
type Engine interface {
	GenerateKeyPair() (KeyPair, error)
	Sign(data, privateKey []byte) ([]byte, error)
	Verify(data, signature, publicKey []byte) error
	StartInitiatorSession(priv InitiatorPrivateInfo, pub ResponderPublicInfo, additionalData []byte) (SessionCipher, error)
	StartResponderSession(priv ResponderPrivateInfo, pub InitiatorPublicInfo, additionalData []byte) (SessionCipher, error)
	RestoreSession(sessionID []byte, keys SessionKeys, additionalData []byte) (SessionCipher, error)
}
