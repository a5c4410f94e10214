package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"

	"pfskit/internal/domain"
)

// Combined identity keys carry an X25519 half for Diffie-Hellman followed
// by an Ed25519 half for signing.
const (
	identityPrivateKeySize = X25519KeySize + ed25519.PrivateKeySize // 96
	identityPublicKeySize  = X25519KeySize + ed25519.PublicKeySize  // 64
)

// GenerateIdentity returns a combined identity key pair: X25519 material
// for the handshake plus Ed25519 material for authority signatures.
func GenerateIdentity() (domain.KeyPair, error) {
	xPriv, xPub, err := GenerateX25519()
	if err != nil {
		return domain.KeyPair{}, err
	}
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.KeyPair{}, err
	}

	priv := make([]byte, 0, identityPrivateKeySize)
	priv = append(priv, xPriv...)
	priv = append(priv, edPriv...)

	pub := make([]byte, 0, identityPublicKeySize)
	pub = append(pub, xPub...)
	pub = append(pub, edPub...)

	return domain.KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs data with the Ed25519 half of an identity private key. A bare
// 64-byte Ed25519 private key is also accepted.
func Sign(data, priv []byte) ([]byte, error) {
	switch len(priv) {
	case identityPrivateKeySize:
		return ed25519.Sign(ed25519.PrivateKey(priv[X25519KeySize:]), data), nil
	case ed25519.PrivateKeySize:
		return ed25519.Sign(ed25519.PrivateKey(priv), data), nil
	default:
		return nil, errors.Errorf("signing key has unexpected length %d", len(priv))
	}
}

// Verify checks an Ed25519 signature made with the signing half of an
// identity key.
func Verify(data, sig, pub []byte) error {
	var edPub ed25519.PublicKey
	switch len(pub) {
	case identityPublicKeySize:
		edPub = ed25519.PublicKey(pub[X25519KeySize:])
	case ed25519.PublicKeySize:
		edPub = ed25519.PublicKey(pub)
	default:
		return errors.Errorf("verification key has unexpected length %d", len(pub))
	}
	if !ed25519.Verify(edPub, data, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}
