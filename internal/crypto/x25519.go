package crypto

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the byte length of X25519 public and private keys.
const X25519KeySize = 32

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv, pub []byte, err error) {
	priv = make([]byte, X25519KeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, err
	}
	clamp(priv)
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// DH computes X25519 Diffie-Hellman between a private and a public key.
// For combined identity keys the X25519 half is used.
func DH(priv, pub []byte) ([]byte, error) {
	dhPriv, err := dhHalf(priv, identityPrivateKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "dh private key")
	}
	dhPub, err := dhHalf(pub, identityPublicKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "dh public key")
	}
	return curve25519.X25519(dhPriv, dhPub)
}

// dhHalf extracts the X25519 part of a key: plain 32-byte keys are used
// as-is, combined identity keys contribute their leading 32 bytes.
func dhHalf(key []byte, combinedSize int) ([]byte, error) {
	switch len(key) {
	case X25519KeySize:
		return key, nil
	case combinedSize:
		return key[:X25519KeySize], nil
	default:
		return nil, errors.Errorf("unexpected key length %d", len(key))
	}
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
