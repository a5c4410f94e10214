package cardclient

import (
	"github.com/pkg/errors"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
)

// Validator checks an ephemeral card before its public key is trusted: the
// card id must equal the fingerprint of its snapshot, and the snapshot must
// carry valid signatures from the card's owner and from every statically
// registered verifier (for example a card service authority key).
type Validator struct {
	verifiers map[string][]byte
}

// NewValidator returns a validator with no static verifiers registered.
func NewValidator() *Validator {
	return &Validator{verifiers: map[string][]byte{}}
}

// AddVerifier registers a signer whose signature every card must carry, in
// addition to the owner's.
func (v *Validator) AddVerifier(cardID string, publicKey []byte) {
	v.verifiers[cardID] = append([]byte(nil), publicKey...)
}

// Validate checks the card's id derivation and its signatures. owner is the
// identity card the ephemeral card claims to belong to.
func (v *Validator) Validate(card domain.Card, owner domain.CardEntry) error {
	if crypto.SnapshotID(card.Snapshot) != card.ID {
		return errors.Errorf("card id %q does not match its snapshot", card.ID)
	}
	if err := v.checkSignature(card, owner.Identifier, owner.PublicKeyData); err != nil {
		return err
	}
	for verifierID, publicKey := range v.verifiers {
		if err := v.checkSignature(card, verifierID, publicKey); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkSignature(card domain.Card, signerID string, publicKey []byte) error {
	sig, ok := card.Signatures[signerID]
	if !ok {
		return errors.Errorf("card %q is missing a signature from %q", card.ID, signerID)
	}
	if err := crypto.Verify(card.Snapshot, sig, publicKey); err != nil {
		return errors.Wrapf(err, "card %q signature from %q", card.ID, signerID)
	}
	return nil
}
