package domain

import "time"

// CardEntry is the minimal reference to a published public key: the card
// identifier plus the raw public key bytes. It is immutable and passed by
// value between layers.
type CardEntry struct {
	Identifier    string
	PublicKeyData []byte
}

// Card is an ephemeral or identity card as returned by the card service.
// Snapshot is the canonical serialized request content the card id was
// derived from; Signatures maps signer card ids to signatures over the
// snapshot fingerprint.
type Card struct {
	ID            string            `json:"id"`
	Identity      string            `json:"identity"`
	PublicKeyData []byte            `json:"public_key"`
	CreatedAt     time.Time         `json:"created_at"`
	Snapshot      []byte            `json:"snapshot"`
	Signatures    map[string][]byte `json:"signatures"`
}

// Entry converts the card to its CardEntry reference.
func (c Card) Entry() CardEntry {
	return CardEntry{Identifier: c.ID, PublicKeyData: c.PublicKeyData}
}

// CardRequest is a signed card-issuance request submitted to the card
// service. The card id is the hex-encoded fingerprint of Snapshot.
type CardRequest struct {
	Identity      string            `json:"identity"`
	IdentityType  string            `json:"identity_type"`
	PublicKeyData []byte            `json:"public_key"`
	Snapshot      []byte            `json:"snapshot"`
	Signatures    map[string][]byte `json:"signatures"`
}

// CardsStatus reports the remote pool depth for one identity.
type CardsStatus struct {
	Active    int `json:"active"`
	Exhausted int `json:"exhausted"`
}

// RecipientCardsSet is one recipient's handshake material: identity card,
// current long-term card, and optionally a reserved one-time card.
type RecipientCardsSet struct {
	IdentityCard Card
	LongTermCard Card
	OneTimeCard  *Card
}
