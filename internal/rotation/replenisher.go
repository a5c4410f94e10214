package rotation

import (
	"context"
	"encoding/json"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
	"pfskit/internal/keystore"
)

const identityTypeCardID = "identity_card_id"

// Replenisher mints fresh ephemeral cards: it generates key pairs through
// the engine, signs issuance requests with the local identity key, submits
// them to the card service, and persists the private keys only once the
// service has accepted the batch. A rejected batch leaves no local keys
// behind.
type Replenisher struct {
	engine domain.Engine
	cards  domain.CardService
	keys   *keystore.Manager

	identity       domain.KeyPair
	identityCardID string
}

// NewReplenisher returns a replenisher bound to the local identity.
func NewReplenisher(engine domain.Engine, cards domain.CardService, keys *keystore.Manager, identity domain.KeyPair, identityCardID string) *Replenisher {
	return &Replenisher{
		engine:         engine,
		cards:          cards,
		keys:           keys,
		identity:       identity,
		identityCardID: identityCardID,
	}
}

// cardSnapshot is the canonical request content a card id is derived from.
// Field order is fixed; both sides marshal it identically.
type cardSnapshot struct {
	Identity     string `json:"identity"`
	IdentityType string `json:"identity_type"`
	PublicKey    []byte `json:"public_key"`
}

// Replenish publishes numOtCards one-time cards, plus one long-term card
// when addLtCard is set. When only one-time cards are needed the lighter
// upload path is used instead of the combined bootstrap call.
func (r *Replenisher) Replenish(ctx context.Context, numOtCards int, addLtCard bool) error {
	if numOtCards == 0 && !addLtCard {
		return nil
	}
	logger.Infof("replenishing cards for %s: %d one-time, long-term=%v",
		r.identityCardID, numOtCards, addLtCard)

	otPairs := make([]domain.KeyPair, 0, numOtCards)
	otReqs := make([]domain.CardRequest, 0, numOtCards)
	var ltPair *domain.KeyPair
	var ltReq domain.CardRequest

	discard := func() {
		for _, p := range otPairs {
			crypto.Wipe(p.Private)
		}
		if ltPair != nil {
			crypto.Wipe(ltPair.Private)
		}
	}

	for i := 0; i < numOtCards; i++ {
		pair, err := r.engine.GenerateKeyPair()
		if err != nil {
			discard()
			return errors.Wrap(err, "generating one-time key")
		}
		req, err := r.buildRequest(pair.Public)
		if err != nil {
			discard()
			return err
		}
		otPairs = append(otPairs, pair)
		otReqs = append(otReqs, req)
	}
	if addLtCard {
		pair, err := r.engine.GenerateKeyPair()
		if err != nil {
			discard()
			return errors.Wrap(err, "generating long-term key")
		}
		req, err := r.buildRequest(pair.Public)
		if err != nil {
			discard()
			return err
		}
		ltPair = &pair
		ltReq = req
	}

	var ltCard domain.Card
	var otCards []domain.Card
	var err error
	if addLtCard {
		ltCard, otCards, err = r.cards.BootstrapCardsSet(ctx, r.identityCardID, ltReq, otReqs)
	} else {
		otCards, err = r.cards.CreateOneTimeCards(ctx, r.identityCardID, otReqs)
	}
	if err != nil {
		discard()
		return errors.Wrap(domain.ErrReplenishFailed, err.Error())
	}
	if len(otCards) != len(otPairs) {
		discard()
		return errors.Wrapf(domain.ErrReplenishFailed,
			"service accepted %d of %d one-time cards", len(otCards), len(otPairs))
	}

	otEntries := make([]keystore.KeyEntry, len(otPairs))
	for i, pair := range otPairs {
		otEntries[i] = keystore.KeyEntry{PrivateKey: pair.Private, Name: otCards[i].ID}
	}
	var ltEntry *keystore.KeyEntry
	if ltPair != nil {
		ltEntry = &keystore.KeyEntry{PrivateKey: ltPair.Private, Name: ltCard.ID}
	}
	return r.keys.SaveKeys(otEntries, ltEntry)
}

func (r *Replenisher) buildRequest(publicKey []byte) (domain.CardRequest, error) {
	snapshot, err := json.Marshal(cardSnapshot{
		Identity:     r.identityCardID,
		IdentityType: identityTypeCardID,
		PublicKey:    publicKey,
	})
	if err != nil {
		return domain.CardRequest{}, errors.Wrap(err, "serializing card snapshot")
	}
	sig, err := r.engine.Sign(snapshot, r.identity.Private)
	if err != nil {
		return domain.CardRequest{}, errors.Wrap(err, "signing card snapshot")
	}
	return domain.CardRequest{
		Identity:      r.identityCardID,
		IdentityType:  identityTypeCardID,
		PublicKeyData: publicKey,
		Snapshot:      snapshot,
		Signatures:    map[string][]byte{r.identityCardID: sig},
	}, nil
}
