package domain

// Identity is the local account: the combined identity key pair plus the
// id of the identity card published for it.
type Identity struct {
	Name       string `json:"name"`
	CardID     string `json:"card_id"`
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

// KeyPair returns the identity's key pair.
func (i Identity) KeyPair() KeyPair {
	return KeyPair{Public: i.PublicKey, Private: i.PrivateKey}
}
