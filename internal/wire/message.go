package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Message is any post-handshake message of a session. Byte fields travel
// base64-encoded in JSON.
type Message struct {
	SessionID  []byte `json:"session_id"`
	Salt       []byte `json:"salt"`
	CipherText []byte `json:"ciphertext"`
}

// InitiationMessage is the first message of a session. It carries everything
// the responder needs to derive the same session: the card ids involved, the
// initiator's ephemeral public key, and that key's signature made with the
// initiator's identity key.
type InitiationMessage struct {
	InitiatorIcID         string `json:"initiator_ic_id"`
	ResponderIcID         string `json:"responder_ic_id"`
	ResponderLtcID        string `json:"responder_ltc_id"`
	ResponderOtcID        string `json:"responder_otc_id,omitempty"`
	EphPublicKey          []byte `json:"eph"`
	EphPublicKeySignature []byte `json:"sign"`
	Salt                  []byte `json:"salt"`
	CipherText            []byte `json:"ciphertext"`
}

// Marshal encodes the message as JSON.
func (m Message) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal encodes the initiation message as JSON.
func (m InitiationMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// ParseMessage decodes a regular message, requiring every field to be
// present and non-empty.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Wrap(err, "parsing message")
	}
	if len(m.SessionID) == 0 || len(m.Salt) == 0 || len(m.CipherText) == 0 {
		return Message{}, errors.New("parsing message: missing required fields")
	}
	return m, nil
}

// ParseInitiationMessage decodes an initiation message, requiring every
// field except the optional one-time card id.
func ParseInitiationMessage(data []byte) (InitiationMessage, error) {
	var m InitiationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return InitiationMessage{}, errors.Wrap(err, "parsing initiation message")
	}
	if m.InitiatorIcID == "" || m.ResponderIcID == "" || m.ResponderLtcID == "" ||
		len(m.EphPublicKey) == 0 || len(m.EphPublicKeySignature) == 0 ||
		len(m.Salt) == 0 || len(m.CipherText) == 0 {
		return InitiationMessage{}, errors.New("parsing initiation message: missing required fields")
	}
	return m, nil
}
