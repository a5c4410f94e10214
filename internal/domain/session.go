package domain

import "time"

// SessionState is the durable record of one established session. Newer
// sessions with the same participant supersede older ones; records are
// deleted, never mutated.
type SessionState struct {
	CreationDate   time.Time `json:"creation_date"`
	ExpirationDate time.Time `json:"expiration_date"`
	SessionID      []byte    `json:"session_id"`
	AdditionalData []byte    `json:"additional_data"`
}

// IsExpired reports whether the session is past its expiration date.
func (s SessionState) IsExpired(now time.Time) bool {
	return now.After(s.ExpirationDate)
}

// SessionKeys is the symmetric key pair of an established session. The two
// keys must always have equal length: the persisted form is the plain
// concatenation enc||dec, split at the midpoint on reload.
type SessionKeys struct {
	EncryptionKey []byte
	DecryptionKey []byte
}

// Marshal concatenates the keys into a single blob.
func (k SessionKeys) Marshal() []byte {
	out := make([]byte, 0, len(k.EncryptionKey)+len(k.DecryptionKey))
	out = append(out, k.EncryptionKey...)
	out = append(out, k.DecryptionKey...)
	return out
}

// SessionKeysFromBytes splits a persisted blob at the midpoint.
func SessionKeysFromBytes(b []byte) SessionKeys {
	half := len(b) / 2
	return SessionKeys{
		EncryptionKey: append([]byte(nil), b[:half]...),
		DecryptionKey: append([]byte(nil), b[half:]...),
	}
}

// KeyAttrs is key metadata used for TTL and GC decisions. It never carries
// secret bytes; Name is the logical (un-prefixed) name.
type KeyAttrs struct {
	Name         string
	CreationDate time.Time
}

// AllKeysAttrs groups key metadata by key class.
type AllKeysAttrs struct {
	Session []KeyAttrs
	Lt      []KeyAttrs
	Ot      []KeyAttrs
}
