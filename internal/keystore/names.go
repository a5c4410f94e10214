package keystore

import (
	"encoding/base64"
	"strings"
)

// Key entry name layout: "OWNER=<identityId>.<class>.<logical name>".
// The identity-scoped header keeps one identity's keys from ever matching
// another's during prefix classification.
const (
	ltPrefix   = "LT_KEY"
	otPrefix   = "OT_KEY"
	sessPrefix = "SESS_KEYS"
)

// entryNames formats and parses scoped key entry names for one identity.
// It is a pure value type: identity id in, names in/out.
type entryNames struct {
	identityID string
}

func (n entryNames) header() string {
	return "OWNER=" + n.identityID
}

func (n entryNames) ltKeyName(name string) string {
	return n.header() + "." + ltPrefix + "." + name
}

func (n entryNames) otKeyName(name string) string {
	return n.header() + "." + otPrefix + "." + name
}

func (n entryNames) sessionKeysName(sessionID []byte) string {
	return n.header() + "." + sessPrefix + "." + base64.StdEncoding.EncodeToString(sessionID)
}

func (n entryNames) isLtKeyName(entryName string) bool {
	return strings.HasPrefix(entryName, n.header()+"."+ltPrefix+".")
}

func (n entryNames) isOtKeyName(entryName string) bool {
	return strings.HasPrefix(entryName, n.header()+"."+otPrefix+".")
}

func (n entryNames) isSessionKeysName(entryName string) bool {
	return strings.HasPrefix(entryName, n.header()+"."+sessPrefix+".")
}

func (n entryNames) isOwnedName(entryName string) bool {
	return n.isLtKeyName(entryName) || n.isOtKeyName(entryName) || n.isSessionKeysName(entryName)
}

func (n entryNames) extractLtName(entryName string) string {
	return strings.TrimPrefix(entryName, n.header()+"."+ltPrefix+".")
}

func (n entryNames) extractOtName(entryName string) string {
	return strings.TrimPrefix(entryName, n.header()+"."+otPrefix+".")
}

func (n entryNames) extractSessionID(entryName string) ([]byte, bool) {
	encoded := strings.TrimPrefix(entryName, n.header()+"."+sessPrefix+".")
	id, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return id, true
}
