package app

import (
	"net/http"
	"time"
)

// Backend selects the storage implementation.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home           string       // config directory, e.g. $HOME/.pfskit
	CardServiceURL string       // cards service base URL
	AccessToken    string       // cards service access token
	Backend        string       // "file" or "badger"
	HTTP           *http.Client // optional; defaults to http.DefaultClient

	DesiredNumberOfCards int

	SessionTTL              time.Duration
	ExpiredSessionTTL       time.Duration
	LongTermKeyTTL          time.Duration
	ExhaustedLongTermKeyTTL time.Duration
	ExhaustedOneTimeKeyTTL  time.Duration
}

// DefaultConfig returns the TTLs and pool depth a fresh install starts with.
func DefaultConfig() Config {
	return Config{
		Backend:              BackendFile,
		DesiredNumberOfCards: 100,

		SessionTTL:              7 * 24 * time.Hour,
		ExpiredSessionTTL:       24 * time.Hour,
		LongTermKeyTTL:          7 * 24 * time.Hour,
		ExhaustedLongTermKeyTTL: 24 * time.Hour,
		ExhaustedOneTimeKeyTTL:  24 * time.Hour,
	}
}
