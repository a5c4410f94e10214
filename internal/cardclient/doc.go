// Package cardclient implements the HTTP client for the ephemeral cards
// service, plus the validator that checks fetched cards before their public
// keys are trusted for a handshake.
package cardclient
