// Package wire defines the JSON framing for session traffic: the
// InitiationMessage that opens a session and the regular Message used for
// everything after, plus classification of incoming bytes.
package wire
