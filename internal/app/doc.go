// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, the crypto engine, and the card service
// client from Config, exposing them via the Wire struct; ForIdentity adds
// the per-identity session and rotation graph once an identity is unlocked.
package app
