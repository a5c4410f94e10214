// Package pfs is the default cryptographic engine: a triple (or quadruple,
// when a one-time key is present) X25519 Diffie-Hellman handshake whose
// shared material is expanded with HKDF-SHA256 into a session id and two
// directional ChaCha20-Poly1305 keys.
//
// The rest of the module only depends on the domain.Engine interface, so a
// different engine can be swapped in without touching session or key
// lifecycle code.
package pfs
