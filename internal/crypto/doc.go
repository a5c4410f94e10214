// Package crypto exposes the minimal primitives used by pfskit.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie-Hellman (GenerateX25519, DH)
//   - Combined identity key pairs: an X25519 half for the handshake and an
//     Ed25519 half for authority signatures (GenerateIdentity, Sign, Verify)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Public-key fingerprints and snapshot-derived card ids (Fingerprint,
//     SnapshotID)
//
// # Notes
//
// Keys are opaque byte slices; only this package and the PFS engine look
// inside them. Callers should treat returned secrets as sensitive and rely
// on Wipe when practical to reduce lifetime in memory.
package crypto
