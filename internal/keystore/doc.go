// Package keystore manages the lifecycle of private key material for one
// local identity: long-term keys, one-time keys, and per-session symmetric
// keys, each stored under identity-scoped entry names in a KeyBlobStore.
package keystore
