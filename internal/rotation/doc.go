// Package rotation keeps an identity's ephemeral card pool healthy: it
// garbage-collects stale local key material, checks the remote pool depth,
// and mints replacement cards when the pool runs short.
package rotation
