// Package store provides the durable backends: JSON file stores for small
// installs and tests, a badger database for production use, and the
// passphrase-encrypted identity file.
package store
