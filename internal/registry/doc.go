// Package registry tracks established sessions per remote participant.
//
// A participant may hold several live sessions at once (for example after a
// race between two devices); the active one is always the newest by
// creation date.
package registry
