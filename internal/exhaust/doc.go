// Package exhaust records when one-time cards, long-term cards, and
// sessions stopped being usable, so the rotation engine can delete the
// backing key material only after a safety window has passed.
package exhaust
