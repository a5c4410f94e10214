// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (state/cards/keys), storage and service contracts,
// and the error taxonomy. Secret key material only ever appears here as
// opaque byte slices.
package domain
