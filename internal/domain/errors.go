package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage and session layers. Callers match with
// errors.Is; wrapping with additional context is encouraged.
var (
	// ErrKeyNotFound is returned when a long-term, one-time, or session key
	// is absent from the key store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrSessionNotFound is returned on a registry miss for an expected
	// load or removal.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCorruptedState is returned when a stored session blob fails to
	// parse. It is never silently defaulted to empty.
	ErrCorruptedState = errors.New("corrupted saved session")

	// ErrCorruptedExhaustInfo is returned when the stored exhaustion ledger
	// fails to parse.
	ErrCorruptedExhaustInfo = errors.New("corrupted exhaust info")

	// ErrRotationInProgress is returned when a rotation pass is requested
	// while another pass for the same identity is still running.
	ErrRotationInProgress = errors.New("another rotate keys call is in progress")

	// ErrReplenishFailed is returned when a card-issuance submission was
	// rejected; no local keys are persisted for the rejected batch.
	ErrReplenishFailed = errors.New("ephemeral cards replenishment failed")

	// ErrSessionNotInitialized is returned when encrypt or decrypt is
	// attempted before the handshake completed for that role.
	ErrSessionNotInitialized = errors.New("session is still not initialized")
)

// ErrHandshakeFailed is the base error for all handshake failures. The
// variants below wrap it so callers can distinguish retryable conditions
// from "give up and re-fetch the remote card set".
var (
	ErrHandshakeFailed = errors.New("handshake failed")

	ErrInvalidSignature = fmt.Errorf("%w: ephemeral key signature verification failed", ErrHandshakeFailed)
	ErrIdentityMismatch = fmt.Errorf("%w: initiator identity card id does not match", ErrHandshakeFailed)
	ErrCardValidation   = fmt.Errorf("%w: ephemeral card validation failed", ErrHandshakeFailed)
)

// Remote error codes returned by the card service.
const (
	RemoteCodeServerInternal          = 10000
	RemoteCodeAccessToken             = 20300
	RemoteCodeCardNotAvailable        = 20500
	RemoteCodeInvalidJSON             = 30000
	RemoteCodeInvalidSnapshot         = 30001
	RemoteCodeSignatureValidation     = 30140
	RemoteCodeMaximumOtcNumberExceeded = 60010
)

// RemoteServiceError is a card service failure, carrying the remote error
// code when the service supplied one.
type RemoteServiceError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *RemoteServiceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("card service error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("card service error: %s (http %d)", e.Message, e.HTTPStatus)
}
