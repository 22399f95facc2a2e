package session

import "errors"

var (
	// ErrValidation rejects an empty or whitespace-only send. It never reaches
	// the store or the gateway.
	ErrValidation = errors.New("message text is empty")
	// ErrBusy is returned when another operation is already in flight.
	ErrBusy = errors.New("session is busy")
	// ErrNoIdentity is returned by operations that only exist for signed-in users.
	ErrNoIdentity = errors.New("operation requires a signed-in identity")
)
