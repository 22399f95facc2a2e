package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks a transport-level failure talking to the persistence layer.
	ErrStoreUnavailable = errors.New("conversation store unavailable")
	// ErrNotFound is a valid outcome, not a failure: the chat does not exist.
	ErrNotFound = errors.New("chat not found")
	// ErrInvalidMessage rejects messages that may never be persisted.
	ErrInvalidMessage = errors.New("invalid message")
)

// StoreError carries the failing operation alongside one of the sentinels above.
type StoreError struct {
	Operation string
	Kind      error
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store %s: %v (caused by: %v)", e.Operation, e.Kind, e.Cause)
	}
	return fmt.Sprintf("store %s: %v", e.Operation, e.Kind)
}

func (e *StoreError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func unavailable(op string, cause error) error {
	return &StoreError{Operation: op, Kind: ErrStoreUnavailable, Cause: cause}
}

func notFound(op string) error {
	return &StoreError{Operation: op, Kind: ErrNotFound}
}

func invalid(op string, cause error) error {
	return &StoreError{Operation: op, Kind: ErrInvalidMessage, Cause: cause}
}
