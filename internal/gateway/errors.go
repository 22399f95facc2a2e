package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the call failed before any fragment arrived. The turn
	// produced no assistant output.
	ErrTransport = errors.New("inference transport error")
	// ErrStreamInterrupted means the stream broke after at least one fragment.
	// Whatever was received is still a usable, if truncated, reply.
	ErrStreamInterrupted = errors.New("inference stream interrupted")
	// ErrInvalidHistory rejects a history that does not end with a user turn.
	ErrInvalidHistory = errors.New("history must end with a user turn")
	// ErrStreamClosed is returned by Recv after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// StreamError describes a failed inference call and matches ErrTransport or
// ErrStreamInterrupted through errors.Is.
type StreamError struct {
	Kind       error
	StatusCode int
	Fragments  int
	Cause      error
}

func (e *StreamError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Fragments > 0 {
		msg = fmt.Sprintf("%s after %d fragments", msg, e.Fragments)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *StreamError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func transportError(status int, cause error) *StreamError {
	return &StreamError{Kind: ErrTransport, StatusCode: status, Cause: cause}
}

// readError classifies a body read failure by how much had been received.
func readError(fragments int, cause error) *StreamError {
	if fragments == 0 {
		return &StreamError{Kind: ErrTransport, Cause: cause}
	}
	return &StreamError{Kind: ErrStreamInterrupted, Fragments: fragments, Cause: cause}
}
