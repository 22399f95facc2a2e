// Package gateway turns a conversation history into a live stream of reply
// fragments. Implementations never retry.
package gateway

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/iyunix/go-bluebox/internal/domain"
)

// Turn is one entry of the history sent for inference. Unlike a stored
// message it may carry the system role.
type Turn struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// Gateway opens a reply stream for the given history.
type Gateway interface {
	StreamReply(ctx context.Context, history []Turn) (Stream, error)
}

// Stream yields reply fragments in order. Recv returns io.EOF once the reply is
// complete; after any terminal error every later Recv returns that same error.
// A stream cannot be restarted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// ReadAll drains the stream, calling onFragment for each fragment, and returns
// the concatenated reply. On ErrStreamInterrupted the partial reply is
// returned alongside the error.
func ReadAll(s Stream, onFragment func(string)) (string, error) {
	defer s.Close()

	var reply strings.Builder
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return reply.String(), nil
			}
			return reply.String(), err
		}
		reply.WriteString(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	}
}

// splitHistory separates the trailing user turn from the turns before it.
func splitHistory(history []Turn) (string, []Turn, error) {
	if len(history) == 0 {
		return "", nil, ErrInvalidHistory
	}
	last := history[len(history)-1]
	if last.Role != domain.RoleUser {
		return "", nil, ErrInvalidHistory
	}
	return last.Content, history[:len(history)-1], nil
}
