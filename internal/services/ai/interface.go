// File: internal/services/ai/interface.go
package ai

import (
	"context"

	"github.com/iyunix/go-bluebox/internal/gateway"
)

// ChatStreamer produces a streamed completion for a full message list.
// onDelta is called once per non-empty content delta; returning an error
// from it stops the stream.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []gateway.Turn, onDelta func(string) error) error
}
