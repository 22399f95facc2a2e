package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/metrics"
	"github.com/iyunix/go-bluebox/internal/store"
)

type appendResult struct {
	msg    *domain.Message
	chatID string
	err    error
}

// SendMessage runs one turn: the user message is shown at once, persisted for
// signed-in users, and the reply is streamed through onDelta before being
// committed. Only one turn runs at a time; a second call returns ErrBusy and
// does nothing.
//
// A TransportError leaves only the user message. An interrupted stream still
// commits the partial reply and returns an error matching
// gateway.ErrStreamInterrupted. Store failures are returned without rolling
// back anything already shown.
func (c *Controller) SendMessage(ctx context.Context, text string, onDelta func(string)) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" {
		c.mu.Unlock()
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return ErrValidation
	}
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}

	prior := append([]domain.Message(nil), c.transcript...)
	user := domain.Message{Role: domain.RoleUser, Content: text}
	c.transcript = append(c.transcript, user)
	userIdx := len(c.transcript) - 1
	c.input = ""
	chatID := c.activeChat
	persist := c.identity != nil
	if persist && chatID == "" {
		c.state = CreatingChat
	} else {
		c.state = Sending
	}
	count := len(c.transcript)
	c.mu.Unlock()

	metrics.SendsTotal.WithLabelValues(metrics.IdentityLabel(persist)).Inc()
	c.publish(bus.MessageCount(count))

	if persist && chatID == "" {
		id, err := c.store.CreateChat(ctx, c.identity.UserID)
		if err != nil {
			c.setState(Idle)
			c.logger.Error("failed to create chat for first message", "error", err)
			metrics.TurnsTotal.WithLabelValues("store_error").Inc()
			return fmt.Errorf("create chat: %w", err)
		}
		c.mu.Lock()
		c.activeChat = id
		c.state = Sending
		c.mu.Unlock()
		chatID = id
		c.logger.Info("chat created for first message", "chat_id", id)
		c.publish(bus.CurrentChat(id))
	}

	// The user append starts before the gateway is called; which finishes
	// first does not matter.
	var userSaved chan appendResult
	if persist {
		userSaved = make(chan appendResult, 1)
		go func() {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
			defer cancel()
			userSaved <- c.saveUser(wctx, chatID, user)
		}()
	}

	reply, streamErr := c.stream(ctx, buildHistory(c.config.SystemPrompt, prior, user), onDelta)

	chatID, userErr := c.awaitUser(userSaved, userIdx, chatID)

	if reply == "" {
		c.setState(Idle)
		if streamErr != nil {
			c.logger.Warn("inference failed before any output", "chat_id", chatID, "error", streamErr)
			metrics.TurnsTotal.WithLabelValues("transport_error").Inc()
			return errors.Join(streamErr, userErr)
		}
		if userErr != nil {
			metrics.TurnsTotal.WithLabelValues("store_error").Inc()
			return userErr
		}
		// An empty reply has nothing to commit.
		metrics.TurnsTotal.WithLabelValues("completed").Inc()
		return nil
	}

	assistant := domain.Message{Role: domain.RoleAssistant, Content: reply}
	c.mu.Lock()
	c.transcript = append(c.transcript, assistant)
	assistantIdx := len(c.transcript) - 1
	c.partial = ""
	count = len(c.transcript)
	c.mu.Unlock()
	c.publish(bus.MessageCount(count))

	var storeErr error
	switch {
	case !persist:
	case userErr != nil:
		// Persisting the reply without its question would reorder the chat.
		c.logger.Warn("reply kept locally only, user message was not saved", "chat_id", chatID)
		storeErr = userErr
	default:
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		saved, err := c.store.AppendMessage(wctx, chatID, assistant)
		cancel()
		if err != nil {
			c.logger.Error("failed to save assistant message", "chat_id", chatID, "error", err)
			storeErr = fmt.Errorf("save reply: %w", err)
		} else {
			c.confirm(assistantIdx, saved)
			c.publish(bus.Refresh())
		}
	}
	c.setState(Idle)

	switch {
	case storeErr != nil:
		metrics.TurnsTotal.WithLabelValues("store_error").Inc()
	case streamErr != nil:
		metrics.TurnsTotal.WithLabelValues("interrupted").Inc()
	default:
		metrics.TurnsTotal.WithLabelValues("completed").Inc()
	}
	if streamErr != nil {
		c.logger.Warn("stream interrupted, partial reply committed", "chat_id", chatID, "length", len(reply), "error", streamErr)
	}
	return errors.Join(streamErr, storeErr)
}

// stream opens the reply stream and drains it into the partial buffer. The
// returned error always matches gateway.ErrTransport when reply is empty and
// gateway.ErrStreamInterrupted otherwise.
func (c *Controller) stream(ctx context.Context, history []gateway.Turn, onDelta func(string)) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, c.config.StreamTimeout)
	defer cancel()

	s, err := c.gateway.StreamReply(sctx, history)
	if err != nil {
		return "", classify(err, false)
	}
	defer s.Close()

	c.setState(Streaming)

	var reply strings.Builder
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return reply.String(), nil
			}
			return reply.String(), classify(err, reply.Len() > 0)
		}
		if frag == "" {
			continue
		}
		reply.WriteString(frag)

		c.mu.Lock()
		c.partial = reply.String()
		c.mu.Unlock()

		if onDelta != nil {
			onDelta(frag)
		}
	}
}

// saveUser appends the user message. When the chat is gone, typically an
// empty chat removed by cleanup on another device, one replacement is
// created and the append retried there.
func (c *Controller) saveUser(ctx context.Context, chatID string, msg domain.Message) appendResult {
	m, err := c.store.AppendMessage(ctx, chatID, msg)
	if !errors.Is(err, store.ErrNotFound) {
		return appendResult{msg: m, chatID: chatID, err: err}
	}

	c.logger.Warn("active chat no longer exists, creating a replacement", "chat_id", chatID)
	id, cerr := c.store.CreateChat(ctx, c.identity.UserID)
	if cerr != nil {
		return appendResult{err: errors.Join(err, cerr)}
	}
	m, err = c.store.AppendMessage(ctx, id, msg)
	return appendResult{msg: m, chatID: id, err: err}
}

// awaitUser waits for the user append started by SendMessage, stamps the
// local copy with the store's timestamp and returns the chat the message
// ended up in. If that differs from chatID the session follows it; an empty
// id means no chat exists and the next turn creates one.
func (c *Controller) awaitUser(saved <-chan appendResult, idx int, chatID string) (string, error) {
	if saved == nil {
		return chatID, nil
	}
	res := <-saved
	if res.chatID != chatID {
		c.mu.Lock()
		if c.activeChat == chatID {
			c.activeChat = res.chatID
		}
		c.mu.Unlock()
		c.publish(bus.CurrentChat(res.chatID))
	}
	if res.err != nil {
		c.logger.Error("failed to save user message", "chat_id", res.chatID, "error", res.err)
		return res.chatID, fmt.Errorf("save message: %w", res.err)
	}
	c.confirm(idx, res.msg)
	c.publish(bus.Refresh())
	return res.chatID, nil
}

func (c *Controller) confirm(idx int, saved *domain.Message) {
	if saved == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < len(c.transcript) && c.transcript[idx].Content == saved.Content {
		c.transcript[idx].ID = saved.ID
		c.transcript[idx].ChatID = saved.ChatID
		c.transcript[idx].CreatedAt = saved.CreatedAt
	}
}

// classify maps any gateway failure, including a timeout that never reached
// the transport, onto the two-way taxonomy.
func classify(err error, gotOutput bool) error {
	if gotOutput {
		if errors.Is(err, gateway.ErrStreamInterrupted) {
			return err
		}
		return fmt.Errorf("%w: %w", gateway.ErrStreamInterrupted, err)
	}
	if errors.Is(err, gateway.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", gateway.ErrTransport, err)
}
