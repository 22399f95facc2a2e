package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/metrics"
)

const readBufferSize = 4096

// ChatRequest is the body accepted by the inference endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
}

// HTTPGateway streams replies from an inference endpoint that answers with a
// raw chunked text body.
type HTTPGateway struct {
	url    string
	client *http.Client
	logger logger.Logger
}

func NewHTTPGateway(url string, client *http.Client, log logger.Logger) *HTTPGateway {
	if client == nil {
		// No client timeout: replies stream for as long as the caller's context allows.
		client = &http.Client{}
	}
	return &HTTPGateway{
		url:    url,
		client: client,
		logger: log.With("component", "inference_gateway"),
	}
}

// StreamReply posts the history and returns a stream over the response body.
// The last turn must be the user's new message; it is sent as "message" and
// the turns before it as "history".
func (g *HTTPGateway) StreamReply(ctx context.Context, history []Turn) (Stream, error) {
	message, prior, err := splitHistory(history)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ChatRequest{Message: message, History: prior})
	if err != nil {
		return nil, transportError(0, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	started := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("inference request failed", "error", err)
		return nil, transportError(0, err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		g.logger.Warn("inference endpoint returned error status", "status", resp.StatusCode)
		return nil, transportError(resp.StatusCode, nil)
	}

	g.logger.Debug("inference stream opened", "turns", len(history))
	return &httpStream{
		body:    resp.Body,
		buf:     make([]byte, readBufferSize),
		started: started,
		logger:  g.logger,
	}, nil
}

type httpStream struct {
	mu        sync.Mutex
	body      io.ReadCloser
	buf       []byte
	pending   []byte
	fragments int
	err       error
	closed    bool
	started   time.Time
	logger    logger.Logger
}

func (s *httpStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.err != nil {
			return "", s.err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := completePrefix(data)
			s.pending = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				s.fragments++
				metrics.FragmentsTotal.Inc()
				return string(data[:cut]), nil
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(s.pending) > 0 {
				// A truncated rune at the very end; hand it over as-is.
				frag := string(s.pending)
				s.pending = nil
				s.fragments++
				metrics.FragmentsTotal.Inc()
				s.finish(io.EOF)
				return frag, nil
			}
			s.finish(io.EOF)
			return "", io.EOF
		}

		streamErr := readError(s.fragments, err)
		s.logger.Warn("inference stream broke", "fragments", s.fragments, "error", err)
		s.finish(streamErr)
		return "", streamErr
	}
}

func (s *httpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.finish(ErrStreamClosed)
	}
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// finish records the terminal error. Callers hold s.mu.
func (s *httpStream) finish(err error) {
	s.err = err
	metrics.StreamDuration.Observe(time.Since(s.started).Seconds())
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
