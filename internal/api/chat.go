package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"eduattend/internal/logging"
)

// SessionHeader carries the session key on chat requests.
const SessionHeader = "X-Session-Key"

type chatRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// HTTPChat streams replies from POST /api/chat for one session key. The
// response body is a plain incremental text stream.
type HTTPChat struct {
	client *Client
	key    string
}

// Chat returns the HTTP chat transport bound to key.
func (c *Client) Chat(key string) *HTTPChat {
	return &HTTPChat{client: c, key: key}
}

// Stream sends text and returns channels of incremental reply chunks. The
// content channel is closed when the reply ends; at most one error is
// delivered.
func (h *HTTPChat) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		startTime := time.Now()
		logging.TransportDebug("chat %s: POST /api/chat text_len=%d", h.key, len(text))

		body, err := json.Marshal(chatRequest{ID: h.key, Text: text})
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.client.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			errorChan <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/plain")
		req.Header.Set(SessionHeader, h.key)

		resp, err := h.client.streamClient.Do(req)
		if err != nil {
			errorChan <- fmt.Errorf("chat request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			errorChan <- &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
			return
		}

		chunks := 0
		err = readChunks(resp.Body, func(chunk string) bool {
			select {
			case contentChan <- chunk:
				chunks++
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			errorChan <- fmt.Errorf("chat stream interrupted: %w", err)
			return
		}

		logging.Transport("chat %s: reply complete chunks=%d duration=%v", h.key, chunks, time.Since(startTime))
	}()

	return contentChan, errorChan
}

// readChunks reads r until EOF, emitting each read as a chunk. A multi-byte
// rune split across reads is held back until it is complete. emit returns
// false to stop early.
func readChunks(r io.Reader, emit func(string) bool) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completeRunes(pending)
			if cut > 0 {
				if !emit(string(pending[:cut])) {
					return nil
				}
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				emit(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completeRunes(b []byte) int {
	end := len(b)
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			end = start
		}
		break
	}
	return end
}
