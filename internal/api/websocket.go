package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"eduattend/internal/logging"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// WebSocket message types exchanged with /ws/{key}.
const (
	WSTypeChat     = "chat"
	WSTypeError    = "error"
	WSTypeSystem   = "system"
	WSTypeToolCall = "tool_call"
)

// WSOutgoing is a client-to-server frame.
type WSOutgoing struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
}

// WSIncoming is a server-to-client frame. Chat frames with IsFinal=false
// carry partial content; the frame with IsFinal=true ends the reply.
type WSIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

// ReplyError is reported by the server inside an error frame. The
// connection stays usable.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string { return "agent error: " + e.Message }

// WSChat streams replies over a persistent WebSocket bound to one session
// key. The connection is dialed on the first turn and redialed after any
// transport failure.
type WSChat struct {
	url    string
	key    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// WebSocketChat returns the WebSocket chat transport bound to key. The
// endpoint is derived from the base URL: http becomes ws, https becomes wss.
func (c *Client) WebSocketChat(key string) *WSChat {
	return &WSChat{
		url:    wsURL(c.baseURL, key),
		key:    key,
		dialer: &websocket.Dialer{HandshakeTimeout: c.probeTimeout},
	}
}

func wsURL(base, key string) string {
	u := base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/" + url.PathEscape(key)
}

// URL returns the WebSocket endpoint.
func (w *WSChat) URL() string { return w.url }

// Stream sends text as a chat frame and relays chat frames until the final
// one. Cancelling ctx interrupts the read and drops the connection.
func (w *WSChat) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		conn, err := w.connect(ctx)
		if err != nil {
			errorChan <- err
			return
		}

		out := WSOutgoing{Type: WSTypeChat, Content: text, SessionID: w.key}
		if err := conn.WriteJSON(out); err != nil {
			w.drop(conn)
			errorChan <- fmt.Errorf("failed to send chat frame: %w", err)
			return
		}

		turnDone := make(chan struct{})
		var g errgroup.Group

		// Unblocks ReadJSON when the turn is abandoned.
		g.Go(func() error {
			select {
			case <-ctx.Done():
				_ = conn.SetReadDeadline(time.Now())
				return ctx.Err()
			case <-turnDone:
				return nil
			}
		})

		g.Go(func() error {
			defer close(turnDone)
			return readReply(conn, func(tok string) bool {
				select {
				case contentChan <- tok:
					return true
				case <-ctx.Done():
					return false
				}
			})
		})

		err = g.Wait()
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			logging.TransportDebug("ws %s: reply complete", w.key)
			return
		}

		var rerr *ReplyError
		if !errors.As(err, &rerr) {
			w.drop(conn)
		}
		errorChan <- err
	}()

	return contentChan, errorChan
}

// Close closes the underlying connection, if any.
func (w *WSChat) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *WSChat) connect(ctx context.Context) (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return w.conn, nil
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed: %w", w.url, &StatusError{Code: resp.StatusCode})
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", w.url, err)
	}
	logging.Transport("ws %s: connected to %s", w.key, w.url)
	w.conn = conn
	return conn, nil
}

func (w *WSChat) drop(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == conn {
		w.conn = nil
	}
	_ = conn.Close()
	logging.TransportDebug("ws %s: connection dropped", w.key)
}

// readReply reads frames until the final chat frame or an error frame.
// Frames of other types are skipped. emit returns false to stop early.
func readReply(conn *websocket.Conn, emit func(string) bool) error {
	for {
		var in WSIncoming
		if err := conn.ReadJSON(&in); err != nil {
			return fmt.Errorf("websocket read failed: %w", err)
		}

		if in.Type == WSTypeError || in.Error != "" {
			msg := in.Error
			if msg == "" {
				msg = in.Content
			}
			return &ReplyError{Message: msg}
		}
		if in.Type != WSTypeChat {
			logging.TransportDebug("ws: skipping %s frame", in.Type)
			continue
		}

		if in.Content != "" && !emit(in.Content) {
			return nil
		}
		if in.IsFinal {
			return nil
		}
	}
}
