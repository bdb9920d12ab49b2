// Package session owns the message log of one conversation with the
// attendance agent and mediates its streamed replies.
//
// A Session is not safe for concurrent use. It is meant to be driven from a
// single event loop: Send opens a Stream, a goroutine blocks on Stream.Next,
// and the resulting Event is handed back to the loop which calls Apply.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eduattend/internal/logging"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned by Send while a reply is still streaming.
	ErrBusy = errors.New("session: a reply is still streaming")
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("session: empty message")
	// ErrNotStarted is returned by Send before Start was called.
	ErrNotStarted = errors.New("session: not started")
)

// Transport streams the assistant's reply to one user turn. Implementations
// must close the token channel when the reply ends and deliver at most one
// error on the error channel, then close it. Both channels must be closed
// promptly once ctx is cancelled.
type Transport interface {
	Stream(ctx context.Context, text string) (<-chan string, <-chan error)
}

// TransportFactory creates a fresh transport bound to a session key.
type TransportFactory func(key string) Transport

// State is the streaming state of a session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Observer is notified with a snapshot of the log after every mutation.
type Observer func(messages []Message)

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithErrorText overrides how a transport failure is worded in the log.
func WithErrorText(fn func(error) string) Option {
	return func(s *Session) { s.errorText = fn }
}

// ErrorMarker prefixes the content of synthetic error messages.
const ErrorMarker = "⚠️ "

// Session is one conversation: a key, its transport, and the ordered log.
type Session struct {
	factory   TransportFactory
	transport Transport

	key      string
	messages []Message
	state    State

	// Active stream bookkeeping. current indexes the in-progress assistant
	// message and is only valid while state == StateStreaming.
	turn    uint64
	current int
	cancel  context.CancelFunc

	observers []Observer
	now       func() time.Time
	errorText func(error) string
}

// New creates a session that builds its transports with factory. Call Start
// before sending.
func New(factory TransportFactory, opts ...Option) *Session {
	s := &Session{
		factory: factory,
		current: -1,
		now:     time.Now,
		errorText: func(err error) string {
			return fmt.Sprintf("Failed to get a reply from the attendance agent: %v", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start replaces the session wholesale: any in-flight stream is abandoned,
// the log is emptied and a new transport is created for key. An empty key
// gets a random one.
func (s *Session) Start(key string) {
	if key == "" {
		key = uuid.NewString()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		logging.Session("abandoned in-flight stream of session %s", s.key)
	}

	s.key = key
	s.transport = s.factory(key)
	s.messages = nil
	s.state = StateIdle
	s.current = -1
	s.turn++

	logging.Session("started session %s", key)
	s.notify()
}

// Key returns the current session key.
func (s *Session) Key() string { return s.key }

// State returns the streaming state.
func (s *Session) State() State { return s.state }

// Messages returns a copy of the log.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastUser returns the most recent user message.
func (s *Session) LastUser() (Message, bool) { return LastOfRole(s.messages, RoleUser) }

// LastAssistant returns the most recent assistant message.
func (s *Session) LastAssistant() (Message, bool) { return LastOfRole(s.messages, RoleAssistant) }

// Subscribe registers an observer. Observers are called synchronously in
// registration order.
func (s *Session) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Send appends the user message and an empty in-progress assistant message,
// then opens the reply stream. The returned Stream must be pumped with Next
// and each Event passed to Apply.
func (s *Session) Send(text string) (*Stream, error) {
	if s.transport == nil {
		return nil, ErrNotStarted
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.state == StateStreaming {
		return nil, ErrBusy
	}

	now := s.now()
	s.messages = append(s.messages, Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
		Time:    now,
	})
	s.messages = append(s.messages, Message{
		ID:   uuid.NewString(),
		Role: RoleAssistant,
		Time: now,
	})
	s.current = len(s.messages) - 1
	s.state = StateStreaming
	s.turn++

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	tokens, errs := s.transport.Stream(ctx, text)

	logging.SessionDebug("session %s turn %d: streaming reply", s.key, s.turn)
	s.notify()

	return &Stream{key: s.key, turn: s.turn, tokens: tokens, errs: errs}, nil
}

// Apply folds a stream event into the log. It reports whether the event was
// accepted; events from abandoned sessions or finished turns are dropped.
func (s *Session) Apply(ev Event) bool {
	if ev.Key != s.key || ev.Turn != s.turn || s.state != StateStreaming {
		logging.SessionDebug("dropped stale %s event (session %s turn %d)", ev.Kind, ev.Key, ev.Turn)
		return false
	}

	msg := &s.messages[s.current]
	switch ev.Kind {
	case EventToken:
		msg.Content += ev.Token
	case EventDone:
		s.finish(StateIdle)
	case EventError:
		errText := ErrorMarker + s.errorText(ev.Err)
		if msg.Content != "" {
			msg.Content += "\n\n" + errText
		} else {
			msg.Content = errText
		}
		msg.Error = true
		logging.Get(logging.CategorySession).Warn("session %s turn %d failed: %v", s.key, s.turn, ev.Err)
		s.finish(StateErrored)
	}

	s.notify()
	return true
}

// Close abandons any in-flight stream without touching the log.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) finish(state State) {
	s.state = state
	s.current = -1
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) notify() {
	if len(s.observers) == 0 {
		return
	}
	snapshot := s.Messages()
	for _, o := range s.observers {
		o(snapshot)
	}
}
