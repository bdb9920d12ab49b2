package dispatch

import (
	"errors"
	"fmt"
	"time"

	"eduattend/internal/logging"
)

var (
	// ErrIncomplete is returned by Submit while required values are missing
	// or invalid. Nothing is sent.
	ErrIncomplete = errors.New("dispatch: form is incomplete")
	// ErrNoActiveForm is returned by Submit when no form is open.
	ErrNoActiveForm = errors.New("dispatch: no active form")
)

// Sender delivers a composed message to the chat session.
type Sender interface {
	Send(text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(text string) error

func (f SenderFunc) Send(text string) error { return f(text) }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used for form date defaults.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher owns at most one active form.
type Dispatcher struct {
	sender Sender
	now    func() time.Time
	active *Form
}

// New creates a dispatcher sending through sender.
func New(sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{sender: sender, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Select runs q. A direct question is sent immediately and no form is
// returned. A templated question replaces any active form with a new one
// and nothing is sent.
func (d *Dispatcher) Select(q Question) (*Form, error) {
	switch q := q.(type) {
	case *Direct:
		logging.Dispatch("direct question %q", q.Label())
		return nil, d.sender.Send(q.Text())
	case *Templated:
		if d.active != nil {
			logging.Dispatch("closing form %q to open %q", d.active.Spec().Title, q.Label())
		}
		d.active = newForm(q, d.now())
		logging.Dispatch("opened form %q", q.Label())
		return d.active, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidQuestion, q)
}

// Active returns the open form, or nil.
func (d *Dispatcher) Active() *Form { return d.active }

// Submit renders the active form's values and sends the result exactly
// once, then discards the form. An incomplete form is kept open.
func (d *Dispatcher) Submit() error {
	f := d.active
	if f == nil {
		return ErrNoActiveForm
	}
	if !f.CanSubmit() {
		return fmt.Errorf("%w: missing %v invalid %v", ErrIncomplete, f.Missing(), f.Invalid())
	}

	text, err := f.question.Render(f.Values())
	if err != nil {
		return fmt.Errorf("failed to render %q: %w", f.question.Label(), err)
	}

	d.active = nil
	logging.Dispatch("submitted form %q", f.question.Label())
	return d.sender.Send(text)
}

// Cancel discards the active form without sending anything.
func (d *Dispatcher) Cancel() {
	if d.active != nil {
		logging.Dispatch("cancelled form %q", d.active.question.Label())
	}
	d.active = nil
}
