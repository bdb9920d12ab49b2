package chat

import (
	"context"
	"time"

	"eduattend/cmd/eduattend/ui"
	"eduattend/internal/artifact"
	"eduattend/internal/config"
	"eduattend/internal/datectx"
	"eduattend/internal/dispatch"
	"eduattend/internal/health"
	"eduattend/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Downloader saves a detected artifact.
type Downloader interface {
	Download(ctx context.Context, filename string) (artifact.Result, error)
}

// Config holds the collaborators of the chat interface.
type Config struct {
	// App is the loaded configuration. Required.
	App *config.Config
	// ConfigPath, when set, is watched and reloaded on change.
	ConfigPath string

	Transports session.TransportFactory
	Prober     health.Prober
	Options    dispatch.OptionSource
	Downloader Downloader

	// SessionKey seeds the first session; empty gets a random key.
	SessionKey string
	Theme      string
	Now        func() time.Time
}

// ViewMode determines which component is focused/active
type ViewMode int

const (
	ChatView   ViewMode = iota
	FormView            // parameter form of a templated question
	CustomView          // custom date picker
)

// Focus is the chat-view panel receiving keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusQuestions
	FocusDates
	FocusArtifacts
)

func (f Focus) String() string {
	switch f {
	case FocusInput:
		return "input"
	case FocusQuestions:
		return "questions"
	case FocusDates:
		return "dates"
	case FocusArtifacts:
		return "artifacts"
	}
	return "unknown"
}

// derived holds what the session observer recomputes after every log
// mutation. It is shared by all copies of the Model.
type derived struct {
	detector   *artifact.Detector
	classifier *datectx.Classifier

	artifacts []string
	dates     datectx.Context
	version   int // bumped on every notification
}

func (d *derived) observe(messages []session.Message) {
	d.artifacts = d.detector.Detect(messages)
	d.dates = d.classifier.Classify(messages)
	d.version++
}

// conversation hands the stream opened by any sender back to the loop.
type conversation struct {
	sess    *session.Session
	pending *session.Stream
}

// Send implements dispatch.Sender.
func (c *conversation) Send(text string) error {
	st, err := c.sess.Send(text)
	if err != nil {
		return err
	}
	c.pending = st
	return nil
}

func (c *conversation) take() *session.Stream {
	st := c.pending
	c.pending = nil
	return st
}

// Model is the bubbletea model of the interactive chat.
type Model struct {
	// UI Components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	viewMode ViewMode
	focus    Focus
	cursor   int // selection within the focused panel

	// State
	width         int
	height        int
	ready         bool
	statusMessage string
	statusIsError bool
	downloading   map[string]bool
	renderedCache map[string]string // completed message ID -> rendered markdown
	renderWidth   int

	// Session
	conv    *conversation
	derived *derived
	cfg     *config.Config

	// Date context
	locale   *datectx.Locale
	composer *datectx.Composer
	custom   *customPicker

	// Suggested questions
	questions  []dispatch.Question
	dispatcher *dispatch.Dispatcher
	options    dispatch.OptionSource
	form       *formView

	// Health
	monitor    *health.Monitor
	prober     health.Prober
	healthGen  uint64 // tags scheduled ticks; a tick from an older generation is ignored
	rechecking bool   // a manual recheck awaits its result
	downloader Downloader

	// Config reload
	configCh <-chan configReloadMsg

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// =============================================================================
// MESSAGES
// =============================================================================

type (
	// streamEventMsg carries one event of a reply stream back to the loop.
	streamEventMsg struct {
		stream *session.Stream
		event  session.Event
	}

	healthTickMsg struct{ gen uint64 }

	healthResultMsg struct {
		seq    uint64
		online bool
		err    error
		at     time.Time
	}

	optionsLoadedMsg struct {
		form    *dispatch.Form
		choices []dispatch.Choice
		err     error
	}

	downloadDoneMsg struct {
		filename string
		result   artifact.Result
		err      error
	}

	configReloadMsg struct {
		cfg *config.Config
		err error
	}
)
