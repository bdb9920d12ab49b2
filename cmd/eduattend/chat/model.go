// Package chat provides the interactive TUI chat interface for eduattend.
//
// The bubbletea Update loop is the only code that mutates the session, the
// active form and the health monitor. Commands perform the I/O and return
// their outcome as messages.
package chat

import (
	"context"
	"fmt"
	"time"

	"eduattend/cmd/eduattend/ui"
	"eduattend/internal/artifact"
	"eduattend/internal/config"
	"eduattend/internal/datectx"
	"eduattend/internal/dispatch"
	"eduattend/internal/health"
	"eduattend/internal/logging"
	"eduattend/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// New builds the chat model. It starts the first session and, when
// cfg.ConfigPath is set, the config watcher.
func New(cfg Config) (Model, error) {
	if cfg.App == nil {
		return Model{}, fmt.Errorf("chat: missing configuration")
	}
	if cfg.Transports == nil {
		return Model{}, fmt.Errorf("chat: missing transport factory")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	questions, err := dispatch.Catalog(cfg.App.Questions)
	if err != nil {
		return Model{}, fmt.Errorf("chat: %w", err)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about attendance... (Enter to send, Alt+Enter for newline)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := ui.NewStyles(ui.ThemeNamed(cfg.Theme))
	sp.Style = styles.Spinner

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("markdown renderer unavailable: %v", err)
		renderer = nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		textarea:      ta,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		styles:        styles,
		renderer:      renderer,
		renderWidth:   80,
		viewMode:      ChatView,
		focus:         FocusInput,
		downloading:   make(map[string]bool),
		renderedCache: make(map[string]string),
		cfg:           cfg.App,
		questions:     questions,
		options:       cfg.Options,
		monitor:       health.NewMonitor(cfg.App.GetPollInterval(), cfg.App.GetRetryInterval()),
		prober:        cfg.Prober,
		downloader:    cfg.Downloader,
		now:           now,
		ctx:           ctx,
		cancel:        cancel,
	}
	m.applyHeuristics(cfg.App.Heuristics)
	m.derived.detector = artifact.NewDetector(cfg.App.Artifacts.Extensions)

	sess := session.New(cfg.Transports, session.WithClock(now))
	m.conv = &conversation{sess: sess}
	d := m.derived
	sess.Subscribe(d.observe)
	sess.Start(cfg.SessionKey)

	m.dispatcher = dispatch.New(m.conv, dispatch.WithClock(now))

	if cfg.ConfigPath != "" {
		ch, err := watchConfig(ctx, cfg.ConfigPath)
		if err != nil {
			logging.Get(logging.CategoryConfig).Warn("config reload disabled: %v", err)
		} else {
			m.configCh = ch
		}
	}

	logging.Boot("chat ready: session=%s questions=%d", sess.Key(), len(questions))
	return m, nil
}

// applyHeuristics rebuilds the date classifier and composer.
func (m *Model) applyHeuristics(hc config.HeuristicsConfig) {
	classifier, loc := datectx.FromConfig(hc)
	if m.derived == nil {
		m.derived = &derived{}
	}
	m.derived.classifier = classifier
	m.locale = loc
	m.composer = datectx.NewComposer(loc)
}

// Init starts the first health probe and the config reload listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		func() tea.Msg { return healthTickMsg{gen: m.healthGen} },
		m.waitConfig(),
	)
}

// Session returns the live session.
func (m Model) Session() *session.Session { return m.conv.sess }

// Shutdown abandons the in-flight stream and stops background work.
func (m Model) Shutdown() {
	m.conv.sess.Close()
	m.cancel()
}

// =============================================================================
// COMMANDS
// =============================================================================

// pump reads the next event of st.
func pump(st *session.Stream) tea.Cmd {
	if st == nil {
		return nil
	}
	return func() tea.Msg {
		return streamEventMsg{stream: st, event: st.Next()}
	}
}

// send submits text through the conversation and starts pumping the reply.
func (m *Model) send(text string) tea.Cmd {
	if err := m.conv.Send(text); err != nil {
		m.setStatus(true, "Cannot send: %v", err)
		return nil
	}
	return m.startPump()
}

// startPump pumps the stream opened by the most recent Send, if any.
func (m *Model) startPump() tea.Cmd {
	st := m.conv.take()
	if st == nil {
		return nil
	}
	m.statusMessage = ""
	m.focus = FocusInput
	m.refreshViewport(true)
	return tea.Batch(pump(st), m.spinner.Tick)
}

// probe starts a health probe. The monitor is updated on the loop before
// the I/O is handed to a command.
func (m *Model) probe() tea.Cmd {
	if m.prober == nil {
		return nil
	}
	seq := m.monitor.Begin()
	prober, ctx, now := m.prober, m.ctx, m.now
	return func() tea.Msg {
		online, err := prober.Health(ctx)
		return healthResultMsg{seq: seq, online: online, err: err, at: now()}
	}
}

// scheduleProbe arms the next tick. Ticks of older generations are ignored,
// so re-arming invalidates any tick already scheduled.
func (m *Model) scheduleProbe() tea.Cmd {
	m.healthGen++
	gen := m.healthGen
	return tea.Tick(m.monitor.Interval(), func(time.Time) tea.Msg {
		return healthTickMsg{gen: gen}
	})
}

func (m Model) loadOptions(f *dispatch.Form) tea.Cmd {
	src, ctx := m.options, m.ctx
	return func() tea.Msg {
		if src == nil {
			return optionsLoadedMsg{form: f, err: fmt.Errorf("no option source configured")}
		}
		choices, err := src.Options(ctx)
		return optionsLoadedMsg{form: f, choices: choices, err: err}
	}
}

func (m Model) download(filename string) tea.Cmd {
	dl, ctx := m.downloader, m.ctx
	return func() tea.Msg {
		if dl == nil {
			return downloadDoneMsg{filename: filename, err: fmt.Errorf("downloads are not configured")}
		}
		res, err := dl.Download(ctx, filename)
		return downloadDoneMsg{filename: filename, result: res, err: err}
	}
}

// watchConfig forwards reloads of path to the returned channel until ctx is
// cancelled.
func watchConfig(ctx context.Context, path string) (<-chan configReloadMsg, error) {
	ch := make(chan configReloadMsg, 1)
	_, err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		select {
		case ch <- configReloadMsg{cfg: cfg, err: err}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (m Model) waitConfig() tea.Cmd {
	ch, ctx := m.configCh, m.ctx
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) setStatus(isErr bool, format string, args ...any) {
	m.statusMessage = fmt.Sprintf(format, args...)
	m.statusIsError = isErr
	if isErr {
		logging.Get(logging.CategoryUI).Warn("%s", m.statusMessage)
	}
}
