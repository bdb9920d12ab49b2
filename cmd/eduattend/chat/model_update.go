package chat

import (
	"eduattend/internal/artifact"
	"eduattend/internal/dispatch"
	"eduattend/internal/logging"
	"eduattend/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case streamEventMsg:
		if !m.conv.sess.Apply(msg.event) {
			return m, nil
		}
		m.refreshViewport(true)
		if msg.event.Kind != session.EventToken {
			m.clampCursor()
			return m, nil
		}
		return m, pump(msg.stream)

	case healthTickMsg:
		if msg.gen != m.healthGen {
			return m, nil
		}
		// Probe even when one is still in flight; a slow probe is superseded
		// by whichever newer result resolves first.
		if m.monitor.InFlight() {
			logging.Get(logging.CategoryHealth).Debug("previous probe still pending, probing again")
		}
		return m, tea.Batch(m.probe(), m.scheduleProbe())

	case healthResultMsg:
		online := msg.online && msg.err == nil
		if !m.monitor.Resolve(msg.seq, online, msg.at) {
			logging.Get(logging.CategoryHealth).Debug("ignored stale probe %d", msg.seq)
			return m, nil
		}
		if msg.err != nil {
			logging.Health("probe %d: offline: %v", msg.seq, msg.err)
		} else {
			logging.Health("probe %d: online=%v", msg.seq, online)
		}
		if m.rechecking {
			m.rechecking = false
			if online {
				m.setStatus(false, "Attendance agent is online")
			} else {
				m.setStatus(true, "Attendance agent is offline")
			}
		}
		return m, m.scheduleProbe()

	case optionsLoadedMsg:
		msg.form.ApplyOptions(msg.choices, msg.err)
		if msg.err != nil && m.form != nil && m.form.form == msg.form {
			m.setStatus(true, "Could not load options: %v", msg.err)
		}
		return m, nil

	case downloadDoneMsg:
		delete(m.downloading, msg.filename)
		switch {
		case msg.err != nil:
			m.setStatus(true, "Download of %s failed: %v", msg.filename, msg.err)
		case msg.result.Fallback:
			m.setStatus(false, "Opened %s in the browser", msg.result.Filename)
		default:
			m.setStatus(false, "Saved %s (%d bytes)", msg.result.Path, msg.result.Bytes)
		}
		return m, nil

	case configReloadMsg:
		m.reloadConfig(msg)
		return m, m.waitConfig()

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			if m.conv.sess.State() == session.StateStreaming {
				m.refreshViewport(false)
			}
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.viewMode == ChatView && m.focus == FocusInput {
		m.textarea, cmd = m.textarea.Update(msg)
	}
	return m, cmd
}

// busy reports whether an animated spinner is on screen.
func (m Model) busy() bool {
	if m.conv.sess.State() == session.StateStreaming {
		return true
	}
	return m.form != nil && m.form.form.Loading()
}

func (m *Model) resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	m.width, m.height = width, height

	chatWidth := width - 4
	if chatWidth < 1 {
		chatWidth = 1
	}
	m.viewport.Width = chatWidth

	// Input box border (2) + padding (2)
	inputWidth := chatWidth - 4
	if inputWidth < 1 {
		inputWidth = 1
	}
	m.textarea.SetWidth(inputWidth)

	if wrap := chatWidth - 4; m.renderer != nil && wrap > 0 && wrap != m.renderWidth {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.renderer = r
			m.renderWidth = wrap
			clear(m.renderedCache)
		}
	}

	m.ready = true
	m.refreshViewport(false)
}

// refreshViewport re-renders the log and fits the viewport between the
// header and the panels.
func (m *Model) refreshViewport(gotoBottom bool) {
	m.viewport.Height = m.chatHeight()
	m.viewport.SetContent(m.renderHistory())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) reloadConfig(msg configReloadMsg) {
	if msg.err != nil {
		m.setStatus(true, "Config reload failed: %v", msg.err)
		return
	}
	cfg := msg.cfg
	m.cfg = cfg
	m.applyHeuristics(cfg.Heuristics)
	m.derived.detector = artifact.NewDetector(cfg.Artifacts.Extensions)
	m.derived.observe(m.conv.sess.Messages())

	if qs, err := dispatch.Catalog(cfg.Questions); err != nil {
		m.setStatus(true, "Config reload: keeping previous questions: %v", err)
	} else {
		m.questions = qs
		m.setStatus(false, "Configuration reloaded")
	}
	m.clampCursor()
	logging.Get(logging.CategoryConfig).Info("reloaded: locale=%s questions=%d", m.locale.Tag, len(m.questions))
}
