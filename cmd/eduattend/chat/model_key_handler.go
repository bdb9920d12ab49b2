package chat

import (
	"errors"
	"strings"

	"eduattend/internal/datectx"
	"eduattend/internal/dispatch"
	"eduattend/internal/logging"
	"eduattend/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global Keybindings
	switch msg.Type {
	case tea.KeyCtrlC:
		m.Shutdown()
		return m, tea.Quit

	case tea.KeyCtrlR:
		// Manual re-check: probe now and drop the scheduled tick; the result
		// re-arms the timer from the new state.
		cmd := m.probe()
		m.healthGen++
		m.rechecking = cmd != nil
		m.setStatus(false, "Checking connection...")
		return m, cmd

	case tea.KeyCtrlN:
		m.newSession()
		return m, nil
	}

	switch m.viewMode {
	case FormView:
		return m.handleFormKey(msg)
	case CustomView:
		return m.handleCustomKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		m.cycleFocus(1)
		return m, nil
	case tea.KeyShiftTab:
		m.cycleFocus(-1)
		return m, nil
	case tea.KeyEsc:
		m.focus = FocusInput
		m.textarea.Focus()
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == FocusInput {
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" {
				return m, nil
			}
			cmd := m.send(text)
			if cmd != nil {
				m.textarea.Reset()
			}
			return m, cmd
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyLeft, tea.KeyUp:
		m.moveCursor(-1)
	case tea.KeyRight, tea.KeyDown:
		m.moveCursor(1)
	case tea.KeyEnter:
		return m.activate()
	}
	return m, nil
}

// panels returns the focus targets currently on screen, input first.
func (m Model) panels() []Focus {
	out := []Focus{FocusInput}
	if len(m.questions) > 0 {
		out = append(out, FocusQuestions)
	}
	if m.showDates() {
		out = append(out, FocusDates)
	}
	if len(m.derived.artifacts) > 0 {
		out = append(out, FocusArtifacts)
	}
	return out
}

func (m *Model) cycleFocus(delta int) {
	panels := m.panels()
	idx := 0
	for i, p := range panels {
		if p == m.focus {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%len(panels) + len(panels)) % len(panels)
	m.focus = panels[idx]
	m.cursor = 0
	if m.focus == FocusInput {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
	logging.Get(logging.CategoryUI).Debug("focus %s", m.focus)
}

// panelLen is the number of items of the focused panel.
func (m Model) panelLen() int {
	switch m.focus {
	case FocusQuestions:
		return len(m.questions)
	case FocusDates:
		if !m.showDates() {
			return 0
		}
		return len(m.quickPicks()) + 1 // + custom
	case FocusArtifacts:
		return len(m.derived.artifacts)
	}
	return 0
}

func (m *Model) moveCursor(delta int) {
	n := m.panelLen()
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = ((m.cursor+delta)%n + n) % n
}

// clampCursor fixes up focus and cursor after the panels changed.
func (m *Model) clampCursor() {
	visible := false
	for _, p := range m.panels() {
		if p == m.focus {
			visible = true
			break
		}
	}
	if !visible {
		m.focus = FocusInput
		m.textarea.Focus()
	}
	if n := m.panelLen(); m.cursor >= n {
		m.cursor = 0
	}
}

func (m Model) showDates() bool {
	return m.conv.sess.State() != session.StateStreaming && m.derived.dates.Show
}

func (m Model) quickPicks() []datectx.Pick {
	return datectx.QuickPicks(m.locale, m.derived.dates.IsRange, m.now())
}

// activate runs the selected item of the focused panel.
func (m Model) activate() (tea.Model, tea.Cmd) {
	switch m.focus {
	case FocusQuestions:
		if m.cursor >= len(m.questions) {
			return m, nil
		}
		f, err := m.dispatcher.Select(m.questions[m.cursor])
		if err != nil {
			m.setStatus(true, "Cannot send: %v", err)
			return m, nil
		}
		if f == nil {
			return m, m.startPump()
		}
		return m, m.openForm(f)

	case FocusDates:
		if !m.showDates() {
			return m, nil
		}
		picks := m.quickPicks()
		if m.cursor < len(picks) {
			text := m.composer.Compose(m.conv.sess.Messages(), picks[m.cursor])
			return m, m.send(text)
		}
		m.custom = newCustomPicker(m.derived.dates.IsRange, datectx.ISO(m.now()))
		m.viewMode = CustomView
		return m, nil

	case FocusArtifacts:
		if m.cursor >= len(m.derived.artifacts) {
			return m, nil
		}
		name := m.derived.artifacts[m.cursor]
		if m.downloading[name] {
			return m, nil
		}
		m.downloading[name] = true
		m.setStatus(false, "Downloading %s...", name)
		return m, m.download(name)
	}
	return m, nil
}

func (m *Model) openForm(f *dispatch.Form) tea.Cmd {
	m.form = newFormView(f, m.locale.Labels)
	m.viewMode = FormView
	m.textarea.Blur()
	if f.BeginLoad() {
		return tea.Batch(m.loadOptions(f), m.spinner.Tick)
	}
	return nil
}

func (m *Model) closeOverlay() {
	m.form = nil
	m.custom = nil
	m.viewMode = ChatView
	if m.focus == FocusInput {
		m.textarea.Focus()
	}
	m.clampCursor()
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.dispatcher.Cancel()
		m.closeOverlay()
		return m, nil

	case tea.KeyEnter:
		if !m.form.form.CanSubmit() {
			return m, nil
		}
		if m.conv.sess.State() == session.StateStreaming {
			m.setStatus(true, "Wait for the current reply to finish")
			return m, nil
		}
		err := m.dispatcher.Submit()
		if errors.Is(err, dispatch.ErrIncomplete) {
			return m, nil
		}
		m.closeOverlay()
		if err != nil {
			m.setStatus(true, "Cannot send: %v", err)
			return m, nil
		}
		return m, m.startPump()
	}
	return m, m.form.update(msg)
}

func (m Model) handleCustomKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeOverlay()
		return m, nil

	case tea.KeyEnter:
		if !m.custom.picker.CanSubmit() {
			return m, nil
		}
		pick, err := m.custom.picker.Pick(m.locale)
		if err != nil {
			m.setStatus(true, "%v", err)
			return m, nil
		}
		text := m.composer.Compose(m.conv.sess.Messages(), pick)
		m.closeOverlay()
		return m, m.send(text)
	}
	return m, m.custom.update(msg)
}

// newSession abandons the conversation and everything derived from it.
func (m *Model) newSession() {
	m.conv.sess.Start("")
	m.conv.pending = nil
	m.dispatcher.Cancel()
	m.form = nil
	m.custom = nil
	m.viewMode = ChatView
	m.focus = FocusInput
	m.cursor = 0
	m.textarea.Focus()
	clear(m.downloading)
	clear(m.renderedCache)
	m.setStatus(false, "New session %s", shortKey(m.conv.sess.Key()))
	m.refreshViewport(true)
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
