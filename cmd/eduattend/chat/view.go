package chat

import (
	"fmt"
	"strings"

	"eduattend/internal/health"
	"eduattend/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

func (m Model) renderHistory() string {
	msgs := m.conv.sess.Messages()
	if len(msgs) == 0 {
		return m.styles.Muted.Render("Ask the attendance agent anything, or pick a suggested question below (Tab).")
	}

	streaming := m.conv.sess.State() == session.StateStreaming
	var sb strings.Builder
	for i, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Text()))
			sb.WriteString("\n\n")

		default:
			assistantStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(assistantStyle.Render("EduAttend") + "\n")

			inProgress := streaming && i == len(msgs)-1
			switch {
			case inProgress && msg.Content == "":
				sb.WriteString(m.spinner.View() + m.styles.Muted.Render(" thinking..."))
			case inProgress:
				// Markdown is rendered once the reply is complete.
				sb.WriteString(m.styles.AgentResponse.Render(msg.Text()))
			case msg.Error:
				sb.WriteString(m.styles.Error.Render(msg.Text()))
			default:
				sb.WriteString(m.cachedMarkdown(msg))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) cachedMarkdown(msg session.Message) string {
	if r, ok := m.renderedCache[msg.ID]; ok {
		return r
	}
	r := m.safeRenderMarkdown(msg.Text())
	m.renderedCache[msg.ID] = r
	return r
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return content
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	switch m.viewMode {
	case FormView:
		if m.form != nil {
			return m.overlay(header, m.renderForm(), footer)
		}
	case CustomView:
		if m.custom != nil {
			return m.overlay(header, m.renderCustom(), footer)
		}
	}

	chatView := m.styles.Content.Render(m.viewport.View())

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Border).
		Padding(0, 1)
	if m.focus == FocusInput {
		inputStyle = inputStyle.BorderForeground(m.styles.Theme.Accent)
	}
	inputArea := inputStyle.Render(m.textarea.View())

	parts := []string{header, chatView}
	if panels := m.renderPanels(); panels != "" {
		parts = append(parts, panels)
	}
	parts = append(parts, inputArea, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) overlay(header, modal, footer string) string {
	h := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if h < lipgloss.Height(modal) {
		h = lipgloss.Height(modal)
	}
	body := lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, modal)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// chatHeight is what is left for the log once header, panels, input and
// footer are laid out.
func (m Model) chatHeight() int {
	used := lipgloss.Height(m.renderHeader()) +
		m.textarea.Height() + 2 + // input border
		lipgloss.Height(m.renderFooter())
	if panels := m.renderPanels(); panels != "" {
		used += lipgloss.Height(panels)
	}
	h := m.height - used
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" EduAttend ")
	badge := m.renderHealth()
	key := m.styles.Muted.Render("session " + shortKey(m.conv.sess.Key()))

	var status string
	switch {
	case m.conv.sess.State() == session.StateStreaming:
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Badge.Render("Receiving reply..."))
	case m.statusMessage != "" && m.statusIsError:
		status = m.styles.Error.Render(m.statusMessage)
	case m.statusMessage != "":
		status = m.styles.Info.Render(m.statusMessage)
	default:
		status = m.styles.Success.Render("Ready")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge, "  ", key)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		status,
		m.styles.RenderDivider(m.width),
	)
}

func (m Model) renderHealth() string {
	st := m.monitor.Status()
	switch st.State {
	case health.StateOnline:
		return m.styles.Success.Render("● Online")
	case health.StateOffline:
		return m.styles.Error.Render("● Offline")
	}
	return m.styles.Warning.Render("○ Checking")
}

func (m Model) renderFooter() string {
	checked := "never"
	if st := m.monitor.Status(); !st.LastChecked.IsZero() {
		checked = st.LastChecked.Format("15:04:05")
	}
	hotkeys := "Tab: panels | Enter: send/select | Ctrl+N: new session | Ctrl+R: recheck | PgUp/PgDn: scroll | Ctrl+C: quit"
	help := m.styles.Muted.Render(fmt.Sprintf("Checked %s | %s", checked, hotkeys))
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}

func (m Model) renderPanels() string {
	var rows []string

	if len(m.questions) > 0 {
		items := make([]string, len(m.questions))
		for i, q := range m.questions {
			items[i] = strings.TrimSpace(q.Icon() + " " + q.Label())
		}
		rows = append(rows, m.renderPanel("Suggested", items, FocusQuestions))
	}

	if m.showDates() {
		picks := m.quickPicks()
		items := make([]string, 0, len(picks)+1)
		for _, p := range picks {
			items = append(items, fmt.Sprintf("%s (%s)", p.Label, p.Detail))
		}
		items = append(items, m.locale.Labels.Custom)
		rows = append(rows, m.renderPanel(m.locale.Labels.Header, items, FocusDates))
	}

	if len(m.derived.artifacts) > 0 {
		items := make([]string, len(m.derived.artifacts))
		for i, name := range m.derived.artifacts {
			items[i] = "📄 " + name
			if m.downloading[name] {
				items[i] += " ⏳"
			}
		}
		rows = append(rows, m.renderPanel("Files", items, FocusArtifacts))
	}

	if len(rows) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderPanel lays items out left to right, wrapping at the screen width.
func (m Model) renderPanel(title string, items []string, focus Focus) string {
	focused := m.focus == focus
	titleStyle := m.styles.Muted
	if focused {
		titleStyle = m.styles.Title
	}

	width := m.width - 4
	if width < 1 {
		width = 1
	}

	var lines []string
	line := titleStyle.Render(title + ":")
	for i, it := range items {
		style := m.styles.Item
		if focused && i == m.cursor {
			style = m.styles.SelectedItem
		}
		cell := style.Render(it)
		if lipgloss.Width(line)+1+lipgloss.Width(cell) > width && line != "" {
			lines = append(lines, line)
			line = cell
			continue
		}
		line += " " + cell
	}
	lines = append(lines, line)
	return m.styles.Content.Render(strings.Join(lines, "\n"))
}
