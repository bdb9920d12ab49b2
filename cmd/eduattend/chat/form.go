package chat

import (
	"fmt"
	"strings"

	"eduattend/internal/datectx"
	"eduattend/internal/dispatch"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// formEntry is one focusable control. A date-range field yields two.
type formEntry struct {
	field dispatch.Field
	key   string
	label string
}

func (e formEntry) isChoice() bool {
	return e.field.Type == dispatch.FieldSelect || e.field.Type == dispatch.FieldRemote
}

// formView renders a dispatch.Form and routes keys to its controls. The
// submit button sits after the last entry.
type formView struct {
	form    *dispatch.Form
	entries []formEntry
	inputs  map[string]textinput.Model
	focus   int
}

func newFormView(f *dispatch.Form, labels datectx.Labels) *formView {
	v := &formView{form: f, inputs: make(map[string]textinput.Model)}
	for _, field := range f.Spec().Fields {
		switch field.Type {
		case dispatch.FieldDateRange:
			v.entries = append(v.entries,
				formEntry{field: field, key: dispatch.StartKey(field.Key), label: fmt.Sprintf("%s (%s)", field.Label, labels.Start)},
				formEntry{field: field, key: dispatch.EndKey(field.Key), label: fmt.Sprintf("%s (%s)", field.Label, labels.End)},
			)
		default:
			v.entries = append(v.entries, formEntry{field: field, key: field.Key, label: field.Label})
		}
	}

	for _, e := range v.entries {
		if e.isChoice() {
			continue
		}
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = e.field.Placeholder
		if e.field.Type == dispatch.FieldDate || e.field.Type == dispatch.FieldDateRange {
			ti.Placeholder = "YYYY-MM-DD"
			ti.CharLimit = len(dispatch.ISODate)
		}
		ti.SetValue(f.Value(e.key))
		v.inputs[e.key] = ti
	}
	v.setFocus(0)
	return v
}

func (v *formView) onSubmit() bool { return v.focus == len(v.entries) }

func (v *formView) setFocus(i int) {
	n := len(v.entries) + 1
	v.focus = ((i % n) + n) % n
	for k, ti := range v.inputs {
		if !v.onSubmit() && v.entries[v.focus].key == k {
			ti.Focus()
		} else {
			ti.Blur()
		}
		v.inputs[k] = ti
	}
}

func (v *formView) next() { v.setFocus(v.focus + 1) }
func (v *formView) prev() { v.setFocus(v.focus - 1) }

// choices lists the values a choice entry cycles through. Optional fields
// can be cleared.
func (v *formView) choices(e formEntry) []dispatch.Choice {
	choices := v.form.Choices(e.field.Key)
	if !e.field.Required {
		choices = append([]dispatch.Choice{{Label: "(none)"}}, choices...)
	}
	return choices
}

func (v *formView) cycle(delta int) {
	if v.onSubmit() {
		return
	}
	e := v.entries[v.focus]
	if !e.isChoice() || v.form.Disabled(e.field.Key) {
		return
	}
	choices := v.choices(e)
	if len(choices) == 0 {
		return
	}
	idx := -1
	current := v.form.Value(e.key)
	for i, c := range choices {
		if c.Value == current {
			idx = i
			break
		}
	}
	if idx < 0 && delta < 0 {
		idx = 0
	}
	idx = ((idx+delta)%len(choices) + len(choices)) % len(choices)
	_ = v.form.Set(e.key, choices[idx].Value)
}

// update routes a key to the focused control.
func (v *formView) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		v.next()
		return nil
	case tea.KeyShiftTab, tea.KeyUp:
		v.prev()
		return nil
	case tea.KeyLeft:
		if v.focusedChoice() {
			v.cycle(-1)
			return nil
		}
	case tea.KeyRight, tea.KeySpace:
		if v.focusedChoice() {
			v.cycle(1)
			return nil
		}
	}

	if v.onSubmit() {
		return nil
	}
	e := v.entries[v.focus]
	ti, ok := v.inputs[e.key]
	if !ok {
		return nil
	}
	var cmd tea.Cmd
	ti, cmd = ti.Update(msg)
	v.inputs[e.key] = ti
	_ = v.form.Set(e.key, strings.TrimSpace(ti.Value()))
	return cmd
}

func (v *formView) focusedChoice() bool {
	return !v.onSubmit() && v.entries[v.focus].isChoice()
}

func (m Model) renderForm() string {
	v := m.form
	s := m.styles
	spec := v.form.Spec()

	invalid := make(map[string]bool)
	for _, k := range v.form.Invalid() {
		invalid[k] = true
	}

	var sb strings.Builder
	sb.WriteString(s.Title.Render(spec.Title) + "\n\n")

	for i, e := range v.entries {
		label := e.label
		if e.field.Required {
			label += " *"
		}
		labelStyle := s.Bold
		if i == v.focus {
			labelStyle = labelStyle.Foreground(s.Theme.Accent)
		}
		sb.WriteString(labelStyle.Render(label) + "\n")

		switch {
		case e.isChoice() && v.form.Disabled(e.field.Key):
			sb.WriteString(s.Disabled.Render("unavailable") + " " + s.Muted.Render(fmt.Sprintf("(failed to load options: %v)", v.form.LoadErr())))
		case e.isChoice() && v.form.Loading():
			sb.WriteString(m.spinner.View() + s.Muted.Render(" loading options..."))
		case e.isChoice():
			sb.WriteString(v.renderChoice(m, e, i == v.focus))
		default:
			sb.WriteString(v.inputs[e.key].View())
		}
		if invalid[e.key] {
			sb.WriteString("  " + s.Error.Render("invalid date"))
		}
		sb.WriteString("\n\n")
	}

	button := s.Button
	if !v.form.CanSubmit() {
		button = button.Background(s.Theme.Muted)
	} else if v.onSubmit() {
		button = button.Background(s.Theme.Accent)
	}
	sb.WriteString(button.Render("Send"))
	if missing := v.form.Missing(); len(missing) > 0 {
		sb.WriteString("  " + s.Muted.Render("required: "+strings.Join(missing, ", ")))
	}
	sb.WriteString("\n\n" + s.Muted.Render("Tab: next field | ←/→: choose | Enter: send | Esc: cancel"))

	width := m.width - 8
	if width < 20 {
		width = 20
	}
	return s.Modal.Width(width).Render(sb.String())
}

func (v *formView) renderChoice(m Model, e formEntry, focused bool) string {
	current := v.form.Value(e.key)
	label := ""
	for _, c := range v.choices(e) {
		if c.Value == current {
			label = c.Label
			break
		}
	}
	if label == "" {
		label = "(choose)"
	}
	text := "‹ " + label + " ›"
	if focused {
		return m.styles.SelectedItem.Render(text)
	}
	return m.styles.Item.Render(text)
}

// customPicker collects an arbitrary date or range.
type customPicker struct {
	picker   datectx.CustomPicker
	start    textinput.Model
	end      textinput.Model
	focusEnd bool
}

func newCustomPicker(isRange bool, today string) *customPicker {
	mk := func() textinput.Model {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = "YYYY-MM-DD"
		ti.CharLimit = len(datectx.ISOLayout)
		return ti
	}
	p := &customPicker{picker: datectx.CustomPicker{IsRange: isRange, Start: today}, start: mk(), end: mk()}
	p.start.SetValue(today)
	if isRange {
		p.picker.End = today
		p.end.SetValue(today)
	}
	p.start.Focus()
	return p
}

func (p *customPicker) toggle() {
	if !p.picker.IsRange {
		return
	}
	p.focusEnd = !p.focusEnd
	if p.focusEnd {
		p.start.Blur()
		p.end.Focus()
	} else {
		p.end.Blur()
		p.start.Focus()
	}
}

func (p *customPicker) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		p.toggle()
		return nil
	}
	var cmd tea.Cmd
	if p.focusEnd {
		p.end, cmd = p.end.Update(msg)
	} else {
		p.start, cmd = p.start.Update(msg)
	}
	p.picker.Start = strings.TrimSpace(p.start.Value())
	if p.picker.IsRange {
		p.picker.End = strings.TrimSpace(p.end.Value())
	}
	return cmd
}

func (m Model) renderCustom() string {
	p := m.custom
	s := m.styles
	labels := m.locale.Labels

	var sb strings.Builder
	sb.WriteString(s.Title.Render(labels.Custom) + "\n\n")
	if p.picker.IsRange {
		sb.WriteString(s.Bold.Render(labels.Start) + "\n" + p.start.View() + "\n\n")
		sb.WriteString(s.Bold.Render(labels.End) + "  " + s.Muted.Render("≥ "+p.picker.MinEnd()) + "\n" + p.end.View() + "\n\n")
	} else {
		sb.WriteString(p.start.View() + "\n\n")
	}

	button := s.Button
	if !p.picker.CanSubmit() {
		button = button.Background(s.Theme.Muted)
	}
	sb.WriteString(button.Render("Send"))
	sb.WriteString("\n\n" + s.Muted.Render("Tab: switch | Enter: send | Esc: cancel"))

	return s.Modal.Width(lipgloss.Width(labels.Custom) + 40).Render(sb.String())
}
