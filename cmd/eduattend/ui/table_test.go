package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Render(t *testing.T) {
	table := NewTable("Suggested questions", "QUESTION", "KIND")
	table.AddRow("📋 Absen Hari Ini", "direct")
	table.AddRow("📊 Rekap Kelas") // missing cell renders empty
	table.AddRow("x", "form", "dropped")

	view := table.Render(DefaultStyles())
	lines := strings.Split(strings.TrimRight(view, "\n"), "\n")
	require.Len(t, lines, 6, "title, header, divider and three rows")

	assert.Contains(t, lines[0], "Suggested questions")
	assert.Contains(t, lines[1], "QUESTION")
	assert.Contains(t, lines[3], "Absen Hari Ini")
	assert.NotContains(t, view, "dropped")

	// Every row is as wide as the header.
	width := lipgloss.Width(lines[1])
	for _, l := range lines[3:] {
		assert.Equal(t, width, lipgloss.Width(l), "row %q", l)
	}
	assert.Equal(t, width, lipgloss.Width(lines[2]))
}

func TestTable_NoTitle(t *testing.T) {
	view := NewTable("", "A").Render(DefaultStyles())
	assert.Contains(t, view, "A")
	assert.Len(t, strings.Split(strings.TrimRight(view, "\n"), "\n"), 2)
}
