package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows under a header, columns sized to their widest
// cell. Used by the plain CLI listings.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates an empty table.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row. Cells beyond the header count are dropped when
// rendering; missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render lays the table out with the given styles.
func (t *Table) Render(styles Styles) string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title) + "\n")
	}

	sep := styles.Muted.Render("|")
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			// +2 for the horizontal padding.
			parts[i] = style.Padding(0, 1).Width(w + 2).Render(cell)
		}
		sb.WriteString(strings.Join(parts, sep) + "\n")
	}

	line(t.Headers, styles.Bold)
	total := len(widths) - 1
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", max(total, 0))) + "\n")
	for _, row := range t.Rows {
		line(row, styles.Body)
	}
	return sb.String()
}
