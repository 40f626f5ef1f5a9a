package cli

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Table renders left-aligned columns sized to their content.
type Table struct {
	headers []string
	rows    [][]string
	gap     int

	// maxWidths caps a column; longer cells wrap at word boundaries.
	maxWidths map[int]int

	// flexCol, when >= 0, is shrunk to fit termWidth (never below flexMin).
	flexCol   int
	flexMin   int
	termWidth int
}

// NewTable creates a table with the given headers.
func NewTable(headers []string) *Table {
	return &Table{
		headers:   headers,
		gap:       2,
		maxWidths: make(map[int]int),
		flexCol:   -1,
	}
}

// SetColumnMaxWidth caps column col at width characters.
func (t *Table) SetColumnMaxWidth(col, width int) {
	t.maxWidths[col] = width
}

// EnableTerminalAwareWidth lets column col wrap so the table fits the width
// of out, when out is a terminal. The column is never narrower than minWidth.
func (t *Table) EnableTerminalAwareWidth(out io.Writer, col, minWidth int) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return
	}
	t.setFlexColumn(col, minWidth, width)
}

func (t *Table) setFlexColumn(col, minWidth, termWidth int) {
	t.flexCol = col
	t.flexMin = minWidth
	t.termWidth = termWidth
}

// AddRow appends a row, padding or truncating it to the header count.
func (t *Table) AddRow(row []string) {
	normalized := make([]string, len(t.headers))
	copy(normalized, row)
	t.rows = append(t.rows, normalized)
}

// Render returns the formatted table.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	limits := t.columnLimits()

	cells := make([][][]string, len(t.rows))
	for r, row := range t.rows {
		cells[r] = make([][]string, len(row))
		for c, cell := range row {
			cells[r][c] = wrapText(cell, limits[c])
		}
	}

	widths := make([]int, len(t.headers))
	for c, h := range t.headers {
		widths[c] = len(h)
	}
	for _, row := range cells {
		for c, lines := range row {
			for _, line := range lines {
				widths[c] = max(widths[c], len(line))
			}
		}
	}

	var b strings.Builder
	sep := strings.Repeat(" ", t.gap)

	writeLine := func(parts []string) {
		b.WriteString(strings.Join(parts, sep))
		b.WriteString("\n")
	}

	parts := make([]string, len(t.headers))
	for c, h := range t.headers {
		parts[c] = padRight(h, widths[c])
	}
	writeLine(parts)

	for c, w := range widths {
		parts[c] = strings.Repeat("-", w)
	}
	writeLine(parts)

	for _, row := range cells {
		height := 1
		for _, lines := range row {
			height = max(height, len(lines))
		}
		for i := range height {
			for c := range t.headers {
				text := ""
				if i < len(row[c]) {
					text = row[c][i]
				}
				parts[c] = padRight(text, widths[c])
			}
			writeLine(parts)
		}
	}

	return b.String()
}

// columnLimits returns the wrap width of each column (0 = unlimited).
func (t *Table) columnLimits() []int {
	limits := make([]int, len(t.headers))
	for c := range limits {
		limits[c] = t.maxWidths[c]
	}
	if t.flexCol < 0 || t.flexCol >= len(t.headers) {
		return limits
	}

	used := t.gap * (len(t.headers) - 1)
	for c, h := range t.headers {
		if c == t.flexCol {
			continue
		}
		w := len(h)
		for _, row := range t.rows {
			w = max(w, len(row[c]))
		}
		if limits[c] > 0 {
			w = min(w, limits[c])
		}
		used += w
	}

	flex := max(t.termWidth-used, t.flexMin)
	if limits[t.flexCol] == 0 || flex < limits[t.flexCol] {
		limits[t.flexCol] = flex
	}
	return limits
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// wrapText splits text into lines of at most width characters, breaking at
// spaces and splitting words that are longer than width.
func wrapText(text string, width int) []string {
	if width <= 0 || len(text) <= width {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var lines []string
	line := ""
	for _, word := range words {
		for len(word) > width {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= width:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
