package engine

import (
	"strings"
	"unicode/utf8"
)

// Response is what a transport renders back to the user.
type Response struct {
	Text  string
	Table *Table
}

// Table is a structured block transports may render natively or fall
// back to String().
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// String renders the table as fixed-width text.
func (t *Table) String() string {
	if t == nil {
		return ""
	}
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(t.Title)
		sb.WriteString("\n")
	}
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			if i < len(cells)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			}
		}
		sb.WriteString("\n")
	}
	writeRow(t.Headers)
	for _, row := range t.Rows {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Render flattens a response to plain text.
func (r Response) Render() string {
	if r.Table == nil {
		return r.Text
	}
	if r.Text == "" {
		return r.Table.String()
	}
	return r.Text + "\n\n" + r.Table.String()
}
