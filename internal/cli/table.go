package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes aligned columns. Cells may carry lipgloss styling; padding is
// computed on the raw text so styled and plain rows line up.
type Table struct {
	tw      *tabwriter.Writer
	columns int
}

// NewTable starts a table on w with the given header.
func NewTable(w io.Writer, headers ...string) *Table {
	t := &Table{
		tw:      tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.StripEscape),
		columns: len(headers),
	}
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = TableHeaderStyle.Render(h)
	}
	t.Row(styled...)
	return t
}

// Row appends one row. Missing cells are left blank; extra cells are dropped.
func (t *Table) Row(cells ...string) {
	row := make([]string, t.columns)
	for i := 0; i < t.columns && i < len(cells); i++ {
		row[i] = escapeStyled(cells[i])
	}
	_, _ = fmt.Fprintln(t.tw, strings.Join(row, "\t"))
}

// Flush writes the buffered rows.
func (t *Table) Flush() error {
	return t.tw.Flush()
}

// escapeStyled wraps ANSI sequences in tabwriter escapes so they do not count
// toward the column width.
func escapeStyled(cell string) string {
	if !strings.Contains(cell, "\x1b[") {
		return cell
	}

	var b strings.Builder
	for i := 0; i < len(cell); i++ {
		if cell[i] != 0x1b {
			b.WriteByte(cell[i])
			continue
		}
		end := strings.IndexByte(cell[i:], 'm')
		if end < 0 {
			b.WriteString(cell[i:])
			break
		}
		b.WriteByte(tabwriter.Escape)
		b.WriteString(cell[i : i+end+1])
		b.WriteByte(tabwriter.Escape)
		i += end
	}
	return b.String()
}
