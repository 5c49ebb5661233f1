package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows under header. Text mode draws a box table, the other
// modes a markdown table.
func (r *Renderer) Table(header []string, rows [][]any) {
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	if r.EffectiveMode() != ModeText {
		t.RenderMarkdown()
		return
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

// Cell formats v for a table, printing nil as NULL.
func Cell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
