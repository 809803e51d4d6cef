package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws rows under the given headers. A header ending in ">"
// right-aligns its column; the marker is not printed.
func renderTable(rows [][]string, headers ...string) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, h := range headers {
		align := text.AlignLeft
		if name, ok := strings.CutSuffix(h, ">"); ok {
			h, align = name, text.AlignRight
		}
		header[i] = h
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range min(len(row), len(headers)) {
			r[i] = row[i]
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
