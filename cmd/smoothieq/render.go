package main

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers with rounded borders. Short rows are
// padded and extra cells are dropped.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	width := len(headers)
	if width == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(tableRow(headers, width))
	for _, row := range rows {
		tw.AppendRow(tableRow(row, width))
	}

	configs := make([]table.ColumnConfig, width)
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func tableRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// shortenPath keeps the tail of long paths so table columns stay readable.
func shortenPath(path string, width int) string {
	path = strings.TrimSpace(path)
	runes := []rune(path)
	if width <= 3 || len(runes) <= width {
		return path
	}
	return "..." + string(runes[len(runes)-(width-3):])
}

// writeJSON prints v as indented JSON. Paths keep their literal characters.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
