// Package formatter renders console tables for the run report.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"incidentetl/pkg/utils"
)

// MaxCellWidth bounds the display width of a single cell.
const MaxCellWidth = 48

// Table renders header and rows as a markdown table with every column padded
// to its widest cell. Cells are whitespace-normalized and truncated to
// MaxCellWidth display columns.
func Table(header []string, rows [][]string) string {
	colCount := len(header)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	if colCount == 0 {
		return ""
	}

	table := make([][]string, 0, len(rows)+1)
	table = append(table, cleanRow(header, colCount))

	for _, row := range rows {
		table = append(table, cleanRow(row, colCount))
	}

	// Calculate max widths (using display width)
	colWidths := make([]int, colCount)

	for _, row := range table {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}

	// Ensure min width for separator (usually 3 dashes "---")
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	lines := make([]string, 0, len(table)+1)
	lines = append(lines, renderRow(table[0], colWidths))

	separator := make([]string, colCount)
	for i, w := range colWidths {
		separator[i] = strings.Repeat("-", w)
	}

	lines = append(lines, renderRow(separator, colWidths))

	for _, row := range table[1:] {
		lines = append(lines, renderRow(row, colWidths))
	}

	return strings.Join(lines, "\n") + "\n"
}

// KeyValues renders ordered label/value pairs as a two-column table.
func KeyValues(header [2]string, pairs [][2]string) string {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}

	return Table(header[:], rows)
}

func cleanRow(row []string, colCount int) []string {
	cells := make([]string, colCount)
	for i := 0; i < len(row) && i < colCount; i++ {
		cell := utils.NormalizeWhitespace(row[i])
		cell = strings.ReplaceAll(cell, "|", "/")
		cells[i] = utils.TruncateWidth(cell, MaxCellWidth)
	}

	return cells
}

func renderRow(cells []string, colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, content := range cells {
		sb.WriteString(" ")
		sb.WriteString(content)

		// Pad with spaces based on display width
		if padding := colWidths[j] - runewidth.StringWidth(content); padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
