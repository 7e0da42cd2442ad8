// Package export turns transcription results into Markdown, CSV, and XLSX
// payloads. Only successful results contribute; failures are excluded from
// every format.
package export

import "strings"

// ParseTable extracts table rows from markdown text. Every line containing
// a pipe counts except pure separator lines (pipes, dashes, and spaces
// only). Cells come from splitting on pipes, dropping the empty outer
// segments, and trimming whitespace. The header row is returned as an
// ordinary data row. Prose outside the table is dropped.
func ParseTable(markdown string) [][]string {
	var rows [][]string

	for _, line := range strings.Split(markdown, "\n") {
		if !strings.Contains(line, "|") || isSeparatorLine(line) {
			continue
		}

		cells := strings.Split(line, "|")
		if len(cells) > 0 && strings.TrimSpace(cells[0]) == "" {
			cells = cells[1:]
		}
		if len(cells) > 0 && strings.TrimSpace(cells[len(cells)-1]) == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) == 0 {
			continue
		}

		row := make([]string, len(cells))
		for i, cell := range cells {
			row[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	return rows
}

// isSeparatorLine matches markdown table separator rows like |---|---|,
// including alignment colons.
func isSeparatorLine(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ', '\t':
		default:
			return false
		}
	}
	return true
}
