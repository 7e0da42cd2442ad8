package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetscribe/pipeline"
)

// Format identifies an export payload type.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q (markdown, csv, or xlsx)", s)
	}
}

// Extension returns the file extension for the format, dot included.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".md"
	}
}

// Export produces the full payload for the format, or fails without
// producing anything.
func Export(results []pipeline.Result, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(Markdown(results)), nil
	case FormatCSV:
		return []byte(CSV(results)), nil
	case FormatXLSX:
		return Workbook(results)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// successes filters out failed results.
func successes(results []pipeline.Result) []pipeline.Result {
	kept := make([]pipeline.Result, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			kept = append(kept, r)
		}
	}
	return kept
}

// Markdown concatenates every successful result under a filename heading,
// separated by horizontal rules.
func Markdown(results []pipeline.Result) string {
	sections := make([]string, 0, len(results))
	for _, r := range successes(results) {
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", r.FileName, r.Markdown))
	}
	return strings.Join(sections, "\n\n---\n\n")
}

// CSV renders every successful result as a quoted filename row, its parsed
// table rows, and a blank separator row. Every cell is quoted with interior
// quotes doubled.
func CSV(results []pipeline.Result) string {
	var b strings.Builder
	for _, r := range successes(results) {
		b.WriteString(csvQuote(r.FileName))
		b.WriteString("\n")
		for _, row := range ParseTable(r.Markdown) {
			quoted := make([]string, len(row))
			for i, cell := range row {
				quoted[i] = csvQuote(cell)
			}
			b.WriteString(strings.Join(quoted, ","))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// csvQuote wraps a cell in double quotes, doubling interior quotes.
func csvQuote(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// Workbook builds an XLSX file with one sheet per successful result whose
// parsed table has at least one row. Sheet names derive from filenames,
// sanitized and capped at the 31-character limit, deduplicated with a
// numeric suffix.
func Workbook(results []pipeline.Result) ([]byte, error) {
	wb := excelize.NewFile()
	defer wb.Close()

	// Reserve the default sheet's name so no result collides with it
	// before it is dropped.
	taken := map[string]bool{"Sheet1": true}
	sheets := 0

	for _, r := range successes(results) {
		rows := ParseTable(r.Markdown)
		if len(rows) == 0 {
			continue
		}

		name := sheetName(r.FileName, taken)
		taken[name] = true

		if _, err := wb.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		sheets++

		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return nil, fmt.Errorf("failed to address row %d: %w", i+1, err)
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := wb.SetSheetRow(name, cell, &values); err != nil {
				return nil, fmt.Errorf("failed to write row %d of %s: %w", i+1, name, err)
			}
		}
	}

	if sheets == 0 {
		return nil, fmt.Errorf("no tabular results to export")
	}

	// Drop the default sheet excelize creates.
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// maxSheetName is the XLSX sheet name length limit.
const maxSheetName = 31

// sheetName sanitizes a filename into a unique legal sheet name.
func sheetName(fileName string, taken map[string]bool) string {
	base := fileName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		default:
			return r
		}
	}, base)
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Sheet"
	}
	if runes := []rune(base); len(runes) > maxSheetName {
		base = string(runes[:maxSheetName])
	}

	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > maxSheetName {
			trimmed = trimmed[:maxSheetName-len(suffix)]
		}
		candidate := string(trimmed) + suffix
		if !taken[candidate] {
			return candidate
		}
	}
}
