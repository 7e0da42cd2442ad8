package stage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// rasterDPI renders PDF pages at twice the nominal 72dpi page size so small
// handwriting stays legible for the model.
const rasterDPI = 144

// PDFError reports a PDF that could not be loaded or rendered. It aborts
// staging for that file only.
type PDFError struct {
	Name string
	Err  error
}

func (e *PDFError) Error() string {
	return fmt.Sprintf("could not load PDF %s: %v", e.Name, e.Err)
}

func (e *PDFError) Unwrap() error {
	return e.Err
}

// RasterizePDF renders PDF pages into PNG sources, one per page. A nil or
// empty pages slice selects every page; page numbers are 1-based.
func RasterizePDF(name string, data []byte, pages []int) ([]Source, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &PDFError{Name: name, Err: err}
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, &PDFError{Name: name, Err: fmt.Errorf("document has no pages")}
	}

	selected := pages
	if len(selected) == 0 {
		selected = make([]int, total)
		for i := range selected {
			selected[i] = i + 1
		}
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	sources := make([]Source, 0, len(selected))

	for _, page := range selected {
		if page < 1 || page > total {
			return nil, &PDFError{Name: name, Err: fmt.Errorf("page %d out of range (1-%d)", page, total)}
		}

		img, err := doc.ImageDPI(page-1, rasterDPI)
		if err != nil {
			return nil, &PDFError{Name: name, Err: fmt.Errorf("failed to render page %d: %w", page, err)}
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, &PDFError{Name: name, Err: fmt.Errorf("failed to encode page %d: %w", page, err)}
		}

		sources = append(sources, Source{
			Name: fmt.Sprintf("%s_page_%02d.png", base, page),
			MIME: "image/png",
			Data: buf.Bytes(),
		})
	}

	return sources, nil
}

// ParsePageRange parses a "1,3-5" style selector into 1-based page numbers.
func ParsePageRange(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start := parseNumber(strings.TrimSpace(lo))
			end := parseNumber(strings.TrimSpace(hi))
			if start < 1 || end < start || !allDigits(lo) || !allDigits(hi) {
				return nil, fmt.Errorf("invalid page range: %s", part)
			}
			for p := start; p <= end; p++ {
				pages = append(pages, p)
			}
			continue
		}

		if !allDigits(part) || parseNumber(part) < 1 {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		pages = append(pages, parseNumber(part))
	}

	return pages, nil
}

func allDigits(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
