package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SupportedImageTypes lists all supported image file extensions.
var SupportedImageTypes = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif",
}

// MaxSourceSize is the maximum size of a single input file (20MB).
const MaxSourceSize = 20 * 1024 * 1024

// Source is one loaded input ready to be staged.
type Source struct {
	Name string
	MIME string
	Data []byte
}

// LoadSources resolves paths, directories, and glob patterns into staged
// sources. Images load directly; PDFs expand into one source per rendered
// page. Results are ordered by natural filename sort within each input.
func LoadSources(inputs []string) ([]Source, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}

	var paths []string
	seen := make(map[string]bool)

	for _, input := range inputs {
		resolved, err := resolveInput(input)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", input, err)
		}
		for _, p := range resolved {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", p, err)
			}
			if !seen[abs] {
				seen[abs] = true
				paths = append(paths, abs)
			}
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no usable input files found")
	}

	sort.Slice(paths, func(i, j int) bool {
		return naturalSort(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})

	var sources []Source
	for _, p := range paths {
		loaded, err := loadPath(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, loaded...)
	}

	return sources, nil
}

// resolveInput resolves one input to concrete file paths.
func resolveInput(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err == nil {
		if info.IsDir() {
			return loadFromDirectory(input)
		}
		if isImageFile(input) || isPDFFile(input) {
			return []string{input}, nil
		}
		return nil, fmt.Errorf("not a supported image or PDF file: %s", input)
	}

	matches, err := filepath.Glob(input)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files found matching: %s", input)
	}

	var paths []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.IsDir() {
			dirPaths, err := loadFromDirectory(match)
			if err == nil {
				paths = append(paths, dirPaths...)
			}
		} else if isImageFile(match) || isPDFFile(match) {
			paths = append(paths, match)
		}
	}

	return paths, nil
}

// loadFromDirectory collects supported files from one directory.
func loadFromDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isImageFile(path) || isPDFFile(path) {
			paths = append(paths, path)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no image or PDF files found in directory")
	}
	return paths, nil
}

// loadPath reads one file from disk, expanding PDFs into page sources.
func loadPath(path string) ([]Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.Size() > MaxSourceSize {
		return nil, fmt.Errorf("%s exceeds maximum size of 20MB", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := filepath.Base(path)
	if isPDFFile(path) {
		return RasterizePDF(name, data, nil)
	}

	return []Source{{
		Name: name,
		MIME: MIMEType(filepath.Ext(path)),
		Data: data,
	}}, nil
}

// MIMEType returns the MIME type for a supported image extension.
func MIMEType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return ""
	}
}

// isImageFile checks if a file has a supported image extension.
func isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedImageTypes {
		if ext == supported {
			return true
		}
	}
	return false
}

// isPDFFile checks if a file has a .pdf extension.
func isPDFFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// naturalSort orders filenames with embedded numbers numerically,
// e.g. page_2.png comes before page_10.png.
func naturalSort(a, b string) bool {
	aLower := strings.ToLower(a)
	bLower := strings.ToLower(b)

	aPos, bPos := 0, 0

	for aPos < len(aLower) && bPos < len(bLower) {
		aChar := aLower[aPos]
		bChar := bLower[bPos]

		aIsDigit := aChar >= '0' && aChar <= '9'
		bIsDigit := bChar >= '0' && bChar <= '9'

		if aIsDigit && bIsDigit {
			aNumStart := aPos
			bNumStart := bPos

			for aPos < len(aLower) && aLower[aPos] >= '0' && aLower[aPos] <= '9' {
				aPos++
			}
			for bPos < len(bLower) && bLower[bPos] >= '0' && bLower[bPos] <= '9' {
				bPos++
			}

			aNum := parseNumber(aLower[aNumStart:aPos])
			bNum := parseNumber(bLower[bNumStart:bPos])

			if aNum != bNum {
				return aNum < bNum
			}
		} else {
			if aChar != bChar {
				return aChar < bChar
			}
			aPos++
			bPos++
		}
	}

	return len(aLower) < len(bLower)
}

// parseNumber parses a string of digits into an integer.
func parseNumber(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// FormatSize formats a byte size as a human-readable string.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
