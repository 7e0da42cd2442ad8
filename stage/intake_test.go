package stage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNaturalSort(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"numeric before lexicographic", "page_2.png", "page_10.png", true},
		{"reverse numeric", "page_10.png", "page_2.png", false},
		{"plain alphabetical", "alpha.png", "beta.png", true},
		{"case insensitive", "Page_2.png", "page_10.png", true},
		{"equal prefixes shorter first", "scan.png", "scan_v2.png", true},
		{"multi segment numbers", "doc2_page10.png", "doc2_page9.png", false},
		{"identical", "same.png", "same.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := naturalSort(tt.a, tt.b); got != tt.want {
				t.Errorf("naturalSort(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMIMEType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".png", "image/png"},
		{".webp", "image/webp"},
		{".tif", "image/tiff"},
		{".txt", ""},
	}

	for _, tt := range tests {
		if got := MIMEType(tt.ext); got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestLoadSources_NaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"week_10.png", "week_2.png", "week_1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := LoadSources([]string{dir})
	if err != nil {
		t.Fatalf("LoadSources() failed: %v", err)
	}

	want := []string{"week_1.png", "week_2.png", "week_10.png"}
	if len(sources) != len(want) {
		t.Fatalf("got %d sources, want %d", len(sources), len(want))
	}
	for i, name := range want {
		if sources[i].Name != name {
			t.Errorf("sources[%d].Name = %s, want %s", i, sources[i].Name, name)
		}
	}
}

func TestLoadSources_DeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources, err := LoadSources([]string{path, path, filepath.Join(dir, "*.png")})
	if err != nil {
		t.Fatalf("LoadSources() failed: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("got %d sources, want 1 after dedup", len(sources))
	}
}

func TestLoadSources_SkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scan.png", "notes.txt", "data.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := LoadSources([]string{dir})
	if err != nil {
		t.Fatalf("LoadSources() failed: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "scan.png" {
		t.Errorf("directory intake should keep only supported files, got %v", sources)
	}
}

func TestLoadSources_Errors(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
	}{
		{"no inputs", nil},
		{"missing file", []string{"/nonexistent/scan.png"}},
		{"unsupported extension", []string{os.Args[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSources(tt.inputs); err == nil {
				t.Error("LoadSources() should fail")
			}
		})
	}
}

func TestLoadSources_RejectsOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.png")
	if err := os.WriteFile(path, make([]byte, MaxSourceSize+1), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSources([]string{path}); err == nil {
		t.Error("LoadSources() should reject files over the size limit")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.size); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
