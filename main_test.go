package main

import (
	"reflect"
	"testing"

	"sheetscribe/crop"
	"sheetscribe/gemini"
)

func TestParseRunArgs_Defaults(t *testing.T) {
	opts := parseRunArgs([]string{"./scans/*.png"})

	if len(opts.Inputs) != 1 || opts.Inputs[0] != "./scans/*.png" {
		t.Errorf("Inputs = %v, want the pattern", opts.Inputs)
	}
	if opts.Format != "markdown" {
		t.Errorf("Format = %q, want markdown default", opts.Format)
	}
	if opts.Output != "" || opts.Model != "" || opts.Crop != "" {
		t.Error("unset flags should stay empty")
	}
}

func TestParseRunArgs_AllFlags(t *testing.T) {
	opts := parseRunArgs([]string{
		"-o", "./may.csv",
		"-f", "csv",
		"-m", "gemini-2.5-pro",
		"--pages", "1-3",
		"--crop", "0,0,100,50",
		"--rotate", "90",
		"week1.png", "week2.png",
	})

	if opts.Output != "./may.csv" {
		t.Errorf("Output = %q", opts.Output)
	}
	if opts.Format != "csv" {
		t.Errorf("Format = %q", opts.Format)
	}
	if opts.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q", opts.Model)
	}
	if opts.Pages != "1-3" {
		t.Errorf("Pages = %q", opts.Pages)
	}
	if opts.Crop != "0,0,100,50" {
		t.Errorf("Crop = %q", opts.Crop)
	}
	if opts.Rotation != 90 {
		t.Errorf("Rotation = %d", opts.Rotation)
	}
	if len(opts.Inputs) != 2 {
		t.Errorf("Inputs = %v, want both files", opts.Inputs)
	}
}

func TestParseRunArgs_FlagMissingValue(t *testing.T) {
	// A trailing flag with no value must not panic or consume inputs.
	opts := parseRunArgs([]string{"scan.png", "-o"})
	if len(opts.Inputs) != 1 {
		t.Errorf("Inputs = %v, want scan.png", opts.Inputs)
	}
	if opts.Output != "" {
		t.Errorf("Output = %q, want empty", opts.Output)
	}
}

func TestParseCropSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    crop.Region
		wantErr bool
	}{
		{"0,0,100,50", crop.Region{X: 0, Y: 0, W: 100, H: 50}, false},
		{"10.5, 20, 30, 40", crop.Region{X: 10.5, Y: 20, W: 30, H: 40}, false},
		{"1,2,3", crop.Region{}, true},
		{"a,b,c,d", crop.Region{}, true},
		{"", crop.Region{}, true},
	}

	for _, tt := range tests {
		got, err := parseCropSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCropSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseCropSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
	}
}

func TestValidatePercent(t *testing.T) {
	valid := []string{"", "0", "50", "100", " 42.5 "}
	for _, s := range valid {
		if err := validatePercent(s); err != nil {
			t.Errorf("validatePercent(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"-1", "101", "abc"}
	for _, s := range invalid {
		if err := validatePercent(s); err == nil {
			t.Errorf("validatePercent(%q) should fail", s)
		}
	}
}

func TestParsePercent(t *testing.T) {
	if got := parsePercent("25", 0); got != 25 {
		t.Errorf("parsePercent(25) = %v", got)
	}
	if got := parsePercent("", 100); got != 100 {
		t.Errorf("parsePercent(empty) = %v, want default", got)
	}
	if got := parsePercent("junk", 50); got != 50 {
		t.Errorf("parsePercent(junk) = %v, want default", got)
	}
}

func TestValidateTemperature(t *testing.T) {
	valid := []string{"0", "0.1", "1", "0.75"}
	for _, s := range valid {
		if err := validateTemperature(s); err != nil {
			t.Errorf("validateTemperature(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "-0.1", "1.5", "warm"}
	for _, s := range invalid {
		if err := validateTemperature(s); err == nil {
			t.Errorf("validateTemperature(%q) should fail", s)
		}
	}
}

func TestModelChoices(t *testing.T) {
	got := modelChoices([]string{"my-tuned-model", gemini.ModelGemini25Pro})
	want := []string{
		"my-tuned-model",
		gemini.ModelGemini25Pro,
		gemini.ModelGemini25Flash,
		gemini.ModelGemini20Flash,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("modelChoices() = %v, want history first then known models deduplicated %v", got, want)
	}
}
