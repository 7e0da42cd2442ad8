// Package settings holds the persisted configuration for transcription runs:
// API credential, system prompt, sampling temperature, model choice, and the
// list of previously used models.
package settings

import (
	"os"
	"strings"
)

// DefaultModel is the built-in model, always present in the history list.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature keeps transcription nearly deterministic.
const DefaultTemperature = 0.1

// DefaultSystemPrompt instructs the model to emit a bare GFM table.
const DefaultSystemPrompt = `You are a meticulous transcriber of scanned paper timesheets.
Extract every row of the timesheet in the image into a GitHub-flavored
Markdown table. Keep the column headers exactly as written on the sheet.
Transcribe times and dates verbatim; do not normalize formats. If a cell is
blank or illegible, leave it empty. Output only the Markdown table, with no
code fences and no commentary.`

// Settings is the explicit configuration passed into the transcription
// pipeline and the export engine. It is never read from ambient state.
type Settings struct {
	APIKey       string
	SystemPrompt string
	Temperature  float64
	Model        string
	ModelHistory []string
}

// Defaults returns baseline settings for first launch.
func Defaults() Settings {
	return Settings{
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
		Model:        DefaultModel,
		ModelHistory: []string{DefaultModel},
	}
}

// ResolveAPIKey returns the configured key, falling back to the
// GEMINI_API_KEY and GOOGLE_API_KEY environment variables.
func (s Settings) ResolveAPIKey() string {
	if key := strings.TrimSpace(s.APIKey); key != "" {
		return key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// RememberModel records a model in the history, deduplicated, with the
// built-in default always present.
func (s *Settings) RememberModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}

	seen := map[string]bool{model: true, DefaultModel: true}
	history := []string{model}
	if model != DefaultModel {
		history = append(history, DefaultModel)
	}
	for _, m := range s.ModelHistory {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		history = append(history, m)
	}
	s.ModelHistory = history
}
