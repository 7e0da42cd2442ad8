package main

import (
	"fmt"
	"strconv"
	"strings"

	"sheetscribe/settings"

	"github.com/charmbracelet/huh"
)

// runSettingsForm edits the stored settings interactively.
func runSettingsForm() {
	store := settings.NewViperStore(settings.DefaultPath())
	cfg, err := store.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Error loading settings: " + err.Error()))
		cfg = settings.Defaults()
	}

	apiKey := cfg.APIKey
	systemPrompt := cfg.SystemPrompt
	model := cfg.Model
	tempStr := strconv.FormatFloat(cfg.Temperature, 'f', 1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API key").
				Description("Leave empty to use GEMINI_API_KEY from the environment").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Model").
				Placeholder(settings.DefaultModel).
				Value(&model),
			huh.NewInput().
				Title("Temperature").
				Description("0.0 to 1.0; low values keep transcription literal").
				Validate(validateTemperature).
				Value(&tempStr),
		),
		huh.NewGroup(
			huh.NewText().
				Title("System prompt").
				Description("Instructions sent with every image").
				CharLimit(4000).
				Value(&systemPrompt),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			fmt.Println(infoStyle.Render("Settings unchanged."))
			return
		}
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return
	}

	cfg.APIKey = strings.TrimSpace(apiKey)
	cfg.SystemPrompt = systemPrompt
	if model = strings.TrimSpace(model); model == "" {
		model = settings.DefaultModel
	}
	cfg.Model = model
	cfg.RememberModel(model)
	if t, err := strconv.ParseFloat(strings.TrimSpace(tempStr), 64); err == nil {
		cfg.Temperature = t
	}

	if err := store.Save(cfg); err != nil {
		fmt.Println(errorStyle.Render("Error saving settings: " + err.Error()))
		return
	}
	fmt.Println(successStyle.Render("Settings saved to " + settings.DefaultPath()))
}

// validateTemperature validates the temperature form field.
func validateTemperature(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("must be between 0.0 and 1.0")
	}
	return nil
}
