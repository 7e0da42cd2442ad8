package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"sheetscribe/crop"
	"sheetscribe/gemini"
	"sheetscribe/logging"
	"sheetscribe/settings"
	"sheetscribe/stage"
	"sheetscribe/tui"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2DD4BF")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#38BDF8")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#34D399"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F87171"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#38BDF8")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	scribeLogo = `
    ╭─────────────────────────────────────────╮
    │  📋 SheetScribe - Timesheets to Tables  │
    ╰─────────────────────────────────────────╯`
)

var logger = logging.Nop()

func main() {
	args := os.Args[1:]

	if len(args) > 0 && (args[0] == "-version" || args[0] == "--version" || args[0] == "-v") {
		fmt.Printf("sheetscribe %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  go:     %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	if os.Getenv("SHEETSCRIBE_DEBUG") != "" {
		if fileLogger, err := logging.New(debugLogPath(), true); err == nil {
			logger = fileLogger
			defer logger.Sync()
		}
	}

	if len(args) > 0 {
		switch args[0] {
		case "run":
			runNonInteractive(args[1:])
			return
		case "settings":
			runSettingsForm()
			return
		case "update":
			runUpdate()
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	// Print header
	fmt.Println(titleStyle.Render(scribeLogo))

	store := settings.NewViperStore(settings.DefaultPath())
	cfg, err := store.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Error loading settings: " + err.Error()))
		cfg = settings.Defaults()
	}

	if cfg.ResolveAPIKey() == "" {
		fmt.Println(errorStyle.Render("Error: no Gemini API key configured"))
		fmt.Println(infoStyle.Render(gemini.GetAPIKeyHelp()))
		fmt.Println(infoStyle.Render("Run 'sheetscribe settings' to store a key, or set GEMINI_API_KEY."))
		os.Exit(1)
	}

	// Main loop
	for {
		if !runScribeWorkflow(store, &cfg) {
			break
		}
	}

	fmt.Println(subtitleStyle.Render("\n📋 Thanks for using SheetScribe! Bye!"))
}

func debugLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sheetscribe-debug.log"
	}
	return filepath.Join(home, ".sheetscribe", "debug.log")
}

// runScribeWorkflow walks through one stage-crop-transcribe-export cycle.
// Returns false when the user is done.
func runScribeWorkflow(store settings.Store, cfg *settings.Settings) bool {
	// Step 1: Select input
	sources, ok := selectSources()
	if !ok {
		return false
	}
	if sources == nil {
		return askToContinue()
	}

	// Stage into the queue
	previewDir, err := os.MkdirTemp("", "sheetscribe-previews-*")
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}
	defer os.RemoveAll(previewDir)

	previews, err := stage.NewThumbnailStore(previewDir)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	queue := stage.NewQueue(previews)
	var stageErr error
	err = spinner.New().
		Title("Staging files...").
		Action(func() {
			stageErr = queue.AddSources(sources)
		}).
		Run()

	if err != nil || stageErr != nil {
		if stageErr == nil {
			stageErr = err
		}
		logger.Error("staging failed", zap.Error(stageErr))
		fmt.Println(errorStyle.Render("Error staging files: " + stageErr.Error()))
		queue.DrainAll()
		return askToContinue()
	}

	files := queue.Files()
	var totalSize int64
	for _, f := range files {
		totalSize += int64(len(f.Data))
	}
	infoBox := boxStyle.Render(fmt.Sprintf(
		"📄 Staged %d files\n📦 Total size: %s\n\nFirst: %s\nLast:  %s",
		len(files),
		stage.FormatSize(totalSize),
		files[0].Name,
		files[len(files)-1].Name,
	))
	fmt.Println(infoBox)

	// Step 2: Optional crop
	if !applyCropStep(queue) {
		queue.DrainAll()
		return askToContinue()
	}

	// Step 3: Model selection
	if !selectModel(store, cfg) {
		queue.DrainAll()
		return askToContinue()
	}

	// Step 4: Confirm and run
	summaryBox := boxStyle.Render(fmt.Sprintf(
		"📋 Run Summary\n\n"+
			"Files:       %d\n"+
			"Model:       %s\n"+
			"Temperature: %.1f",
		queue.Len(),
		cfg.Model,
		cfg.Temperature,
	))
	fmt.Println(summaryBox)

	var proceed bool
	confirmSelect := huh.NewConfirm().
		Title("Start transcription?").
		Affirmative("Yes, transcribe!").
		Negative("No, cancel").
		Value(&proceed)

	err = huh.NewForm(huh.NewGroup(confirmSelect)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()

	if err != nil || !proceed {
		fmt.Println(infoStyle.Render("Transcription cancelled."))
		queue.DrainAll()
		return askToContinue()
	}

	client, err := gemini.NewClient(cfg.ResolveAPIKey())
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		queue.DrainAll()
		return askToContinue()
	}

	results, err := tui.RunTranscriptionUI(client, queue, *cfg)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			logger.Warn("transcription failed",
				zap.String("file", r.FileName),
				zap.String("error", r.ErrMessage))
		}
	}
	if failed > 0 {
		fmt.Println(infoStyle.Render(fmt.Sprintf("%d of %d files failed; see results above.", failed, len(results))))
	}

	return askToContinue()
}

// selectSources asks for input paths and loads them. Returns (nil, true)
// on a recoverable failure, (nil, false) when the user aborted.
func selectSources() ([]stage.Source, bool) {
	var inputMethod string
	inputSelect := huh.NewSelect[string]().
		Title("How would you like to select timesheet scans?").
		Options(
			huh.NewOption("Select a folder containing scans", "folder"),
			huh.NewOption("Enter file paths or glob pattern", "pattern"),
		).
		Value(&inputMethod)

	err := huh.NewForm(huh.NewGroup(inputSelect)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()

	if err != nil {
		if err == huh.ErrUserAborted {
			return nil, false
		}
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return nil, true
	}

	var inputs []string
	if inputMethod == "folder" {
		var folderPath string
		startDir, _ := os.Getwd()

		folderPicker := huh.NewFilePicker().
			Title("Select a folder containing scans").
			Description("Navigate to the folder with your timesheet images or PDFs").
			CurrentDirectory(startDir).
			ShowHidden(false).
			ShowSize(true).
			DirAllowed(true).
			FileAllowed(false).
			Height(15).
			Value(&folderPath)

		err = huh.NewForm(huh.NewGroup(folderPicker)).
			WithTheme(huh.ThemeCatppuccin()).
			Run()

		if err != nil {
			if err == huh.ErrUserAborted {
				return nil, true
			}
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return nil, true
		}
		inputs = []string{folderPath}
	} else {
		var pattern string
		patternInput := huh.NewInput().
			Title("Enter file paths or glob pattern").
			Description("Examples:\n  • /path/to/scans/*.png\n  • ./timesheets/week_*.jpg\n  • report.pdf").
			Placeholder("./scans/*.png").
			Value(&pattern)

		err = huh.NewForm(huh.NewGroup(patternInput)).
			WithTheme(huh.ThemeCatppuccin()).
			Run()

		if err != nil {
			if err == huh.ErrUserAborted {
				return nil, true
			}
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return nil, true
		}
		inputs = []string{pattern}
	}

	var sources []stage.Source
	var loadErr error
	err = spinner.New().
		Title("Loading files...").
		Action(func() {
			sources, loadErr = stage.LoadSources(inputs)
		}).
		Run()

	if err != nil || loadErr != nil {
		if loadErr == nil {
			loadErr = err
		}
		fmt.Println(errorStyle.Render("Error loading files: " + loadErr.Error()))
		return nil, true
	}

	return sources, true
}

// askToContinue asks what to do next after a workflow cycle.
func askToContinue() bool {
	var choice string
	selectNext := huh.NewSelect[string]().
		Title("What next?").
		Options(
			huh.NewOption("Transcribe more timesheets", "another"),
			huh.NewOption("Edit settings", "settings"),
			huh.NewOption("Exit", "exit"),
		).
		Value(&choice)

	err := huh.NewForm(huh.NewGroup(selectNext)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()

	if err != nil {
		return false
	}

	switch choice {
	case "another":
		return true
	case "settings":
		runSettingsForm()
		return true
	default:
		return false
	}
}

func printHelp() {
	help := `
📋 SheetScribe - handwritten timesheets to Markdown, CSV, and Excel

USAGE:
    sheetscribe                 Interactive workflow
    sheetscribe run [OPTIONS] <files...>
    sheetscribe settings        Edit stored settings
    sheetscribe update          Update to the latest release
    sheetscribe -version        Print version information

Run 'sheetscribe run --help' for non-interactive options.

ENVIRONMENT:
    GEMINI_API_KEY          Your Google Gemini API key
    GOOGLE_API_KEY          Alternative API key variable
    SHEETSCRIBE_DEBUG       Write a debug log to ~/.sheetscribe/debug.log
`
	fmt.Println(help)
}

// applyCropStep optionally captures a crop template and applies it.
// Returns false when the user aborted the workflow.
func applyCropStep(queue *stage.Queue) bool {
	var wantCrop bool
	cropConfirm := huh.NewConfirm().
		Title("Crop the scans before transcription?").
		Description("A single crop region (in percent) is replayed across every file.").
		Affirmative("Yes, crop").
		Negative("No, use full pages").
		Value(&wantCrop)

	err := huh.NewForm(huh.NewGroup(cropConfirm)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()

	if err != nil {
		return err != huh.ErrUserAborted
	}
	if !wantCrop {
		return true
	}

	tpl, ok := captureTemplate()
	if !ok {
		return true
	}

	files := queue.Files()
	targets := make([]crop.Target, len(files))
	for i, f := range files {
		targets[i] = crop.Target{ID: f.ID, Name: f.Name, Data: f.Data}
	}

	var results map[string]*crop.Result
	var cropErr error
	err = spinner.New().
		Title("Cropping scans...").
		Action(func() {
			results, cropErr = tpl.ApplyAll(context.Background(), targets)
		}).
		Run()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return true
	}

	for id, res := range results {
		if err := queue.Replace(id, res.Name, res.MIME, res.Data); err != nil {
			logger.Warn("failed to apply crop result", zap.String("id", id), zap.Error(err))
		}
	}

	if cropErr != nil {
		fmt.Println(errorStyle.Render("Some files could not be cropped: " + cropErr.Error()))
		fmt.Println(infoStyle.Render("Uncropped files stay in the queue as-is."))
	} else {
		fmt.Println(successStyle.Render(fmt.Sprintf("✂️  Cropped %d files", len(results))))
	}
	return true
}

// captureTemplate collects the crop region and rotation from a form.
func captureTemplate() (crop.Template, bool) {
	var xStr, yStr, wStr, hStr string
	var rotation int

	percentField := func(title string, value *string, placeholder string) *huh.Input {
		return huh.NewInput().
			Title(title).
			Placeholder(placeholder).
			Validate(validatePercent).
			Value(value)
	}

	form := huh.NewForm(
		huh.NewGroup(
			percentField("Left edge (% of width)", &xStr, "0"),
			percentField("Top edge (% of height)", &yStr, "0"),
			percentField("Region width (%)", &wStr, "100"),
			percentField("Region height (%)", &hStr, "100"),
			huh.NewSelect[int]().
				Title("Rotation (clockwise)").
				Options(
					huh.NewOption("None", 0),
					huh.NewOption("90°", 90),
					huh.NewOption("180°", 180),
					huh.NewOption("270°", 270),
				).
				Value(&rotation),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return crop.Template{}, false
	}

	tpl := crop.Template{
		Region: crop.Region{
			X: parsePercent(xStr, 0),
			Y: parsePercent(yStr, 0),
			W: parsePercent(wStr, 100),
			H: parsePercent(hStr, 100),
		},
		Rotation: rotation,
	}

	if err := tpl.Validate(); err != nil {
		fmt.Println(errorStyle.Render("Invalid crop: " + err.Error()))
		return crop.Template{}, false
	}
	return tpl, true
}

// selectModel picks the model from history and persists the choice.
// modelChoices merges the stored model history with the known Gemini
// models, history first, deduplicated.
func modelChoices(history []string) []string {
	known := []string{gemini.ModelGemini25Flash, gemini.ModelGemini25Pro, gemini.ModelGemini20Flash}
	seen := make(map[string]bool, len(history)+len(known))
	choices := make([]string, 0, len(history)+len(known))
	for _, m := range append(append([]string(nil), history...), known...) {
		if seen[m] {
			continue
		}
		seen[m] = true
		choices = append(choices, m)
	}
	return choices
}

func selectModel(store settings.Store, cfg *settings.Settings) bool {
	choices := modelChoices(cfg.ModelHistory)
	options := make([]huh.Option[string], 0, len(choices)+1)
	for _, m := range choices {
		options = append(options, huh.NewOption(m, m))
	}
	options = append(options, huh.NewOption("Other (enter manually)", "__other__"))

	choice := cfg.Model
	modelSelect := huh.NewSelect[string]().
		Title("Select Gemini model").
		Options(options...).
		Value(&choice)

	err := huh.NewForm(huh.NewGroup(modelSelect)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		return err != huh.ErrUserAborted
	}

	if choice == "__other__" {
		var custom string
		err = huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Model identifier").
				Placeholder(settings.DefaultModel).
				Value(&custom),
		)).WithTheme(huh.ThemeCatppuccin()).Run()
		if err != nil || custom == "" {
			return err != huh.ErrUserAborted
		}
		choice = custom
	}

	cfg.Model = choice
	cfg.RememberModel(choice)
	if err := store.Save(*cfg); err != nil {
		logger.Warn("failed to persist settings", zap.Error(err))
	}
	return true
}
