package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sheetscribe/crop"
	"sheetscribe/export"
	"sheetscribe/gemini"
	"sheetscribe/pipeline"
	"sheetscribe/settings"
	"sheetscribe/stage"

	"go.uber.org/zap"
)

// RunOptions holds the configuration for a non-interactive run.
type RunOptions struct {
	Inputs   []string
	Output   string
	Format   string
	Model    string
	Pages    string
	Crop     string
	Rotation int
}

// runNonInteractive stages the inputs, optionally crops, transcribes, and
// writes the export without any prompts.
func runNonInteractive(args []string) {
	opts := parseRunArgs(args)
	if len(opts.Inputs) == 0 {
		fmt.Println(errorStyle.Render("Error: no input files given"))
		printRunHelp()
		os.Exit(1)
	}

	store := settings.NewViperStore(settings.DefaultPath())
	cfg, err := store.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Error loading settings: " + err.Error()))
		cfg = settings.Defaults()
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}

	if cfg.ResolveAPIKey() == "" {
		fmt.Println(errorStyle.Render("Error: no Gemini API key configured"))
		fmt.Println(infoStyle.Render(gemini.GetAPIKeyHelp()))
		os.Exit(1)
	}

	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}

	// Load inputs
	fmt.Println(infoStyle.Render("Loading files..."))
	sources, err := loadRunSources(opts)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}

	previewDir, err := os.MkdirTemp("", "sheetscribe-previews-*")
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}
	defer os.RemoveAll(previewDir)

	previews, err := stage.NewThumbnailStore(previewDir)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}

	queue := stage.NewQueue(previews)
	if err := queue.AddSources(sources); err != nil {
		fmt.Println(errorStyle.Render("Error staging files: " + err.Error()))
		queue.DrainAll()
		os.Exit(1)
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("Staged %d files", queue.Len())))

	// Optional crop
	if opts.Crop != "" {
		if err := applyRunCrop(queue, opts); err != nil {
			fmt.Println(errorStyle.Render("Crop warning: " + err.Error()))
		}
	}

	// Transcribe
	client, err := gemini.NewClient(cfg.ResolveAPIKey())
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		queue.DrainAll()
		os.Exit(1)
	}

	runner := pipeline.NewRunner(client)
	runner.OnProgress = func(st pipeline.Status) {
		if st.Running && st.CurrentFile != "" {
			fmt.Println(infoStyle.Render(fmt.Sprintf("  [%d/%d] %s",
				st.Completed+1, st.Total, st.CurrentFile)))
		}
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("Transcribing %d files with %s...", queue.Len(), cfg.Model)))
	results, err := runner.Run(context.Background(), queue, cfg)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			logger.Warn("transcription failed",
				zap.String("file", r.FileName),
				zap.String("error", r.ErrMessage))
			fmt.Println(errorStyle.Render("  ✗ " + r.FileName + ": " + r.ErrMessage))
		} else {
			fmt.Println(successStyle.Render("  ✓ " + r.FileName))
		}
	}

	if failed == len(results) {
		fmt.Println(errorStyle.Render("All files failed; nothing to export."))
		os.Exit(1)
	}

	// Export
	payload, err := export.Export(results, format)
	if err != nil {
		fmt.Println(errorStyle.Render("Export failed: " + err.Error()))
		os.Exit(1)
	}

	outPath := opts.Output
	if outPath == "" {
		outPath = "./timesheets" + format.Extension()
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		fmt.Println(errorStyle.Render("Error writing " + outPath + ": " + err.Error()))
		os.Exit(1)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf(
		"\n✅ Done! %d of %d files transcribed, saved to %s (%s)",
		len(results)-failed,
		len(results),
		outPath,
		stage.FormatSize(int64(len(payload))),
	)))
}

// loadRunSources loads inputs, honoring a --pages selection for PDFs.
func loadRunSources(opts RunOptions) ([]stage.Source, error) {
	if opts.Pages == "" {
		return stage.LoadSources(opts.Inputs)
	}

	pages, err := stage.ParsePageRange(opts.Pages)
	if err != nil {
		return nil, err
	}

	var sources []stage.Source
	for _, input := range opts.Inputs {
		if strings.HasSuffix(strings.ToLower(input), ".pdf") {
			data, err := os.ReadFile(input)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", input, err)
			}
			pageSources, err := stage.RasterizePDF(input, data, pages)
			if err != nil {
				return nil, err
			}
			sources = append(sources, pageSources...)
			continue
		}

		loaded, err := stage.LoadSources([]string{input})
		if err != nil {
			return nil, err
		}
		sources = append(sources, loaded...)
	}
	return sources, nil
}

// applyRunCrop parses the --crop flag and replays it across the queue.
func applyRunCrop(queue *stage.Queue, opts RunOptions) error {
	region, err := parseCropSpec(opts.Crop)
	if err != nil {
		return err
	}

	tpl := crop.Template{Region: region, Rotation: opts.Rotation}
	if err := tpl.Validate(); err != nil {
		return err
	}

	files := queue.Files()
	targets := make([]crop.Target, len(files))
	for i, f := range files {
		targets[i] = crop.Target{ID: f.ID, Name: f.Name, Data: f.Data}
	}

	results, cropErr := tpl.ApplyAll(context.Background(), targets)
	for id, res := range results {
		if err := queue.Replace(id, res.Name, res.MIME, res.Data); err != nil {
			logger.Warn("failed to apply crop result", zap.String("id", id), zap.Error(err))
		}
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("Cropped %d files", len(results))))
	return cropErr
}

// parseCropSpec parses "x,y,w,h" percentages.
func parseCropSpec(spec string) (crop.Region, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return crop.Region{}, fmt.Errorf("crop must be x,y,w,h in percent, got %q", spec)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return crop.Region{}, fmt.Errorf("invalid crop value %q", part)
		}
		vals[i] = v
	}
	return crop.Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// validatePercent validates a form field holding a percentage.
func validatePercent(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}

// parsePercent parses a form field value, falling back to a default.
func parsePercent(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// printRunHelp prints help for the run command.
func printRunHelp() {
	help := `
📋 Non-interactive transcription

USAGE:
    sheetscribe run [OPTIONS] <files...>

ARGUMENTS:
    <files...>              Images, directories, glob patterns, or PDFs
                            Examples:
                              ./scans/*.png
                              /path/to/timesheets/
                              week1.jpg week2.jpg
                              report.pdf

OPTIONS:
    -o, --output <path>     Output file (default: ./timesheets.<ext>)
    -f, --format <name>     Export format: markdown, csv, xlsx (default: markdown)
    -m, --model <name>      Gemini model identifier
    --pages <range>         PDF pages to include, e.g. 1,3-5 (default: all)
    --crop <x,y,w,h>        Crop region in percent of each image
    --rotate <deg>          Rotation after crop: 0, 90, 180, 270

ENVIRONMENT:
    GEMINI_API_KEY          Your Google Gemini API key
    GOOGLE_API_KEY          Alternative API key variable

EXAMPLES:
    # Transcribe a folder of scans to CSV
    sheetscribe run -f csv -o ./may.csv ./scans/

    # Crop the top half of each page and export a workbook
    sheetscribe run --crop 0,0,100,50 -f xlsx ./scans/*.png

    # First three pages of a PDF
    sheetscribe run --pages 1-3 report.pdf
`
	fmt.Println(help)
}

// parseRunArgs parses run command arguments.
func parseRunArgs(args []string) RunOptions {
	opts := RunOptions{Format: "markdown"}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-o", "--output":
			if i+1 < len(args) {
				opts.Output = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-f", "--format":
			if i+1 < len(args) {
				opts.Format = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-m", "--model":
			if i+1 < len(args) {
				opts.Model = args[i+1]
				i += 2
			} else {
				i++
			}
		case "--pages":
			if i+1 < len(args) {
				opts.Pages = args[i+1]
				i += 2
			} else {
				i++
			}
		case "--crop":
			if i+1 < len(args) {
				opts.Crop = args[i+1]
				i += 2
			} else {
				i++
			}
		case "--rotate":
			if i+1 < len(args) {
				if deg, err := strconv.Atoi(args[i+1]); err == nil {
					opts.Rotation = deg
				}
				i += 2
			} else {
				i++
			}
		case "--help", "-h":
			printRunHelp()
			os.Exit(0)
		default:
			if !strings.HasPrefix(arg, "-") {
				opts.Inputs = append(opts.Inputs, arg)
			}
			i++
		}
	}

	return opts
}
