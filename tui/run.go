package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"sheetscribe/export"
	"sheetscribe/pipeline"
	"sheetscribe/settings"
	"sheetscribe/stage"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunStep represents the current step of the transcription run UI.
type RunStep int

const (
	RStepTranscribing RunStep = iota
	RStepResults
	RStepExportFormat
	RStepExportPath
	RStepSaving
	RStepComplete
	RStepError
)

// RunModel is the Bubble Tea model that drives a transcription run from
// "file 1 of N" through results review and export.
type RunModel struct {
	step RunStep

	// UI components
	spinner   spinner.Model
	progress  progress.Model
	textInput textinput.Model

	// Pipeline wiring
	runner   *pipeline.Runner
	queue    *stage.Queue
	cfg      settings.Settings
	statusCh chan pipeline.Status

	// Run state
	status    pipeline.Status
	results   []pipeline.Result
	startTime time.Time

	// Results screen state
	cursor   int
	expanded map[int]bool

	// Export state
	formatIndex int
	format      export.Format
	outPath     string
	payloadSize int

	errorMessage string

	width    int
	height   int
	quitting bool
}

// statusMsg carries a pipeline progress snapshot.
type statusMsg pipeline.Status

// runDoneMsg is sent when the pipeline run finishes.
type runDoneMsg struct {
	results []pipeline.Result
	err     error
}

// savedMsg is sent when the export payload has been written.
type savedMsg struct {
	path string
	size int
	err  error
}

var formatOptions = []struct {
	name   string
	format export.Format
	desc   string
}{
	{"Markdown", export.FormatMarkdown, "One document, headings per file"},
	{"CSV", export.FormatCSV, "Parsed table rows, quoted cells"},
	{"Excel workbook", export.FormatXLSX, "One sheet per file"},
}

// NewRunModel creates a run model over the staged queue.
func NewRunModel(service pipeline.Service, queue *stage.Queue, cfg settings.Settings) RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	statusCh := make(chan pipeline.Status, 64)
	runner := pipeline.NewRunner(service)
	runner.OnProgress = func(st pipeline.Status) {
		select {
		case statusCh <- st:
		default:
		}
	}

	return RunModel{
		step:      RStepTranscribing,
		spinner:   s,
		progress:  p,
		textInput: ti,
		runner:    runner,
		queue:     queue,
		cfg:       cfg,
		statusCh:  statusCh,
		expanded:  make(map[int]bool),
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init starts the pipeline run.
func (m RunModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startRun(),
		m.waitForStatus(),
	)
}

// startRun executes the pipeline in the background. The status channel is
// closed once the run returns so the relay command can wind down.
func (m RunModel) startRun() tea.Cmd {
	return func() tea.Msg {
		results, err := m.runner.Run(context.Background(), m.queue, m.cfg)
		close(m.statusCh)
		return runDoneMsg{results: results, err: err}
	}
}

// waitForStatus relays the next pipeline progress snapshot.
func (m RunModel) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.statusCh
		if !ok {
			return nil
		}
		return statusMsg(st)
	}
}

// saveExport writes the selected format to the chosen path.
func (m RunModel) saveExport() tea.Cmd {
	return func() tea.Msg {
		payload, err := export.Export(m.results, m.format)
		if err != nil {
			return savedMsg{err: err}
		}
		if err := os.WriteFile(m.outPath, payload, 0o644); err != nil {
			return savedMsg{err: fmt.Errorf("failed to write %s: %w", m.outPath, err)}
		}
		return savedMsg{path: m.outPath, size: len(payload)}
	}
}

// Update handles messages.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = m.width - 20
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.step != RStepTranscribing {
			m.quitting = true
			return m, tea.Quit
		}
		return m.handleStepInput(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case statusMsg:
		m.status = pipeline.Status(msg)
		cmds := []tea.Cmd{m.waitForStatus()}
		if m.status.Total > 0 {
			pct := float64(m.status.Completed) / float64(m.status.Total)
			cmds = append(cmds, m.progress.SetPercent(pct))
		}
		return m, tea.Batch(cmds...)

	case runDoneMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.step = RStepError
			return m, nil
		}
		m.results = msg.results
		m.step = RStepResults
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.step = RStepError
			return m, nil
		}
		m.outPath = msg.path
		m.payloadSize = msg.size
		m.step = RStepComplete
		return m, nil
	}

	if m.step == RStepExportPath {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleStepInput handles keyboard input for specific steps.
func (m RunModel) handleStepInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case RStepResults:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
		case " ":
			m.expanded[m.cursor] = !m.expanded[m.cursor]
		case "e", "enter":
			if m.successCount() == 0 {
				m.quitting = true
				return m, tea.Quit
			}
			m.step = RStepExportFormat
		case "q":
			m.quitting = true
			return m, tea.Quit
		}

	case RStepExportFormat:
		switch msg.String() {
		case "up", "k":
			if m.formatIndex > 0 {
				m.formatIndex--
			}
		case "down", "j":
			if m.formatIndex < len(formatOptions)-1 {
				m.formatIndex++
			}
		case "enter":
			m.format = formatOptions[m.formatIndex].format
			m.step = RStepExportPath
			m.textInput.SetValue("./timesheets" + m.format.Extension())
			m.textInput.Focus()
			return m, textinput.Blink
		case "esc":
			m.step = RStepResults
		}

	case RStepExportPath:
		switch msg.String() {
		case "enter":
			path := strings.TrimSpace(m.textInput.Value())
			if path != "" {
				m.outPath = path
				m.step = RStepSaving
				return m, m.saveExport()
			}
		case "esc":
			m.step = RStepExportFormat
		default:
			var cmd tea.Cmd
			m.textInput, cmd = m.textInput.Update(msg)
			return m, cmd
		}

	case RStepComplete:
		switch msg.String() {
		case "enter", "q":
			return m, tea.Quit
		}

	case RStepError:
		switch msg.String() {
		case "enter", "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m RunModel) successCount() int {
	n := 0
	for _, r := range m.results {
		if !r.Failed() {
			n++
		}
	}
	return n
}

// View renders the UI.
func (m RunModel) View() string {
	if m.quitting {
		return MutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder
	b.WriteString(Header())
	b.WriteString("\n")

	switch m.step {
	case RStepTranscribing:
		b.WriteString(m.renderTranscribing())
	case RStepResults:
		b.WriteString(m.renderResults())
	case RStepExportFormat:
		b.WriteString(m.renderFormatSelection())
	case RStepExportPath:
		b.WriteString(m.renderPathInput())
	case RStepSaving:
		b.WriteString(BoxStyle.Render(m.spinner.View() + " " + BodyStyle.Render("Writing export...")))
	case RStepComplete:
		b.WriteString(m.renderComplete())
	case RStepError:
		b.WriteString(m.renderError())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m RunModel) renderTranscribing() string {
	title := TitleStyle.Render("Transcribing timesheets...")

	current := m.status.CurrentFile
	if current == "" {
		current = "starting up"
	}
	position := m.status.Completed + 1
	if position > m.status.Total {
		position = m.status.Total
	}
	status := BodyStyle.Render(fmt.Sprintf("File %d of %d: %s", position, m.status.Total, current))

	elapsed := MutedStyle.Render(fmt.Sprintf("Elapsed: %s", formatDuration(time.Since(m.startTime))))

	return BoxStyle.Render(
		title + "\n\n" +
			m.spinner.View() + " " + status + "\n\n" +
			m.progress.View() + "\n" +
			elapsed,
	)
}

func (m RunModel) renderResults() string {
	title := TitleStyle.Render(fmt.Sprintf("Results: %d transcribed, %d failed",
		m.successCount(), len(m.results)-m.successCount()))
	hint := MutedStyle.Render("Space to expand, e to export, q to quit")

	var items strings.Builder
	for i, r := range m.results {
		cursor := "  "
		style := BodyStyle
		if i == m.cursor {
			cursor = "> "
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		}

		marker := SuccessStyle.Render("[ok]")
		if r.Failed() {
			marker = ErrorStyle.Render("[ x]")
		}

		items.WriteString(style.Render(cursor+r.FileName) + " " + marker + "\n")

		if m.expanded[i] {
			detail := r.Markdown
			if r.Failed() {
				detail = r.ErrMessage
			}
			for _, line := range previewLines(detail, 6) {
				items.WriteString(MutedStyle.Render("      "+line) + "\n")
			}
		}
	}

	return BoxStyle.Render(title + "\n" + hint + "\n\n" + items.String())
}

func (m RunModel) renderFormatSelection() string {
	title := TitleStyle.Render("Export format")

	var items strings.Builder
	for i, opt := range formatOptions {
		cursor := "  "
		style := BodyStyle
		if i == m.formatIndex {
			cursor = "> "
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		}
		items.WriteString(style.Render(cursor+opt.name) +
			MutedStyle.Render(" - "+opt.desc) + "\n")
	}

	return BoxStyle.Render(title + "\n\n" + items.String())
}

func (m RunModel) renderPathInput() string {
	title := TitleStyle.Render("Output file")
	desc := MutedStyle.Render("Where to save the export")

	return BoxStyle.Render(title + "\n" + desc + "\n\n" + m.textInput.View())
}

func (m RunModel) renderComplete() string {
	body := fmt.Sprintf(
		"Saved to: %s\nSize: %s",
		m.outPath,
		stage.FormatSize(int64(m.payloadSize)),
	)
	return SuccessStyle.Render(BoxStyle.Render(TitleStyle.Render("Export complete!") + "\n\n" + body))
}

func (m RunModel) renderError() string {
	return BoxStyle.Render(
		ErrorStyle.Render("Error") + "\n\n" + BodyStyle.Render(m.errorMessage),
	)
}

func (m RunModel) renderHelp() string {
	var help string
	switch m.step {
	case RStepTranscribing:
		help = "transcription runs to completion once started"
	case RStepResults:
		help = "up/down: navigate - space: expand - e: export - q: quit"
	case RStepExportFormat:
		help = "up/down: navigate - enter: select - esc: back"
	case RStepExportPath:
		help = "enter: save - esc: back"
	case RStepComplete, RStepError:
		help = "enter: close"
	}
	return MutedStyle.Render(help)
}

// previewLines returns up to n lines of text, marking truncation.
func previewLines(text string, n int) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= n {
		return lines
	}
	out := append([]string(nil), lines[:n]...)
	return append(out, fmt.Sprintf("... (%d more lines)", len(lines)-n))
}

// formatDuration renders an elapsed duration compactly.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// RunTranscriptionUI runs the transcription UI over the staged queue and
// returns the results for any further processing.
func RunTranscriptionUI(service pipeline.Service, queue *stage.Queue, cfg settings.Settings) ([]pipeline.Result, error) {
	model := NewRunModel(service, queue, cfg)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("UI error: %w", err)
	}

	if m, ok := final.(RunModel); ok {
		if m.errorMessage != "" {
			return m.results, fmt.Errorf("%s", m.errorMessage)
		}
		return m.results, nil
	}
	return nil, nil
}
