// Package pipeline runs the staged queue through the transcription service
// one file at a time, tracking progress and collecting per-file results.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"sheetscribe/gemini"
	"sheetscribe/settings"
	"sheetscribe/stage"
)

// Sentinel precondition errors. Both are checked before the queue or
// progress state is touched.
var (
	ErrEmptyQueue        = errors.New("no files staged for transcription")
	ErrMissingCredential = errors.New("no API key configured")
)

// failureFallback is recorded when a transcription error has no message.
const failureFallback = "transcription failed for an unknown reason"

// Service transcribes one image into markdown. The gemini client satisfies
// this; tests substitute their own.
type Service interface {
	Transcribe(ctx context.Context, req *gemini.TranscribeRequest) (string, error)
}

// Result is the outcome for one staged file. Exactly one Result exists per
// file that entered the run.
type Result struct {
	ID         string
	FileName   string
	Markdown   string
	ErrMessage string
}

// Failed reports whether this file's transcription failed.
func (r Result) Failed() bool {
	return r.ErrMessage != ""
}

// Status is a snapshot of run progress.
type Status struct {
	Running     bool
	Total       int
	Completed   int
	CurrentFile string
}

// Runner drives sequential transcription runs. Progress callbacks fire on
// every state change with a consistent snapshot.
type Runner struct {
	service Service

	mu     sync.Mutex
	status Status

	// OnProgress, if set, observes every status change. Called without the
	// lock held.
	OnProgress func(Status)
}

// NewRunner creates a runner backed by the given transcription service.
func NewRunner(service Service) *Runner {
	return &Runner{service: service}
}

// Status returns the current progress snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) setStatus(mutate func(*Status)) {
	r.mu.Lock()
	mutate(&r.status)
	snapshot := r.status
	cb := r.OnProgress
	r.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Run transcribes every staged file in queue order. Files are processed
// strictly one at a time; a failure is recorded as a Result and the run
// moves on. The queue is drained when the run ends, successful or not, and
// every file that entered the run has exactly one Result.
func (r *Runner) Run(ctx context.Context, queue *stage.Queue, cfg settings.Settings) ([]Result, error) {
	files := queue.Files()
	if len(files) == 0 {
		return nil, ErrEmptyQueue
	}
	if cfg.ResolveAPIKey() == "" {
		return nil, ErrMissingCredential
	}

	r.setStatus(func(s *Status) {
		*s = Status{Running: true, Total: len(files)}
	})

	defer queue.DrainAll()
	defer r.setStatus(func(s *Status) {
		s.Running = false
		s.CurrentFile = ""
	})

	results := make([]Result, 0, len(files))
	for _, f := range files {
		r.setStatus(func(s *Status) {
			s.CurrentFile = f.Name
		})

		results = append(results, r.transcribeOne(ctx, f, cfg))
	}

	return results, nil
}

// transcribeOne handles a single file. Completed is incremented in a defer
// so the count advances exactly once per file on every path.
func (r *Runner) transcribeOne(ctx context.Context, f *stage.File, cfg settings.Settings) Result {
	defer r.setStatus(func(s *Status) {
		s.Completed++
	})

	text, err := r.service.Transcribe(ctx, &gemini.TranscribeRequest{
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		MIMEType:     f.MIME,
		Data:         f.Data,
	})
	if err != nil {
		msg := err.Error()
		if strings.TrimSpace(msg) == "" {
			msg = failureFallback
		}
		return Result{ID: f.ID, FileName: f.Name, ErrMessage: msg}
	}

	return Result{ID: f.ID, FileName: f.Name, Markdown: stripFences(text)}
}

// stripFences removes a wrapping markdown code fence the model sometimes
// emits despite the system prompt, then trims surrounding whitespace.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if _, rest, ok := strings.Cut(text, "\n"); ok {
			first := strings.TrimSpace(text[:len(text)-len(rest)-1])
			tag := strings.TrimPrefix(first, "```")
			if tag == "" || strings.EqualFold(tag, "markdown") || strings.EqualFold(tag, "md") {
				text = rest
			}
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}

	return text
}
