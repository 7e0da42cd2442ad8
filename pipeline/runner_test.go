package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"sheetscribe/gemini"
	"sheetscribe/settings"
	"sheetscribe/stage"
)

type nopPreview struct {
	mu       sync.Mutex
	store    *nopPreviewStore
	released bool
}

func (p *nopPreview) Path() string { return "" }

func (p *nopPreview) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.New("already released")
	}
	p.released = true
	p.store.mu.Lock()
	p.store.released++
	p.store.mu.Unlock()
	return nil
}

type nopPreviewStore struct {
	mu       sync.Mutex
	created  int
	released int
}

func (s *nopPreviewStore) Create(data []byte) (stage.Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return &nopPreview{store: s}, nil
}

// fakeService records the order files were submitted in and answers from a
// script keyed by file content.
type fakeService struct {
	mu        sync.Mutex
	submitted []string
	inFlight  int
	overlap   bool
	respond   func(req *gemini.TranscribeRequest) (string, error)
}

func (s *fakeService) Transcribe(ctx context.Context, req *gemini.TranscribeRequest) (string, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	s.submitted = append(s.submitted, string(req.Data))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.respond != nil {
		return s.respond(req)
	}
	return "| A |\n|---|\n| 1 |", nil
}

func stagedQueue(t *testing.T, store *nopPreviewStore, names ...string) *stage.Queue {
	t.Helper()
	q := stage.NewQueue(store)
	for _, name := range names {
		if _, err := q.Add(name, "image/png", []byte(name)); err != nil {
			t.Fatal(err)
		}
	}
	return q
}

func testSettings() settings.Settings {
	cfg := settings.Defaults()
	cfg.APIKey = "test-key"
	return cfg
}

func TestRunner_SequentialInQueueOrder(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "b.png", "a.png", "c.png")
	svc := &fakeService{}

	results, err := NewRunner(svc).Run(context.Background(), q, testSettings())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	want := []string{"b.png", "a.png", "c.png"}
	for i, name := range want {
		if svc.submitted[i] != name {
			t.Errorf("submission %d = %s, want %s (queue order)", i, svc.submitted[i], name)
		}
		if results[i].FileName != name {
			t.Errorf("results[%d].FileName = %s, want %s", i, results[i].FileName, name)
		}
	}
	if svc.overlap {
		t.Error("transcriptions overlapped; pipeline must be strictly sequential")
	}
}

func TestRunner_FailureContinuesRun(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "ok_1.png", "bad.png", "ok_2.png")
	svc := &fakeService{
		respond: func(req *gemini.TranscribeRequest) (string, error) {
			if string(req.Data) == "bad.png" {
				return "", fmt.Errorf("quota exceeded")
			}
			return "| A |\n|---|", nil
		},
	}

	runner := NewRunner(svc)
	results, err := runner.Run(context.Background(), q, testSettings())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want one per staged file", len(results))
	}
	if !results[1].Failed() || results[1].ErrMessage != "quota exceeded" {
		t.Errorf("results[1] = %+v, want failure with error message", results[1])
	}
	if results[0].Failed() || results[2].Failed() {
		t.Error("failure of one file must not mark others failed")
	}
	if got := runner.Status().Completed; got != 3 {
		t.Errorf("Completed = %d, want 3 (failures still count)", got)
	}
}

func TestRunner_EmptyErrorGetsFallbackMessage(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "a.png")
	svc := &fakeService{
		respond: func(*gemini.TranscribeRequest) (string, error) {
			return "", errors.New("")
		},
	}

	results, err := NewRunner(svc).Run(context.Background(), q, testSettings())
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ErrMessage != failureFallback {
		t.Errorf("ErrMessage = %q, want fallback", results[0].ErrMessage)
	}
}

func TestRunner_Preconditions(t *testing.T) {
	store := &nopPreviewStore{}
	svc := &fakeService{}
	runner := NewRunner(svc)

	t.Run("empty queue", func(t *testing.T) {
		q := stage.NewQueue(store)
		_, err := runner.Run(context.Background(), q, testSettings())
		if !errors.Is(err, ErrEmptyQueue) {
			t.Errorf("err = %v, want ErrEmptyQueue", err)
		}
	})

	t.Run("missing credential", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		q := stagedQueue(t, store, "a.png")
		cfg := settings.Defaults()
		cfg.APIKey = ""

		_, err := runner.Run(context.Background(), q, cfg)
		if !errors.Is(err, ErrMissingCredential) {
			t.Errorf("err = %v, want ErrMissingCredential", err)
		}
		if len(svc.submitted) != 0 {
			t.Error("precondition failure must not submit anything")
		}
		if q.Len() != 1 {
			t.Error("precondition failure must not drain the queue")
		}
	})
}

func TestRunner_DrainsQueueAfterRun(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "a.png", "b.png")
	svc := &fakeService{
		respond: func(*gemini.TranscribeRequest) (string, error) {
			return "", errors.New("service down")
		},
	}

	if _, err := NewRunner(svc).Run(context.Background(), q, testSettings()); err != nil {
		t.Fatal(err)
	}

	if q.Len() != 0 {
		t.Error("queue must be drained even when every file failed")
	}
	if store.created != store.released {
		t.Errorf("previews created (%d) != released (%d)", store.created, store.released)
	}
}

func TestRunner_ProgressSnapshots(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "a.png", "b.png")
	svc := &fakeService{}
	runner := NewRunner(svc)

	var snapshots []Status
	runner.OnProgress = func(s Status) { snapshots = append(snapshots, s) }

	if _, err := runner.Run(context.Background(), q, testSettings()); err != nil {
		t.Fatal(err)
	}

	if len(snapshots) == 0 {
		t.Fatal("no progress snapshots observed")
	}

	first := snapshots[0]
	if !first.Running || first.Total != 2 || first.Completed != 0 {
		t.Errorf("first snapshot = %+v, want running with total 2", first)
	}

	last := snapshots[len(snapshots)-1]
	if last.Running {
		t.Error("final snapshot should not be running")
	}
	if last.Completed != 2 {
		t.Errorf("final Completed = %d, want 2", last.Completed)
	}

	// Completed never decreases and never exceeds Total.
	prev := 0
	for _, s := range snapshots {
		if s.Completed < prev || s.Completed > s.Total {
			t.Fatalf("inconsistent snapshot %+v", s)
		}
		prev = s.Completed
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", "| A |\n|---|", "| A |\n|---|"},
		{"bare fences", "```\n| A |\n|---|\n```", "| A |\n|---|"},
		{"markdown tag", "```markdown\n| A |\n|---|\n```", "| A |\n|---|"},
		{"md tag", "```md\n| A |\n```", "| A |"},
		{"surrounding whitespace", "  \n```\n| A |\n```\n\n", "| A |"},
		{"fence chars inside kept", "| a``` |\n|---|", "| a``` |\n|---|"},
		{"unknown tag kept", "```python\nprint()\n```", "```python\nprint()"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// End-to-end over the pipeline: two good files and one the service rejects.
func TestRunner_MixedBatch(t *testing.T) {
	store := &nopPreviewStore{}
	q := stagedQueue(t, store, "week_1.png", "week_2.png", "corrupt.png")
	svc := &fakeService{
		respond: func(req *gemini.TranscribeRequest) (string, error) {
			switch string(req.Data) {
			case "corrupt.png":
				return "", fmt.Errorf("invalid image payload")
			default:
				return "```markdown\n| Day | Hours |\n|-----|-------|\n| Mon | 8 |\n```", nil
			}
		},
	}
	runner := NewRunner(svc)

	results, err := runner.Run(context.Background(), q, testSettings())
	if err != nil {
		t.Fatal(err)
	}

	var ok, failed int
	for _, res := range results {
		if res.Failed() {
			failed++
			continue
		}
		ok++
		if res.Markdown != "| Day | Hours |\n|-----|-------|\n| Mon | 8 |" {
			t.Errorf("markdown not unfenced: %q", res.Markdown)
		}
	}
	if ok != 2 || failed != 1 {
		t.Errorf("got %d ok / %d failed, want 2/1", ok, failed)
	}
	if q.Len() != 0 {
		t.Error("queue should be empty after the run")
	}
	if got := runner.Status(); got.Completed != 3 || got.Running {
		t.Errorf("final status = %+v", got)
	}
}
