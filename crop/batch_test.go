package crop

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTemplate_ApplyAll(t *testing.T) {
	src := testImage(t, 400, 200)
	tpl := Template{Region: Region{0, 0, 50, 50}, SourceID: "captured"}

	targets := []Target{
		{ID: "captured", Name: "first.png", Data: src},
		{ID: "b", Name: "second.png", Data: src},
		{ID: "c", Name: "third.png", Data: src},
	}

	results, err := tpl.ApplyAll(context.Background(), targets)
	if err != nil {
		t.Fatalf("ApplyAll() failed: %v", err)
	}

	if _, ok := results["captured"]; ok {
		t.Error("ApplyAll() must skip the template's source image")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["b"].Name != "second_cropped.png" {
		t.Errorf("results[b].Name = %q", results["b"].Name)
	}
}

func TestTemplate_ApplyAllCollectsFailures(t *testing.T) {
	good := testImage(t, 200, 100)
	tpl := Template{Region: Region{0, 0, 50, 50}}

	targets := []Target{
		{ID: "a", Name: "ok_1.png", Data: good},
		{ID: "b", Name: "bad_1.png", Data: []byte("garbage")},
		{ID: "c", Name: "ok_2.png", Data: good},
		{ID: "d", Name: "bad_2.png", Data: []byte("garbage")},
	}

	results, err := tpl.ApplyAll(context.Background(), targets)
	if err == nil {
		t.Fatal("ApplyAll() should report the failures")
	}

	// Successes are still returned alongside the aggregate error.
	if len(results) != 2 {
		t.Errorf("got %d results, want 2 successes", len(results))
	}
	if _, ok := results["a"]; !ok {
		t.Error("success a missing from results")
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error should be *BatchError, got %T", err)
	}
	if len(batchErr.Failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(batchErr.Failures))
	}
	msg := err.Error()
	if !strings.Contains(msg, "bad_1.png") || !strings.Contains(msg, "bad_2.png") {
		t.Errorf("aggregate error %q should name every failed file", msg)
	}
}

func TestTemplate_ApplyAllSingleFailureMessage(t *testing.T) {
	tpl := Template{Region: Region{0, 0, 50, 50}}
	targets := []Target{{ID: "a", Name: "only.png", Data: []byte("garbage")}}

	_, err := tpl.ApplyAll(context.Background(), targets)
	if err == nil {
		t.Fatal("ApplyAll() should fail")
	}
	if !strings.Contains(err.Error(), "only.png") {
		t.Errorf("error %q should name the file", err.Error())
	}
}

func TestTemplate_ApplyAllInvalidTemplate(t *testing.T) {
	tpl := Template{Region: Region{0, 0, 0, 0}}
	if _, err := tpl.ApplyAll(context.Background(), nil); err == nil {
		t.Error("ApplyAll() should reject an invalid template before touching targets")
	}
}

func TestTemplate_ApplyAllEmptyTargets(t *testing.T) {
	tpl := Template{Region: Region{0, 0, 100, 100}}
	results, err := tpl.ApplyAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ApplyAll() on no targets failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
