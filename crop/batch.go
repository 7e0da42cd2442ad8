package crop

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds the number of images cropped in parallel.
const batchConcurrency = 4

// Target is one image submitted to a batch crop.
type Target struct {
	ID   string
	Name string
	Data []byte
}

// BatchError aggregates every failure from a batch crop. Cropping continues
// past individual failures so all successes are still applied.
type BatchError struct {
	Failures []*ImageProcessingError
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Name
	}
	return fmt.Sprintf("failed to process %d images: %s", len(e.Failures), strings.Join(names, ", "))
}

// ApplyAll replays the template across every target concurrently, skipping
// the template's own source image. It returns the successful results keyed
// by target ID; a non-nil *BatchError collects every failure without
// discarding the successes.
func (t Template) ApplyAll(ctx context.Context, targets []Target) (map[string]*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]*Result)
	var failures []*ImageProcessingError

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for _, target := range targets {
		if target.ID == t.SourceID {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := t.Apply(target.Name, target.Data)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if procErr, ok := err.(*ImageProcessingError); ok {
					failures = append(failures, procErr)
				} else {
					failures = append(failures, &ImageProcessingError{Name: target.Name, Err: err})
				}
				return nil
			}
			results[target.ID] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool {
			return failures[i].Name < failures[j].Name
		})
		return results, &BatchError{Failures: failures}
	}
	return results, nil
}
