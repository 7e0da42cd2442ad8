// Package stage manages the ordered queue of files waiting for
// transcription, including preview-handle lifecycle and file intake from
// disk paths, directories, glob patterns, and PDF pages.
package stage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// File is one staged entry. Data is owned exclusively by the entry; the
// preview is released whenever the entry is replaced, removed, or drained.
type File struct {
	ID      string
	Name    string
	MIME    string
	Data    []byte
	Preview Preview
}

// Queue is an ordered collection of staged files. Every mutation swaps in a
// new snapshot under the lock, so readers never observe a torn state.
type Queue struct {
	mu       sync.Mutex
	previews PreviewStore
	files    []*File
}

// NewQueue creates an empty queue backed by the given preview store.
func NewQueue(previews PreviewStore) *Queue {
	return &Queue{previews: previews}
}

// Add stages one file, assigning a fresh unique ID and appending in input
// order. Files with identical content are staged as separate entries.
func (q *Queue) Add(name, mime string, data []byte) (*File, error) {
	preview, err := q.previews.Create(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview for %s: %w", name, err)
	}

	f := &File{
		ID:      newID(name),
		Name:    name,
		MIME:    mime,
		Data:    data,
		Preview: preview,
	}

	q.mu.Lock()
	q.files = append(append([]*File(nil), q.files...), f)
	q.mu.Unlock()

	return f, nil
}

// AddSources stages a batch of loaded sources in order.
func (q *Queue) AddSources(sources []Source) error {
	for _, src := range sources {
		if _, err := q.Add(src.Name, src.MIME, src.Data); err != nil {
			return err
		}
	}
	return nil
}

// Remove releases the entry's preview and removes it, preserving the order
// of the remaining entries. Removing an absent ID is a no-op.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := make([]*File, 0, len(q.files))
	for _, f := range q.files {
		if f.ID == id {
			_ = f.Preview.Release()
			continue
		}
		next = append(next, f)
	}
	q.files = next
}

// Replace swaps an entry's content in place: the old preview is released, a
// new one is derived from the new bytes, and the ID is preserved.
func (q *Queue) Replace(id, name, mime string, data []byte) error {
	preview, err := q.previews.Create(data)
	if err != nil {
		return fmt.Errorf("failed to create preview for %s: %w", name, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, f := range q.files {
		if f.ID != id {
			continue
		}
		_ = f.Preview.Release()

		next := append([]*File(nil), q.files...)
		next[i] = &File{ID: id, Name: name, MIME: mime, Data: data, Preview: preview}
		q.files = next
		return nil
	}

	_ = preview.Release()
	return fmt.Errorf("no staged file with id %s", id)
}

// DrainAll releases every preview and empties the queue.
func (q *Queue) DrainAll() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, f := range q.files {
		_ = f.Preview.Release()
	}
	q.files = nil
}

// Files returns a snapshot of the current entries in order.
func (q *Queue) Files() []*File {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*File(nil), q.files...)
}

// Get returns the entry with the given ID, or nil.
func (q *Queue) Get(id string) *File {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, f := range q.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Len returns the number of staged entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

// newID builds an entry ID from the file name, staging time, and a random
// salt. IDs are never reused.
func newID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, base)
	if base == "" {
		base = "file"
	}

	salt := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%d-%s", base, time.Now().UnixNano(), salt)
}
