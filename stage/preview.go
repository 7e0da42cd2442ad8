package stage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// thumbnailEdge is the bounding box for generated preview images.
const thumbnailEdge = 256

// Preview is a display-only handle derived from a staged file's bytes. It
// must be released exactly once: when the entry is replaced, removed, or the
// queue is drained.
type Preview interface {
	// Path locates the preview artifact for display.
	Path() string
	// Release frees the artifact. Releasing twice is an error.
	Release() error
}

// PreviewStore derives preview handles from raw image bytes.
type PreviewStore interface {
	Create(data []byte) (Preview, error)
}

// ThumbnailStore writes downscaled PNG thumbnails into a directory.
type ThumbnailStore struct {
	dir string
}

// NewThumbnailStore creates the store, making the directory if needed.
func NewThumbnailStore(dir string) (*ThumbnailStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &ThumbnailStore{dir: dir}, nil
}

// Create decodes the image, fits it into the thumbnail box, and writes it
// out as a PNG preview file.
func (s *ThumbnailStore) Create(data []byte) (Preview, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailEdge, thumbnailEdge, imaging.Lanczos)
	path := filepath.Join(s.dir, uuid.NewString()+".png")
	if err := imaging.Save(thumb, path); err != nil {
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}

	return &filePreview{path: path}, nil
}

// filePreview is a preview backed by a file on disk.
type filePreview struct {
	mu       sync.Mutex
	path     string
	released bool
}

func (p *filePreview) Path() string {
	return p.path
}

func (p *filePreview) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return fmt.Errorf("preview %s already released", p.path)
	}
	p.released = true

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
