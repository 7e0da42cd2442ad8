package stage

import (
	"bytes"
	"image"
	"os"
	"testing"

	"github.com/disintegration/imaging"
)

func testImagePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, image.White.C)
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailStore_CreateAndRelease(t *testing.T) {
	store, err := NewThumbnailStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewThumbnailStore() failed: %v", err)
	}

	preview, err := store.Create(testImagePNG(t, 1200, 800))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err := os.Stat(preview.Path()); err != nil {
		t.Fatalf("preview file not written: %v", err)
	}

	img, err := imaging.Open(preview.Path())
	if err != nil {
		t.Fatalf("preview not a decodable image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > thumbnailEdge || bounds.Dy() > thumbnailEdge {
		t.Errorf("thumbnail %dx%d exceeds %d bounding box", bounds.Dx(), bounds.Dy(), thumbnailEdge)
	}

	if err := preview.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if _, err := os.Stat(preview.Path()); !os.IsNotExist(err) {
		t.Error("preview file should be removed on release")
	}
}

func TestThumbnailStore_CreateRejectsGarbage(t *testing.T) {
	store, err := NewThumbnailStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create([]byte("not an image")); err == nil {
		t.Error("Create() should reject undecodable bytes")
	}
}

func TestFilePreview_DoubleReleaseFails(t *testing.T) {
	store, err := NewThumbnailStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	preview, err := store.Create(testImagePNG(t, 64, 64))
	if err != nil {
		t.Fatal(err)
	}

	if err := preview.Release(); err != nil {
		t.Fatalf("first Release() failed: %v", err)
	}
	if err := preview.Release(); err == nil {
		t.Error("second Release() should fail")
	}
}
