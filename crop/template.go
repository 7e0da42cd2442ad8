// Package crop applies a captured crop-and-rotate template to staged
// images, either one at a time or fanned out across a batch.
package crop

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Region selects a rectangular portion of an image in percentages of its
// natural dimensions, so one template replays across images of different
// sizes.
type Region struct {
	X float64 // left edge, 0-100
	Y float64 // top edge, 0-100
	W float64 // width, 0-100
	H float64 // height, 0-100
}

// Validate checks that the region stays within the image.
func (r Region) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("crop region must have positive width and height")
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > 100 || r.Y+r.H > 100 {
		return fmt.Errorf("crop region %.1f,%.1f %.1fx%.1f exceeds image bounds", r.X, r.Y, r.W, r.H)
	}
	return nil
}

// Template is a reusable crop-and-rotate operation captured from one image.
// SourceID records which staged file it was captured from, so batch replay
// can skip it.
type Template struct {
	Region   Region
	Rotation int // clockwise degrees: 0, 90, 180, or 270
	SourceID string
}

// Validate checks the region and rotation.
func (t Template) Validate() error {
	if err := t.Region.Validate(); err != nil {
		return err
	}
	switch t.Rotation {
	case 0, 90, 180, 270:
		return nil
	default:
		return fmt.Errorf("rotation must be 0, 90, 180, or 270 degrees, got %d", t.Rotation)
	}
}

// Result is the cropped replacement for a staged file.
type Result struct {
	Name string
	MIME string
	Data []byte
}

// ImageProcessingError reports a file that could not be cropped, naming the
// file so batch failures stay attributable.
type ImageProcessingError struct {
	Name string
	Err  error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("failed to process image %s: %v", e.Name, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// Apply crops the image to the template region, rotates the cropped result,
// and re-encodes it as PNG so repeated transforms stay lossless. The result
// name carries a "_cropped" suffix.
func (t Template) Apply(name string, data []byte) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, &ImageProcessingError{Name: name, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageProcessingError{Name: name, Err: fmt.Errorf("failed to decode: %w", err)}
	}

	cropped := imaging.Crop(img, t.pixelRect(img.Bounds()))
	rotated := rotate(cropped, t.Rotation)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rotated, imaging.PNG); err != nil {
		return nil, &ImageProcessingError{Name: name, Err: fmt.Errorf("failed to encode: %w", err)}
	}

	return &Result{
		Name: croppedName(name),
		MIME: "image/png",
		Data: buf.Bytes(),
	}, nil
}

// pixelRect converts the percentage region into pixel coordinates against
// the image's own dimensions, clamped so rounding never escapes the bounds.
func (t Template) pixelRect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	x0 := bounds.Min.X + int(t.Region.X/100*w)
	y0 := bounds.Min.Y + int(t.Region.Y/100*h)
	x1 := bounds.Min.X + int((t.Region.X+t.Region.W)/100*w)
	y1 := bounds.Min.Y + int((t.Region.Y+t.Region.H)/100*h)

	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	return image.Rect(x0, y0, x1, y1)
}

// rotate turns the image clockwise. imaging's rotate functions are
// counter-clockwise, so 90 maps to Rotate270 and vice versa.
func rotate(img image.Image, degrees int) image.Image {
	switch degrees {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// croppedName inserts "_cropped" before the extension and forces .png to
// match the re-encoded bytes.
func croppedName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return base + "_cropped.png"
}
