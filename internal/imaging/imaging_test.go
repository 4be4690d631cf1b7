package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/mdejong/klusjes/internal/apperr"
)

// noisyImage builds an image that compresses poorly, forcing the
// quality ladder to do real work
func noisyImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

// TestProcess_RejectsNonImageTypes tests content type validation
func TestProcess_RejectsNonImageTypes(t *testing.T) {
	for _, ct := range []string{"text/html", "application/pdf", "image/gif", ""} {
		_, err := Process(strings.NewReader("not an image"), ct)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Process(%q) = %v, want validation error", ct, err)
		}
	}
}

// TestProcess_RejectsCorruptInput tests that undecodable bytes fail cleanly
func TestProcess_RejectsCorruptInput(t *testing.T) {
	_, err := Process(strings.NewReader("definitely not a jpeg"), "image/jpeg")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Process(corrupt) = %v, want validation error", err)
	}
}

// TestProcess_BoundsDimensions tests the maximum edge constraint
func TestProcess_BoundsDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noisyImage(1600, 1200), nil); err != nil {
		t.Fatalf("failed to build test image: %v", err)
	}

	out, err := Process(&buf, "image/jpeg")
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output did not decode: %v", err)
	}

	b := decoded.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		t.Errorf("output dimensions %dx%d exceed %d", b.Dx(), b.Dy(), MaxDimension)
	}
	// Aspect ratio preserved: 1600x1200 scales to 800x600.
	if b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("output dimensions %dx%d, want 800x600", b.Dx(), b.Dy())
	}
}

// TestProcess_BoundsSize tests the encoded size ceiling
func TestProcess_BoundsSize(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, noisyImage(900, 900)); err != nil {
		t.Fatalf("failed to build test image: %v", err)
	}

	out, err := Process(&buf, "image/png")
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}
	if len(out) > MaxBytes {
		t.Errorf("output size %d exceeds ceiling %d", len(out), MaxBytes)
	}
}

// TestProcess_SmallImagePassthrough tests that small images are not upscaled
func TestProcess_SmallImagePassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, noisyImage(100, 80)); err != nil {
		t.Fatalf("failed to build test image: %v", err)
	}

	out, err := Process(&buf, "image/png")
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output did not decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("small image was rescaled to %dx%d", b.Dx(), b.Dy())
	}
}
