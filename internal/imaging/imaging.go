// Package imaging produces bounded-size derived images for uploaded photos.
//
// The transform is pure and stateless: decode, resize so the longest edge
// fits a maximum dimension, then re-encode as JPEG with decreasing quality
// until the result fits a fixed size ceiling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mdejong/klusjes/internal/apperr"
)

const (
	// MaxDimension bounds the longest edge of stored photos.
	MaxDimension = 800

	// MaxBytes is the size ceiling for the encoded result.
	MaxBytes = 100 * 1024

	startQuality = 85
	minQuality   = 10
	qualityStep  = 5
)

// allowedTypes lists the accepted upload content types. Everything is
// re-encoded to JPEG regardless of input format.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Allowed reports whether a content type is accepted for upload.
func Allowed(contentType string) bool {
	return allowedTypes[contentType]
}

// Process decodes an uploaded image, scales it down to MaxDimension, and
// re-encodes it as JPEG under MaxBytes. Returns a validation error for
// unsupported content types or undecodable input.
func Process(r io.Reader, contentType string) ([]byte, error) {
	if !Allowed(contentType) {
		return nil, apperr.Validationf("invalid file type %q, only JPEG, PNG and WebP allowed", contentType)
	}

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, apperr.Validationf("failed to decode image: %v", err)
	}

	src = resize(src)

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		if buf.Len() <= MaxBytes || quality <= minQuality {
			break
		}
		quality -= qualityStep
	}

	return buf.Bytes(), nil
}

// resize scales the image so its longest edge is at most MaxDimension,
// preserving aspect ratio. Images already within bounds pass through.
func resize(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= MaxDimension && h <= MaxDimension {
		return src
	}

	scale := float64(MaxDimension) / float64(w)
	if h > w {
		scale = float64(MaxDimension) / float64(h)
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
