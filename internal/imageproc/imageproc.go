// Package imageproc decodes, normalizes and encodes produce images.
// JPEG, PNG, GIF, BMP and WebP inputs are accepted; output is always JPEG.
package imageproc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Normalization defaults.
const (
	MaxDimension   = 512
	DefaultQuality = 85
	HubQuality     = 90
)

// ErrEmptyImage is returned for zero-length input or a zero-area image.
var ErrEmptyImage = errors.New("empty image")

// Decode decodes an image in any registered format and returns the format
// name reported by the decoder.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

// DecodeFile reads and decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Verify checks that data holds a decodable, non-empty image.
func Verify(data []byte) error {
	_, _, err := Decode(data)
	return err
}

// Normalize converts img to opaque RGB and, when either side exceeds
// maxSide, shrinks it to fit inside a maxSide square keeping the aspect
// ratio. Smaller images keep their size.
func Normalize(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		w, h = fit(w, h, maxSide)
	}
	return Resize(img, w, h)
}

// fit scales w x h down so the longer side equals maxSide.
func fit(w, h, maxSide int) (int, int) {
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}

// Resize scales img to exactly w x h with Catmull-Rom resampling onto an
// opaque white canvas.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img as JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeBytes decodes data, normalizes it to MaxDimension and re-encodes
// it as JPEG at quality.
func NormalizeBytes(data []byte, quality int) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(Normalize(img, MaxDimension), quality)
}

// SaveJPEG writes img to path as JPEG, creating parent directories.
func SaveJPEG(path string, img image.Image, quality int) error {
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SHA256Hex returns the hex digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
