package imageproc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MIME types used in data URLs.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// PlaceholderDataURL is a 1x1 PNG used for synthetic samples.
const PlaceholderDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// ErrInvalidDataURL is returned when a string is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data URL")

// DataURL encodes data as a base64 data URL with the given MIME type.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// JPEGDataURL normalizes raw image bytes and returns them as a JPEG data URL.
func JPEGDataURL(data []byte, quality int) (string, error) {
	out, err := NormalizeBytes(data, quality)
	if err != nil {
		return "", err
	}
	return DataURL(MIMEJPEG, out), nil
}

// IsPlaceholder reports whether url is the synthetic placeholder image.
func IsPlaceholder(url string) bool {
	return url == PlaceholderDataURL
}
