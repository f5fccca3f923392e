package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidPNG returns a PNG-encoded w x h image of one color.
func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, format, err := Decode(solidPNG(t, 4, 3, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	assert.NoError(t, Verify(solidPNG(t, 2, 2, color.White)))
	assert.Error(t, Verify([]byte{0x89, 'P', 'N', 'G'}))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape shrinks", 1024, 512, 512, 256},
		{"portrait shrinks", 300, 900, 170, 512},
		{"small kept", 100, 80, 100, 80},
		{"exact kept", 512, 512, 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Normalize(src, MaxDimension)
			assert.Equal(t, tt.wantW, got.Bounds().Dx())
			assert.Equal(t, tt.wantH, got.Bounds().Dy())
		})
	}
}

func TestNormalize_FlattensAlphaOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	got := Normalize(src, MaxDimension)
	r, g, b, a := got.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	got := Resize(src, 32, 32)
	assert.Equal(t, image.Rect(0, 0, 32, 32), got.Bounds())
}

func TestNormalizeBytes_ProducesJPEG(t *testing.T) {
	out, err := NormalizeBytes(solidPNG(t, 800, 600, color.RGBA{G: 180, A: 255}), DefaultQuality)
	require.NoError(t, err)

	img, format, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 384, img.Bounds().Dy())
}

func TestSaveJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "apple", "x.jpg")
	require.NoError(t, SaveJPEG(path, image.NewRGBA(image.Rect(0, 0, 8, 8)), HubQuality))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, Verify(data))
}

func TestDataURL_RoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 250}
	url := DataURL(MIMEJPEG, payload)
	assert.Equal(t, "data:image/jpeg;base64,AQID+g==", url)

	mime, data, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, mime)
	assert.Equal(t, payload, data)
}

func TestParseDataURL_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"http://example.com/a.jpg",
		"data:image/png,plain",
		"data:;base64,AAAA",
		"data:image/png;base64,!!!",
	} {
		_, _, err := ParseDataURL(s)
		assert.ErrorIs(t, err, ErrInvalidDataURL, s)
	}
}

func TestPlaceholderDecodes(t *testing.T) {
	mime, data, err := ParseDataURL(PlaceholderDataURL)
	require.NoError(t, err)
	assert.Equal(t, MIMEPNG, mime)

	img, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.True(t, IsPlaceholder(PlaceholderDataURL))
}

func TestJPEGDataURL(t *testing.T) {
	url, err := JPEGDataURL(solidPNG(t, 10, 10, color.Black), DefaultQuality)
	require.NoError(t, err)
	mime, _, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, mime)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(nil))
}
