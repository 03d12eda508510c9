package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare_GrayscalePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 6), G: 40, B: 200, A: 255})
		}
	}

	out, err := Prepare(encodePNG(t, src))
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 20, decoded.Bounds().Dy())
}

func TestPrepare_DownscalesLargeImages(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2400, 1200))
	// Non-flat content so contrast stretch has a range to work with.
	for i := range src.Pix {
		src.Pix[i] = uint8(i % 251)
	}

	out, err := Prepare(encodePNG(t, src))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1200, decoded.Bounds().Dx())
	assert.Equal(t, 600, decoded.Bounds().Dy())
}

func TestPrepare_AcceptsJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	out, err := Prepare(buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPrepare_RejectsGarbage(t *testing.T) {
	_, err := Prepare([]byte("not an image"))
	assert.Error(t, err)
}

func TestStretchContrast(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix = []uint8{100, 150, 200}
	stretchContrast(img)
	assert.Equal(t, []uint8{0, 127, 255}, img.Pix)

	flat := image.NewGray(image.Rect(0, 0, 2, 1))
	flat.Pix = []uint8{42, 42}
	stretchContrast(flat)
	assert.Equal(t, []uint8{42, 42}, flat.Pix)
}
