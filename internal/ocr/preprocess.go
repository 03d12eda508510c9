package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// maxDimension bounds the longer edge of a prepared image. Label photos from
// phone cameras are far larger than Tesseract needs.
const maxDimension = 1200

// Prepare converts an uploaded label photo into an OCR-friendly PNG:
// grayscale, downscaled to fit maxDimension while preserving aspect ratio,
// with a linear contrast stretch.
func Prepare(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGray(src)
	gray = resizeToFit(gray, maxDimension)
	stretchContrast(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return gray
}

func resizeToFit(src *image.Gray, max int) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= max && h <= max {
		return src
	}

	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// stretchContrast rescales pixel values so the darkest pixel maps to 0 and
// the brightest to 255, in place. Flat images are left untouched.
func stretchContrast(img *image.Gray) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range img.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return
	}
	span := float64(hi - lo)
	for i, v := range img.Pix {
		img.Pix[i] = uint8(float64(v-lo) / span * 255.0)
	}
}
