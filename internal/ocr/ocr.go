package ocr

import "context"

// Input is a single image submitted for text recognition.
type Input struct {
	// Image is the encoded image payload (PNG or JPEG).
	Image []byte
	// Languages lists trained-data hints for the engine (e.g. "eng").
	Languages []string
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
	// Variables passes engine-specific knobs (e.g. "tessedit_pageseg_mode")
	// without hard-coding them into the API surface.
	Variables map[string]string
}

// Word is a single recognized token with its confidence.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result captures recognition output for one image.
type Result struct {
	// PlainText is the linearized text extracted from the image.
	PlainText string
	// Words carries per-token confidences where the engine provides them.
	Words []Word
	// Confidence is the mean word confidence in [0,1]; zero when unknown.
	Confidence float64
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}
