package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/labelscan/internal/catalog"
	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/ocr"
	"github.com/safebite/labelscan/internal/persistence"
)

type stubEngine struct {
	text     string
	err      error
	gotLangs []string
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	e.gotLangs = in.Languages
	if e.err != nil {
		return ocr.Result{}, e.err
	}
	return ocr.Result{PlainText: e.text}, nil
}

func testConfig() config.Config {
	return config.Config{
		OCR:   config.OCRConfig{Languages: []string{"eng"}, Concurrency: 2},
		Match: config.MatchConfig{Threshold: 0.6},
	}
}

func newTestScanner(t *testing.T, engine ocr.Engine) (*Scanner, *persistence.SQLiteStore) {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(engine, catalog.Default(), store, testConfig()), store
}

func labelImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	return buf.Bytes()
}

func TestScanImage(t *testing.T) {
	engine := &stubEngine{text: "Ingredients: Milk solids, Sugar, Cocoa, Peanut oil"}
	scn, store := newTestScanner(t, engine)
	ctx := context.Background()

	result, err := scn.ScanImage(ctx, "alice", []string{"milk"}, labelImage(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"eng"}, engine.gotLangs)
	assert.Equal(t, engine.text, result.RawText)

	detected := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		detected = append(detected, m.Allergen)
	}
	assert.Contains(t, detected, "milk")
	assert.Contains(t, detected, "peanut")

	require.Len(t, result.Relevant, 1)
	assert.Equal(t, "milk", result.Relevant[0].Allergen)

	// Seeded harmful ingredient "sugar" costs 20 points.
	assert.Equal(t, 80, result.HealthScore)
	require.Len(t, result.HealthFindings, 1)
	assert.Equal(t, "sugar", result.HealthFindings[0].Ingredient)

	assert.Contains(t, result.SafeAlternatives["milk"], "Oat milk")
	assert.Contains(t, result.SafeAlternatives["peanut"], "Almond butter")
	assert.Contains(t, result.Message, "Milk / Dairy")
	assert.False(t, result.Advisory)

	// Scan lands in history.
	scans, err := store.ListScansByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Contains(t, scans[0].Detected, "milk")
}

func TestScanImage_BadImage(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{text: "whatever"})

	_, err := scn.ScanImage(context.Background(), "alice", nil, []byte("not an image"))
	assert.ErrorIs(t, err, ErrBadImage)
}

func TestScanImage_OCRFailure(t *testing.T) {
	scn, store := newTestScanner(t, &stubEngine{err: errors.New("tesseract exploded")})

	_, err := scn.ScanImage(context.Background(), "alice", nil, labelImage(t))
	assert.ErrorIs(t, err, ErrOCRFailed)

	// Failed scans leave no history.
	scans, listErr := store.ListScansByUser(context.Background(), "alice", 10)
	require.NoError(t, listErr)
	assert.Empty(t, scans)
}

func TestScanText_NoAllergens(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})

	result, err := scn.ScanText(context.Background(), "", "", "water, salt", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 100, result.HealthScore)
	assert.Equal(t, "No allergens detected.", result.Message)
}

func TestScanText_NotInProfile(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})

	result, err := scn.ScanText(context.Background(), "", "", "contains milk solids", []string{"peanut"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Matches)
	assert.Empty(t, result.Relevant)
	assert.Equal(t, "No allergens from your profile detected.", result.Message)
}

func TestScanText_Advisory(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})

	result, err := scn.ScanText(context.Background(), "", "", "contains milk. may contain nuts", []string{"milk"})
	require.NoError(t, err)
	assert.True(t, result.Advisory)
	assert.Contains(t, result.Message, "advisory")
}

func TestScanBarcode(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})
	ctx := context.Background()

	result, err := scn.ScanBarcode(ctx, "alice", "8901234567890", []string{"peanut"})
	require.NoError(t, err)
	assert.Equal(t, "Chocolate Bar", result.ProductName)
	require.Len(t, result.Relevant, 1)
	assert.Equal(t, "peanut", result.Relevant[0].Allergen)

	_, err = scn.ScanBarcode(ctx, "alice", "0000000000000", nil)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = scn.ScanBarcode(ctx, "alice", "8901111111111", nil)
	assert.ErrorIs(t, err, ErrNoIngredients)
}

func TestApply_ThresholdChange(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})
	ctx := context.Background()

	result, err := scn.ScanText(ctx, "", "", "m1lk powder", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Matches)

	require.NoError(t, scn.Apply(config.RuntimeSettings{
		MatchThreshold: 0.99,
		OCRLanguages:   []string{"eng"},
		RetentionCron:  "0 3 * * *",
		RetentionDays:  90,
	}))
	assert.Equal(t, 0.99, scn.Threshold())

	result, err = scn.ScanText(ctx, "", "", "m1lk powder", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestApply_RejectsInvalid(t *testing.T) {
	scn, _ := newTestScanner(t, &stubEngine{})
	err := scn.Apply(config.RuntimeSettings{MatchThreshold: 2})
	assert.Error(t, err)
	assert.Equal(t, 0.6, scn.Threshold())
}
