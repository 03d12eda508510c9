package scanner

import (
	"context"
	"errors"

	"github.com/safebite/labelscan/internal/matcher"
	"github.com/safebite/labelscan/internal/persistence"
)

var (
	// ErrBadImage means the upload could not be decoded as an image.
	ErrBadImage = errors.New("unreadable image")
	// ErrOCRFailed means the OCR engine rejected the image.
	ErrOCRFailed = errors.New("text recognition failed")
	// ErrProductNotFound means the barcode is not in the product table.
	ErrProductNotFound = errors.New("product not found")
	// ErrNoIngredients means the product exists but carries no ingredient list.
	ErrNoIngredients = errors.New("product has no ingredient list")
)

// Store is the persistence surface the scanner needs.
type Store interface {
	SaveScan(ctx context.Context, rec persistence.ScanRecord) error
	ListHarmfulIngredients(ctx context.Context) ([]persistence.HarmfulIngredient, error)
	ListPredictiveRules(ctx context.Context) ([]persistence.PredictiveRule, error)
	ListSafeAlternatives(ctx context.Context, allergen string) ([]string, error)
	GetProductByBarcode(ctx context.Context, barcode string) (persistence.Product, bool, error)
}

// HealthFinding is one harmful ingredient found in the scanned text.
type HealthFinding struct {
	Ingredient string `json:"ingredient"`
	Weight     int    `json:"weight"`
}

// Result is the full outcome of analyzing one label text.
type Result struct {
	ProductName string `json:"product_name,omitempty"`
	RawText     string `json:"raw_text"`
	// Language is the ISO 639-1 code detected from the OCR text; empty when
	// the text is too short to classify.
	Language            string                  `json:"language,omitempty"`
	Matches             []matcher.AllergenMatch `json:"matches"`
	Relevant            []matcher.AllergenMatch `json:"relevant"`
	Advisory            bool                    `json:"advisory"`
	HealthScore         int                     `json:"health_score"`
	HealthFindings      []HealthFinding         `json:"health_findings"`
	PredictiveAllergens []string                `json:"predictive_allergens"`
	SafeAlternatives    map[string][]string     `json:"safe_alternatives"`
	Message             string                  `json:"message"`
}
