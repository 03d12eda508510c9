package matcher

// DefaultThreshold is the minimum similarity score a hit needs to be kept.
// Calibrated so that single-character OCR misreads of short aliases
// ("m1lk" for "milk" scores 0.75) still surface.
const DefaultThreshold = 0.6

// Severity classifies how a matched allergen was mentioned on the label.
type Severity string

const (
	// SeverityHigh means the allergen term appears as an ingredient.
	SeverityHigh Severity = "high"
	// SeverityLow means the term only appears in a free-from claim
	// (e.g. "gluten free").
	SeverityLow Severity = "low"
)

// Hit is one alias term found in the scanned text.
type Hit struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// AllergenMatch groups the hits for one canonical allergen.
type AllergenMatch struct {
	Allergen    string   `json:"allergen"`
	DisplayName string   `json:"display_name"`
	Hits        []Hit    `json:"hits"`
	MaxScore    float64  `json:"max_score"`
	Severity    Severity `json:"severity"`
}
