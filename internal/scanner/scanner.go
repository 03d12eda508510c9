package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/sync/semaphore"

	"github.com/safebite/labelscan/internal/catalog"
	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/matcher"
	"github.com/safebite/labelscan/internal/ocr"
	"github.com/safebite/labelscan/internal/persistence"
	"github.com/safebite/labelscan/pkg/log"
)

// Scanner runs the scan pipeline: image preparation, OCR, allergen matching,
// personalization and enrichment. The catalog is immutable; runtime settings
// (threshold, OCR languages) can change between requests.
type Scanner struct {
	engine  ocr.Engine
	catalog *catalog.Catalog
	store   Store
	sem     *semaphore.Weighted
	dpi     int

	mu        sync.RWMutex
	threshold float64
	languages []string
}

func New(engine ocr.Engine, cat *catalog.Catalog, store Store, cfg config.Config) *Scanner {
	concurrency := cfg.OCR.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scanner{
		engine:    engine,
		catalog:   cat,
		store:     store,
		sem:       semaphore.NewWeighted(concurrency),
		dpi:       cfg.OCR.DPI,
		threshold: cfg.Match.Threshold,
		languages: cfg.OCR.Languages,
	}
}

// Apply updates the live-tunable settings.
func (s *Scanner) Apply(settings config.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.threshold = settings.MatchThreshold
	s.languages = settings.OCRLanguages
	s.mu.Unlock()
	return nil
}

// Threshold returns the current match threshold.
func (s *Scanner) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

func (s *Scanner) ocrLanguages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]string, len(s.languages))
	copy(ret, s.languages)
	return ret
}

// ScanImage runs OCR on an uploaded label photo and analyzes the extracted
// text against the catalog and the user's profile. OCR concurrency is
// bounded; waiting respects ctx.
func (s *Scanner) ScanImage(ctx context.Context, username string, profile []string, image []byte) (Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer s.sem.Release(1)

	prepared, err := ocr.Prepare(image)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	res, err := s.engine.Recognize(ctx, ocr.Input{
		Image:     prepared,
		Languages: s.ocrLanguages(),
		DPI:       s.dpi,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}

	return s.analyze(ctx, username, "", res.PlainText, profile)
}

// ScanText analyzes an already-extracted ingredient list.
func (s *Scanner) ScanText(ctx context.Context, username, productName, text string, profile []string) (Result, error) {
	return s.analyze(ctx, username, productName, text, profile)
}

// ScanBarcode looks up a product by barcode and analyzes its ingredient list.
func (s *Scanner) ScanBarcode(ctx context.Context, username, barcode string, profile []string) (Result, error) {
	product, found, err := s.store.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, ErrProductNotFound
	}
	if strings.TrimSpace(product.Ingredients) == "" {
		return Result{ProductName: product.Name}, fmt.Errorf("%w: %s", ErrNoIngredients, product.Name)
	}
	return s.analyze(ctx, username, product.Name, product.Ingredients, profile)
}

func (s *Scanner) analyze(ctx context.Context, username, productName, rawText string, profile []string) (Result, error) {
	matches := matcher.Match(rawText, s.catalog, s.Threshold())
	relevant := matcher.FilterByProfile(matches, profile)

	result := Result{
		ProductName:         productName,
		RawText:             rawText,
		Language:            detectLanguage(rawText),
		Matches:             matches,
		Relevant:            relevant,
		Advisory:            matcher.Advisory(rawText),
		HealthScore:         100,
		HealthFindings:      []HealthFinding{},
		PredictiveAllergens: []string{},
		SafeAlternatives:    map[string][]string{},
	}

	if s.store != nil {
		harmful, err := s.store.ListHarmfulIngredients(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("load harmful ingredients: %w", err)
		}
		result.HealthScore, result.HealthFindings = ComputeHealthScore(rawText, harmful)

		rules, err := s.store.ListPredictiveRules(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("load predictive rules: %w", err)
		}
		result.PredictiveAllergens = PredictAllergens(rawText, rules)

		for _, m := range matches {
			alts, err := s.store.ListSafeAlternatives(ctx, m.Allergen)
			if err != nil {
				return Result{}, fmt.Errorf("load safe alternatives: %w", err)
			}
			if len(alts) > 0 {
				result.SafeAlternatives[m.Allergen] = alts
			}
		}
	}

	result.Message = s.buildMessage(matches, relevant, result.Advisory)

	if s.store != nil && username != "" {
		detected := make([]string, 0, len(matches))
		for _, m := range matches {
			detected = append(detected, m.Allergen)
		}
		if err := s.store.SaveScan(ctx, persistence.ScanRecord{
			Username:    username,
			ProductName: productName,
			RawText:     rawText,
			Detected:    detected,
		}); err != nil {
			// History is best-effort; the scan result itself is still valid.
			log.Error("Failed to save scan history for %s: %v", username, err)
		}
	}

	return result, nil
}

func (s *Scanner) buildMessage(matches, relevant []matcher.AllergenMatch, advisory bool) string {
	if len(matches) == 0 {
		return "No allergens detected."
	}
	if len(relevant) == 0 {
		return "No allergens from your profile detected."
	}

	high := make([]string, 0, len(relevant))
	low := make([]string, 0, len(relevant))
	for _, m := range relevant {
		name := s.catalog.DisplayName(m.Allergen)
		if m.Severity == matcher.SeverityLow {
			low = append(low, name)
		} else {
			high = append(high, name)
		}
	}

	parts := make([]string, 0, 3)
	if len(high) > 0 {
		parts = append(parts, "Warning: contains "+strings.Join(high, ", "))
	}
	if len(low) > 0 {
		parts = append(parts, "Mentioned as free-from: "+strings.Join(low, ", "))
	}
	if advisory {
		parts = append(parts, "Label carries a may-contain advisory")
	}
	return strings.Join(parts, ". ") + "."
}

// detectLanguage classifies the OCR text; short or empty text is left
// unclassified.
func detectLanguage(text string) string {
	if len(strings.TrimSpace(text)) < 8 {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
