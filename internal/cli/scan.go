package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/ocr"
	"github.com/safebite/labelscan/internal/scanner"
)

var (
	scanProfile   []string
	scanLanguages []string
	scanThreshold float64
	scanTimeout   time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Scan a single label photo and print the result as JSON",
	Long: `Scan runs OCR on one image file and matches the extracted text against
the allergen catalog, without starting the web service or touching the
database.

Example:
  labelscan scan label.jpg
  labelscan scan label.jpg --allergen milk --allergen peanut
  labelscan scan label.jpg --lang eng --lang deu --threshold 0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringArrayVar(&scanProfile, "allergen", nil, "allergen to flag (repeatable; default: flag all)")
	scanCmd.Flags().StringArrayVar(&scanLanguages, "lang", []string{"eng"}, "Tesseract language hint (repeatable)")
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0.6, "minimum fuzzy-match score in (0,1]")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", time.Minute, "overall scan timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	cat, err := loadCatalog(os.Getenv("CATALOG_FILE"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for _, name := range scanProfile {
		if !cat.Contains(name) {
			return fmt.Errorf("unknown allergen: %s", name)
		}
	}
	if len(scanProfile) == 0 {
		scanProfile = cat.Names()
	}

	cfg := config.Config{
		OCR:   config.OCRConfig{Languages: scanLanguages, Concurrency: 1},
		Match: config.MatchConfig{Threshold: scanThreshold},
	}
	// No store: one-shot scans skip history, health scoring and alternatives.
	scn := scanner.New(ocr.NewTesseractEngine(), cat, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning %s (languages: %v, threshold: %.2f)\n", imagePath, scanLanguages, scanThreshold)
	}

	result, err := scn.ScanImage(ctx, "", scanProfile, data)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
