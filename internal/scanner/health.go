package scanner

import (
	"sort"
	"strings"

	"github.com/safebite/labelscan/internal/matcher"
	"github.com/safebite/labelscan/internal/persistence"
)

// ComputeHealthScore starts at 100 and subtracts the weight of every harmful
// ingredient found in the text, floored at zero. Matching runs over
// normalized text so punctuation and case do not hide an ingredient.
func ComputeHealthScore(text string, harmful []persistence.HarmfulIngredient) (int, []HealthFinding) {
	normalized := matcher.Normalize(text)
	score := 100
	findings := make([]HealthFinding, 0)
	if normalized == "" {
		return score, findings
	}

	for _, item := range harmful {
		needle := matcher.Normalize(item.Ingredient)
		if needle == "" || !strings.Contains(normalized, needle) {
			continue
		}
		score -= item.Weight
		findings = append(findings, HealthFinding{Ingredient: item.Ingredient, Weight: item.Weight})
	}
	if score < 0 {
		score = 0
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Weight != findings[j].Weight {
			return findings[i].Weight > findings[j].Weight
		}
		return findings[i].Ingredient < findings[j].Ingredient
	})
	return score, findings
}

// PredictAllergens returns the allergens whose trigger food items appear in
// the text, deduplicated and sorted.
func PredictAllergens(text string, rules []persistence.PredictiveRule) []string {
	normalized := matcher.Normalize(text)
	ret := make([]string, 0)
	if normalized == "" {
		return ret
	}

	seen := make(map[string]bool)
	for _, rule := range rules {
		needle := matcher.Normalize(rule.FoodItem)
		if needle == "" || seen[rule.Allergen] {
			continue
		}
		if strings.Contains(normalized, needle) {
			seen[rule.Allergen] = true
			ret = append(ret, rule.Allergen)
		}
	}
	sort.Strings(ret)
	return ret
}
