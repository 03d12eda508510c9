package matcher

import (
	"sort"
	"strings"

	"github.com/safebite/labelscan/internal/catalog"
)

// Match scans raw OCR text for the catalog's allergen aliases and returns one
// Match per allergen that has at least one hit scoring >= threshold.
//
// An alias fully contained in the normalized text scores 1.0. Otherwise the
// alias is compared against sliding token windows of its own length and the
// best normalized-edit-distance similarity wins, which tolerates OCR
// character substitutions ("m1lk" still matches "milk").
//
// The result is fully deterministic: hits are ordered by descending score
// with ties broken by term, matches by descending max score with ties broken
// by canonical name.
func Match(rawText string, cat *catalog.Catalog, threshold float64) []AllergenMatch {
	matches := make([]AllergenMatch, 0)
	if cat == nil {
		return matches
	}
	tokens := Tokens(rawText)
	if len(tokens) == 0 {
		return matches
	}
	text := strings.Join(tokens, " ")

	for _, entry := range cat.Entries() {
		hits := make([]Hit, 0, len(entry.Aliases))
		seen := make(map[string]bool, len(entry.Aliases))
		freeOnly := true
		for _, alias := range entry.Aliases {
			if seen[alias] {
				continue
			}
			seen[alias] = true

			aliasNorm := Normalize(alias)
			if aliasNorm == "" {
				continue
			}
			score := aliasScore(text, tokens, aliasNorm)
			if score < threshold {
				continue
			}
			hits = append(hits, Hit{Term: alias, Score: score})
			if score < 1.0 || !isFreeClaim(text, aliasNorm) {
				freeOnly = false
			}
		}
		if len(hits) == 0 {
			continue
		}

		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].Score != hits[j].Score {
				return hits[i].Score > hits[j].Score
			}
			return hits[i].Term < hits[j].Term
		})

		severity := SeverityHigh
		if freeOnly {
			severity = SeverityLow
		}
		matches = append(matches, AllergenMatch{
			Allergen:    entry.Name,
			DisplayName: entry.DisplayName,
			Hits:        hits,
			MaxScore:    hits[0].Score,
			Severity:    severity,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MaxScore != matches[j].MaxScore {
			return matches[i].MaxScore > matches[j].MaxScore
		}
		return matches[i].Allergen < matches[j].Allergen
	})
	return matches
}

// aliasScore computes the best similarity between a normalized alias and the
// normalized text. Containment short-circuits to 1.0 so a full alias never
// scores below a partial one.
func aliasScore(text string, tokens []string, alias string) float64 {
	if strings.Contains(text, alias) {
		return 1.0
	}

	width := len(strings.Fields(alias))
	if width == 0 || len(tokens) == 0 {
		return 0
	}
	if width > len(tokens) {
		return similarity(alias, strings.Join(tokens, " "))
	}

	best := 0.0
	for i := 0; i+width <= len(tokens); i++ {
		window := strings.Join(tokens[i:i+width], " ")
		if s := similarity(alias, window); s > best {
			best = s
		}
	}
	return best
}

// isFreeClaim reports whether every occurrence of alias in the normalized
// text is part of a free-from claim ("gluten free", "milk-free" after
// normalization).
func isFreeClaim(text, alias string) bool {
	total := strings.Count(text, alias)
	free := strings.Count(text, alias+" free")
	return total > 0 && total == free
}

// Advisory reports whether the label carries precautionary phrasing that can
// indicate cross-contamination risk.
func Advisory(rawText string) bool {
	text := Normalize(rawText)
	for _, phrase := range []string{"may contain", "produced in a facility", "traces of"} {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// FilterByProfile keeps only the matches whose canonical allergen name is in
// the user's profile, preserving order. Pure; the input slice is not
// modified.
func FilterByProfile(matches []AllergenMatch, profile []string) []AllergenMatch {
	inProfile := make(map[string]bool, len(profile))
	for _, name := range profile {
		inProfile[name] = true
	}
	ret := make([]AllergenMatch, 0, len(matches))
	for _, m := range matches {
		if inProfile[m.Allergen] {
			ret = append(ret, m)
		}
	}
	return ret
}
