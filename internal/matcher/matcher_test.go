package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/labelscan/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Entry{
		{Name: "peanut", Aliases: []string{"peanut", "arachis"}},
		{Name: "milk", Aliases: []string{"milk", "lactose"}},
	})
	require.NoError(t, err)
	return cat
}

func TestMatch_ExactAliasScoresOne(t *testing.T) {
	cat := testCatalog(t)

	matches := Match("contains arachis oil and milk solids", cat, DefaultThreshold)
	require.Len(t, matches, 2)

	// Both score 1.0, so ties break alphabetically by canonical name.
	assert.Equal(t, "milk", matches[0].Allergen)
	assert.Equal(t, "peanut", matches[1].Allergen)
	assert.Equal(t, 1.0, matches[0].MaxScore)
	assert.Equal(t, 1.0, matches[1].MaxScore)

	require.NotEmpty(t, matches[1].Hits)
	assert.Equal(t, "arachis", matches[1].Hits[0].Term)
	assert.Equal(t, 1.0, matches[1].Hits[0].Score)
	assert.Equal(t, SeverityHigh, matches[1].Severity)
}

func TestMatch_NoAllergens(t *testing.T) {
	cat := testCatalog(t)

	matches := Match("sugar, water, salt", cat, DefaultThreshold)
	assert.Empty(t, matches)
}

func TestMatch_EmptyText(t *testing.T) {
	cat := testCatalog(t)

	assert.Empty(t, Match("", cat, DefaultThreshold))
	assert.Empty(t, Match("   \n\t  ", cat, DefaultThreshold))
}

func TestMatch_NilCatalog(t *testing.T) {
	assert.Empty(t, Match("milk", nil, DefaultThreshold))
}

func TestMatch_OCRNoise(t *testing.T) {
	cat := testCatalog(t)

	matches := Match("m1lk powder", cat, DefaultThreshold)
	require.Len(t, matches, 1)
	assert.Equal(t, "milk", matches[0].Allergen)

	// Edit distance 1 over length 4 pins the score at 0.75: below an exact
	// match, above the default threshold.
	require.Len(t, matches[0].Hits, 1)
	assert.Equal(t, "milk", matches[0].Hits[0].Term)
	assert.InDelta(t, 0.75, matches[0].Hits[0].Score, 1e-9)
	assert.Equal(t, SeverityHigh, matches[0].Severity)
}

func TestMatch_Deterministic(t *testing.T) {
	cat := testCatalog(t)
	text := "peanut butter with milk solids and lactose, maybe m1lk too"

	first := Match(text, cat, DefaultThreshold)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Match(text, cat, DefaultThreshold))
	}
}

func TestMatch_ThresholdMonotonic(t *testing.T) {
	cat := testCatalog(t)
	text := "m1lk powder with arach1s oil"

	loose := Match(text, cat, 0.5)
	strict := Match(text, cat, 0.9)

	looseNames := make(map[string]bool)
	for _, m := range loose {
		looseNames[m.Allergen] = true
	}
	for _, m := range strict {
		assert.True(t, looseNames[m.Allergen], "allergen %s found at 0.9 but not at 0.5", m.Allergen)
	}
	assert.LessOrEqual(t, len(strict), len(loose))
}

func TestMatch_HitOrdering(t *testing.T) {
	cat, err := catalog.New([]catalog.Entry{
		{Name: "milk", Aliases: []string{"milk", "lactose", "whey"}},
	})
	require.NoError(t, err)

	matches := Match("whey, lactose and milk", cat, DefaultThreshold)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Hits, 3)

	// All exact, so alphabetical by term.
	assert.Equal(t, "lactose", matches[0].Hits[0].Term)
	assert.Equal(t, "milk", matches[0].Hits[1].Term)
	assert.Equal(t, "whey", matches[0].Hits[2].Term)
}

func TestMatch_FreeFromClaimIsLowSeverity(t *testing.T) {
	cat := testCatalog(t)

	matches := Match("gluten-free and milk-free recipe", cat, DefaultThreshold)
	require.Len(t, matches, 1)
	assert.Equal(t, "milk", matches[0].Allergen)
	assert.Equal(t, SeverityLow, matches[0].Severity)

	// A real mention alongside the claim stays high severity.
	matches = Match("milk free but contains milk solids", cat, DefaultThreshold)
	require.Len(t, matches, 1)
	assert.Equal(t, SeverityHigh, matches[0].Severity)
}

func TestAdvisory(t *testing.T) {
	assert.True(t, Advisory("May contain traces of nuts"))
	assert.True(t, Advisory("Produced in a facility that handles peanuts"))
	assert.False(t, Advisory("sugar, water, salt"))
	assert.False(t, Advisory(""))
}

func TestFilterByProfile(t *testing.T) {
	cat := testCatalog(t)
	matches := Match("contains arachis oil and milk solids", cat, DefaultThreshold)
	require.Len(t, matches, 2)

	// Empty profile filters everything.
	assert.Empty(t, FilterByProfile(matches, nil))
	assert.Empty(t, FilterByProfile(matches, []string{}))

	// Full profile returns the list unchanged, same order.
	full := FilterByProfile(matches, []string{"peanut", "milk"})
	assert.Equal(t, matches, full)

	// Partial profile preserves relative order.
	onlyPeanut := FilterByProfile(matches, []string{"peanut"})
	require.Len(t, onlyPeanut, 1)
	assert.Equal(t, "peanut", onlyPeanut[0].Allergen)

	// Works on hand-built matches too, not just Match output.
	built := []AllergenMatch{
		{Allergen: "soy", MaxScore: 1.0},
		{Allergen: "wheat", MaxScore: 0.8},
	}
	filtered := FilterByProfile(built, []string{"wheat"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "wheat", filtered[0].Allergen)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "milk solids e322", Normalize("  MILK,\nsolids (E322)!! "))
	assert.Equal(t, "", Normalize("...,,!!"))
	assert.Equal(t, "soy lecithin", Normalize("Soy-Lecithin"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"milk", "solids", "e322"}, Tokens("  MILK,\nsolids (E322)!! "))
	assert.Empty(t, Tokens("...,,!!"))
	assert.Empty(t, Tokens(""))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("milk", "milk"))
	assert.Equal(t, 1, levenshtein("milk", "m1lk"))
	assert.Equal(t, 4, levenshtein("", "milk"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("milk", "milk"))
	assert.InDelta(t, 0.75, similarity("milk", "m1lk"), 1e-9)
	assert.Equal(t, 0.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("", "milk"))
	assert.Less(t, similarity("milk", "powder"), 0.3)
}
