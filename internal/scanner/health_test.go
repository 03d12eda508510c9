package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebite/labelscan/internal/persistence"
)

var testHarmful = []persistence.HarmfulIngredient{
	{Ingredient: "sugar", Weight: 20},
	{Ingredient: "high fructose corn syrup", Weight: 25},
	{Ingredient: "trans fat", Weight: 30},
}

func TestComputeHealthScore(t *testing.T) {
	score, findings := ComputeHealthScore("Sugar, water, TRANS-FAT", testHarmful)
	assert.Equal(t, 50, score)
	require.Len(t, findings, 2)
	// Heaviest first.
	assert.Equal(t, "trans fat", findings[0].Ingredient)
	assert.Equal(t, "sugar", findings[1].Ingredient)
}

func TestComputeHealthScore_Clean(t *testing.T) {
	score, findings := ComputeHealthScore("water, salt", testHarmful)
	assert.Equal(t, 100, score)
	assert.Empty(t, findings)

	score, findings = ComputeHealthScore("", testHarmful)
	assert.Equal(t, 100, score)
	assert.Empty(t, findings)
}

func TestComputeHealthScore_FlooredAtZero(t *testing.T) {
	heavy := []persistence.HarmfulIngredient{
		{Ingredient: "sugar", Weight: 60},
		{Ingredient: "trans fat", Weight: 60},
	}
	score, _ := ComputeHealthScore("sugar and trans fat", heavy)
	assert.Equal(t, 0, score)
}

func TestPredictAllergens(t *testing.T) {
	rules := []persistence.PredictiveRule{
		{FoodItem: "chocolate", Allergen: "peanut"},
		{FoodItem: "chocolate", Allergen: "milk"},
		{FoodItem: "ice cream", Allergen: "milk"},
		{FoodItem: "cake", Allergen: "egg"},
	}

	preds := PredictAllergens("Dark Chocolate ice-cream", rules)
	assert.Equal(t, []string{"milk", "peanut"}, preds)

	assert.Empty(t, PredictAllergens("plain water", rules))
	assert.Empty(t, PredictAllergens("", rules))
}
