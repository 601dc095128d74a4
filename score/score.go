// Package score computes the deterministic 0-100 value metrics for a priced
// menu item. All functions are pure; degenerate inputs produce a zero
// component instead of an error so a result is always computable.
package score

import (
	"math"

	"github.com/dealscout/dealscout/models"
)

// Anchors for a "typical meal". The exponential saturation in the satiety
// score keeps very large meals from trivially reaching 100.
const (
	TypicalMealCalories = 800
	TypicalMealProtein  = 30.0
	TypicalMealPrice    = 9.0

	// TypicalPricePerCalorie = 9.0/800 = 0.01125 $/kcal.
	TypicalPricePerCalorie = TypicalMealPrice / float64(TypicalMealCalories)
)

// Satiety maps calories and protein to a 0-100 saturation score.
// Calories weigh 70%, protein 30%, each normalized against the typical-meal
// anchors, passed through 1-e^(-x): 0 -> 0, ~1 -> ~63, 2 -> ~86, 3 -> ~95.
// Rounded to 1 decimal.
func Satiety(calories int, proteinGrams float64) float64 {
	if calories <= 0 {
		return 0.0
	}
	if proteinGrams < 0 {
		proteinGrams = 0
	}

	raw := float64(calories)/TypicalMealCalories*0.7 + proteinGrams/TypicalMealProtein*0.3
	s := (1.0 - math.Exp(-raw)) * 100.0
	return round1(clamp(s))
}

// PriceEfficiency maps the item's price-per-calorie ratio to 0-100.
// r = typical_ppc / deal_ppc; r=1 scores 50, r=2 (half the typical ppc)
// scores 100, r=0.5 scores 25. Linear in r, clamped, rounded to 1 decimal.
func PriceEfficiency(price float64, calories int) float64 {
	if price <= 0 || calories <= 0 {
		return 0.0
	}
	dealPPC := price / float64(calories)
	if dealPPC <= 0 {
		return 0.0
	}
	r := TypicalPricePerCalorie / dealPPC
	return round1(clamp(r * 50.0))
}

// Value combines satiety and price efficiency into the final ScoreResult.
// value_score = satiety*0.4 + price_efficiency*0.6, rounded to 1 decimal.
func Value(calories int, proteinGrams, price float64) models.ScoreResult {
	satiety := Satiety(calories, proteinGrams)
	priceEff := PriceEfficiency(price, calories)

	ppc := 0.0
	if calories > 0 {
		ppc = round4(price / float64(calories))
	}

	return models.ScoreResult{
		ValueScore:           round1(satiety*0.4 + priceEff*0.6),
		SatietyScore:         satiety,
		PriceEfficiencyScore: priceEff,
		PricePerCalorie:      ppc,
		Calories:             calories,
		ProteinGrams:         proteinGrams,
	}
}

func clamp(x float64) float64 {
	return math.Max(0.0, math.Min(100.0, x))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
