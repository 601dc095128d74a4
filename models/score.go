package models

// ScoreResult is the fully-populated scoring output for one menu item.
// It is produced exclusively by the score package; on upstream failure the
// ranker substitutes default nutrition before scoring, so a ScoreResult is
// always computable and never partially null.
type ScoreResult struct {
	// ValueScore is the combined 0-100 metric:
	// satiety*0.4 + price_efficiency*0.6, rounded to 1 decimal.
	ValueScore float64 `json:"value_score"`

	// SatietyScore is the 0-100 calorie/protein saturation score.
	SatietyScore float64 `json:"satiety_score"`

	// PriceEfficiencyScore is the 0-100 price-per-calorie score.
	PriceEfficiencyScore float64 `json:"price_efficiency_score"`

	// PricePerCalorie is price/calories rounded to 4 decimals.
	PricePerCalorie float64 `json:"price_per_calorie"`

	// Calories and ProteinGrams are the nutrition values actually scored
	// (provided, estimated, or defaulted).
	Calories     int     `json:"calories"`
	ProteinGrams float64 `json:"protein_grams"`
}

// Deal is a persisted menu deal with its most recent scoring.
type Deal struct {
	ID            int64    `json:"id"`
	Restaurant    string   `json:"restaurant"`
	ItemName      string   `json:"item_name"`
	Price         float64  `json:"price"`
	Description   string   `json:"description,omitempty"`
	PortionSize   string   `json:"portion_size,omitempty"`
	DealType      string   `json:"deal_type,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	Calories      *int     `json:"calories,omitempty"`
	ProteinGrams  *float64 `json:"protein_grams,omitempty"`
	ValueScore    *float64 `json:"value_score,omitempty"`
	SatietyScore  *float64 `json:"satiety_score,omitempty"`
	PricePerCal   *float64 `json:"price_per_calorie,omitempty"`
	NutritionByAI bool     `json:"nutrition_estimated"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
	LastRankedAt  *int64   `json:"last_ranked_at,omitempty"`
}
