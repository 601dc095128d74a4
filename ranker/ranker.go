// Package ranker orchestrates scoring: it resolves nutrition for a deal
// (provided, estimated, or defaulted) and runs the value scorer on it.
package ranker

import (
	"context"
	"log/slog"

	"github.com/dealscout/dealscout/llm"
	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ratelimit"
	"github.com/dealscout/dealscout/score"
)

// Default nutrition substituted when estimation fails or returns garbage.
const (
	DefaultCalories     = 600
	DefaultProteinGrams = 20.0
)

// Estimator is the external nutrition estimator. *llm.Client implements it.
type Estimator interface {
	EstimateNutrition(ctx context.Context, req llm.EstimateRequest) (*llm.Nutrition, error)
}

// Input carries one deal's fields into a scoring run.
type Input struct {
	ItemName    string
	Restaurant  string
	Price       float64
	Description string
	PortionSize string

	// Calories and ProteinGrams short-circuit the estimator when the
	// caller already knows them.
	Calories     *int
	ProteinGrams *float64
}

// Result is the scoring outcome plus how the nutrition was resolved.
type Result struct {
	models.ScoreResult

	// Estimated is true when the external estimator path ran (no usable
	// provided nutrition).
	Estimated bool

	// UsedDefaults is true when estimation failed and the fixed default
	// nutrition was substituted.
	UsedDefaults bool
}

// Ranker scores deals, consulting the estimator only when nutrition is
// missing and serializing those calls through a shared rate gate.
type Ranker struct {
	estimator Estimator
	gate      *ratelimit.Gate
}

// New builds a Ranker over the given estimator and rate gate.
func New(estimator Estimator, gate *ratelimit.Gate) *Ranker {
	return &Ranker{estimator: estimator, gate: gate}
}

// Score resolves nutrition for the input and computes its value score.
// The estimator is strictly best-effort: any estimation failure, malformed
// reply, or non-positive calorie estimate falls back to fixed defaults and
// the call still succeeds. Score never returns an error.
func (r *Ranker) Score(ctx context.Context, in Input) Result {
	if in.Calories != nil && *in.Calories > 0 {
		protein := 0.0
		if in.ProteinGrams != nil {
			protein = *in.ProteinGrams
		}
		slog.Info("using provided nutrition",
			"item", in.ItemName,
			"calories", *in.Calories,
			"protein_grams", protein)
		return Result{ScoreResult: score.Value(*in.Calories, protein, in.Price)}
	}

	calories, protein, usedDefaults := r.estimate(ctx, in)
	return Result{
		ScoreResult:  score.Value(calories, protein, in.Price),
		Estimated:    true,
		UsedDefaults: usedDefaults,
	}
}

// estimate calls the external estimator under the rate gate and sanitizes
// its reply, substituting defaults on any failure.
func (r *Ranker) estimate(ctx context.Context, in Input) (calories int, protein float64, usedDefaults bool) {
	r.gate.Acquire(ctx)

	nutrition, err := r.estimator.EstimateNutrition(ctx, llm.EstimateRequest{
		ItemName:    in.ItemName,
		Restaurant:  in.Restaurant,
		Description: in.Description,
		PortionSize: in.PortionSize,
	})
	if err != nil {
		slog.Warn("nutrition estimation failed, using defaults",
			"item", in.ItemName, "error", err)
		return DefaultCalories, DefaultProteinGrams, true
	}
	if nutrition.Calories <= 0 {
		slog.Warn("estimator returned non-positive calories, using defaults",
			"item", in.ItemName, "calories", nutrition.Calories)
		return DefaultCalories, DefaultProteinGrams, true
	}
	return nutrition.Calories, nutrition.ProteinGrams, false
}
