// Package scoring turns a completed answer log into subscale totals and fused
// condition scores.
package scoring

import (
	"context"
	"math"

	"github.com/BTreeMap/MindScreen/internal/models"
)

// ConditionScores are per-condition likelihoods in [0,1] from a ConditionScoreModel.
type ConditionScores struct {
	Depression float64 `json:"depression"`
	Anxiety    float64 `json:"anxiety"`
	PTSD       float64 `json:"ptsd"`
	General    float64 `json:"general"`
}

// ConditionScoreModel maps the numeric answer vector to condition likelihoods.
// Implementations must be stateless with respect to the run.
type ConditionScoreModel interface {
	Score(ctx context.Context, features []float64) (ConditionScores, error)
}

// LinearModel is a linear layer with a sigmoid over the mean feature value.
// It stands in for a trained classifier and is deterministic for a given input.
type LinearModel struct {
	Bias map[models.Condition]float64
	Gain map[models.Condition]float64
}

// DefaultLinearModel returns the stand-in model used when no classifier is configured.
func DefaultLinearModel() LinearModel {
	return LinearModel{
		Bias: map[models.Condition]float64{
			models.ConditionDepression: -1.5,
			models.ConditionAnxiety:    -1.5,
			models.ConditionPTSD:       -2.0,
			models.ConditionGeneral:    -1.0,
		},
		Gain: map[models.Condition]float64{
			models.ConditionDepression: 1.0,
			models.ConditionAnxiety:    1.0,
			models.ConditionPTSD:       0.8,
			models.ConditionGeneral:    0.6,
		},
	}
}

// Score implements ConditionScoreModel.
func (m LinearModel) Score(ctx context.Context, features []float64) (ConditionScores, error) {
	if err := ctx.Err(); err != nil {
		return ConditionScores{}, err
	}
	var mean float64
	if len(features) > 0 {
		var sum float64
		for _, f := range features {
			sum += f
		}
		mean = sum / float64(len(features))
	}
	at := func(c models.Condition) float64 {
		return sigmoid(m.Bias[c] + m.Gain[c]*mean)
	}
	return ConditionScores{
		Depression: at(models.ConditionDepression),
		Anxiety:    at(models.ConditionAnxiety),
		PTSD:       at(models.ConditionPTSD),
		General:    at(models.ConditionGeneral),
	}, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
