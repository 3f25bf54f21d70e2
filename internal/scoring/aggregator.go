package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/MindScreen/internal/models"
)

// Score map keys.
const (
	KeyPHQ9            = "phq9"
	KeyGAD7            = "gad7"
	KeyDepression      = "depression"
	KeyAnxiety         = "anxiety"
	KeyPTSD            = "ptsd"
	KeyModelDepression = "model.depression"
	KeyModelAnxiety    = "model.anxiety"
	KeyModelPTSD       = "model.ptsd"
	KeyModelGeneral    = "model.general"
)

const (
	modelWeight    = 0.7
	subscaleWeight = 0.3
)

// QuestionLookup resolves question ids against the bank the run used.
type QuestionLookup interface {
	Lookup(id string) (models.Question, bool)
}

// Scores holds the totals and fused composites for one run.
type Scores struct {
	Model      ConditionScores
	PHQ9       float64
	GAD7       float64
	Depression float64
	Anxiety    float64
	PTSD       float64
}

// Composite returns the fused score for a ranked condition.
func (s Scores) Composite(c models.Condition) float64 {
	switch c {
	case models.ConditionDepression:
		return s.Depression
	case models.ConditionAnxiety:
		return s.Anxiety
	case models.ConditionPTSD:
		return s.PTSD
	}
	return 0
}

// Map flattens the scores into the result's score map.
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		KeyModelDepression: s.Model.Depression,
		KeyModelAnxiety:    s.Model.Anxiety,
		KeyModelPTSD:       s.Model.PTSD,
		KeyModelGeneral:    s.Model.General,
		KeyPHQ9:            s.PHQ9,
		KeyGAD7:            s.GAD7,
		KeyDepression:      s.Depression,
		KeyAnxiety:         s.Anxiety,
		KeyPTSD:            s.PTSD,
	}
}

// Aggregator computes subscale totals and composites from active answers.
type Aggregator struct {
	model     ConditionScoreModel
	questions QuestionLookup
}

// NewAggregator creates an Aggregator. A nil model falls back to DefaultLinearModel.
func NewAggregator(model ConditionScoreModel, questions QuestionLookup) *Aggregator {
	if model == nil {
		model = DefaultLinearModel()
	}
	return &Aggregator{model: model, questions: questions}
}

// Aggregate scores the active answers of a completed run.
//
// Subscale totals sum the non-skipped numeric answers whose question belongs to
// the subscale. The model sees every active answer in submission order, with text
// and skipped answers contributing zero.
func (a *Aggregator) Aggregate(ctx context.Context, answers []models.Answer) (Scores, error) {
	var s Scores
	features := make([]float64, 0, len(answers))

	for _, ans := range answers {
		q, ok := a.questions.Lookup(ans.QuestionID)
		if !ok {
			slog.Error("Aggregator.Aggregate: unknown question", "questionID", ans.QuestionID)
			return Scores{}, fmt.Errorf("%w: %s", models.ErrInvalidQuestionReference, ans.QuestionID)
		}
		if ans.Metadata.Skipped {
			features = append(features, 0)
			continue
		}
		v := ans.Value.NumericOrZero()
		features = append(features, v)
		if !ans.Value.IsNumeric() {
			continue
		}
		switch q.Subscale {
		case models.SubscalePHQ9:
			s.PHQ9 += v
		case models.SubscaleGAD7:
			s.GAD7 += v
		}
	}

	ms, err := a.model.Score(ctx, features)
	if err != nil {
		slog.Error("Aggregator.Aggregate: model scoring failed", "error", err, "features", len(features))
		return Scores{}, models.NewCollaboratorError("condition score model", err)
	}
	s.Model = ms
	s.Depression = modelWeight*ms.Depression + subscaleWeight*s.PHQ9/models.PHQ9Max
	s.Anxiety = modelWeight*ms.Anxiety + subscaleWeight*s.GAD7/models.GAD7Max
	s.PTSD = ms.PTSD

	slog.Debug("Aggregator.Aggregate: scores computed", "phq9", s.PHQ9, "gad7", s.GAD7, "depression", s.Depression, "anxiety", s.Anxiety, "ptsd", s.PTSD)
	return s, nil
}
