package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/MindScreen/internal/analysis"
	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/BTreeMap/MindScreen/internal/recommend"
	"github.com/BTreeMap/MindScreen/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubModel struct {
	scores scoring.ConditionScores
	err    error
}

func (m stubModel) Score(context.Context, []float64) (scoring.ConditionScores, error) {
	return m.scores, m.err
}

type stubUrgency struct{ value float64 }

func (u stubUrgency) Match(context.Context, string, []string) (float64, error) { return u.value, nil }

func newTestAssessor(opts ...Option) *Assessor {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "result-1" }),
	}
	return NewAssessor(append(base, opts...)...)
}

// completeRun answers every question with pick until the engine completes.
func completeRun(t *testing.T, pick func(q models.Question) models.AnswerValue) *flow.Engine {
	t.Helper()
	e := flow.NewEngine(bank.Default())
	for i := 0; i < 100 && !e.Completed(); i++ {
		q, ok := e.CurrentQuestion()
		require.True(t, ok)
		require.NoError(t, e.SubmitAnswer(q, pick(q)))
		e.Advance()
	}
	require.True(t, e.Completed())
	return e
}

func calm(q models.Question) models.AnswerValue {
	switch q.Type {
	case models.QuestionTypeText:
		return models.TextValue("Things are mostly okay")
	case models.QuestionTypeScale:
		return models.NumericValue(7)
	default:
		return models.TextValue(q.NoSymptomOption())
	}
}

// worst answers every question with its most severe option.
func worst(q models.Question) models.AnswerValue {
	switch q.Type {
	case models.QuestionTypeText:
		return models.TextValue("I feel on edge and exhausted")
	case models.QuestionTypeScale:
		return models.TextValue(q.Options[len(q.Options)-1])
	default:
		return models.NumericValue(float64(len(q.Options) - 1))
	}
}

func TestAssessScoresStayWithinSubscaleBounds(t *testing.T) {
	e := completeRun(t, worst)

	result, err := newTestAssessor().Assess(context.Background(), "user-1", e)
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Scores[scoring.KeyPHQ9], float64(models.PHQ9Max))
	assert.LessOrEqual(t, result.Scores[scoring.KeyGAD7], float64(models.GAD7Max))
	for _, key := range []string{scoring.KeyDepression, scoring.KeyAnxiety, scoring.KeyPTSD} {
		assert.GreaterOrEqual(t, result.Scores[key], 0.0, key)
		assert.LessOrEqual(t, result.Scores[key], 1.0, key)
	}
	_, err = json.Marshal(result)
	assert.NoError(t, err)
}

func TestAssessOutOfRangeAnswersNeverReachScoring(t *testing.T) {
	e := flow.NewEngine(bank.Default())
	q, _ := e.CurrentQuestion()

	assert.ErrorIs(t, e.SubmitAnswer(q, models.NumericValue(500)), flow.ErrInvalidAnswerValue)
	assert.ErrorIs(t, e.SubmitAnswer(q, models.NumericValue(-1)), flow.ErrInvalidAnswerValue)
	assert.Equal(t, 0, e.Log().Len())
}

func TestAssessRejectsIncompleteRun(t *testing.T) {
	e := flow.NewEngine(bank.Default())

	result, err := newTestAssessor().Assess(context.Background(), "user-1", e)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrIncompleteRun)
}

func TestAssessEndItAllScenarioIsEmergency(t *testing.T) {
	e := completeRun(t, func(q models.Question) models.AnswerValue {
		if q.ID == "open_1" {
			return models.TextValue("I want to end it all immediately")
		}
		return calm(q)
	})

	tests := []struct {
		name     string
		assessor *Assessor
	}{
		{"high urgency matcher", newTestAssessor(WithTextAnalyzer(analysis.NewAnalyzer(analysis.WithUrgencyMatcher(stubUrgency{value: 0.9}))))},
		{"built-in collaborators", newTestAssessor()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.assessor.Assess(context.Background(), "user-1", e)
			require.NoError(t, err)
			assert.Equal(t, models.RiskEmergency, result.RiskLevel)
			require.Len(t, result.Recommendations, 1)
			assert.Contains(t, result.Recommendations[0], "988")
			assert.NotEmpty(t, result.NLPAnalysis.EmergencyFlags)
		})
	}
}

func TestAssessAnxietySevere(t *testing.T) {
	e := completeRun(t, func(q models.Question) models.AnswerValue {
		if q.Category == models.CategoryAnxiety {
			return models.TextValue("Nearly every day")
		}
		return calm(q)
	})
	a := newTestAssessor(WithScoreModel(stubModel{scores: scoring.ConditionScores{Depression: 0.2, Anxiety: 0.8, PTSD: 0.1, General: 0.3}}))

	result, err := a.Assess(context.Background(), "user-1", e)
	require.NoError(t, err)

	assert.Equal(t, "result-1", result.ID)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, fixedNow, result.Timestamp)
	assert.Equal(t, 15.0, result.Scores[scoring.KeyGAD7])
	assert.Equal(t, 0.0, result.Scores[scoring.KeyPHQ9])
	assert.Equal(t, models.SeveritySevere, result.Severity)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
	assert.Equal(t, models.ConditionAnxiety, result.PrimaryCondition)
	assert.Equal(t, []models.Condition{models.ConditionDepression, models.ConditionPTSD}, result.SecondaryConditions)
	assert.Equal(t, recommend.For(models.ConditionAnxiety, models.SeveritySevere, false), result.Recommendations)
	assert.Equal(t, "Consider scheduling an urgent appointment with a psychiatrist", result.Recommendations[0])

	require.NotNil(t, result.Metadata)
	assert.True(t, result.Metadata.Tier2Triggered)
	assert.Equal(t, 14, result.Metadata.QuestionCount)
	require.NotNil(t, result.NLPAnalysis)
	assert.Len(t, result.NLPAnalysis.Sentiments, 2)
	assert.Empty(t, result.NLPAnalysis.EmergencyFlags)
}

func TestAssessSubscaleNamespaceMild(t *testing.T) {
	answers := []models.Answer{
		{QuestionID: "phq2_1", Value: models.NumericValue(3)},
		{QuestionID: "phq9_4", Value: models.NumericValue(3)},
		{QuestionID: "gad2_1", Value: models.NumericValue(3)},
		{QuestionID: "gad7_5", Value: models.NumericValue(3)},
		{QuestionID: "stress_2", Value: models.NumericValue(9)},
	}
	a := newTestAssessor(WithScoreModel(stubModel{scores: scoring.ConditionScores{Depression: 0.4, Anxiety: 0.4, PTSD: 0.4}}))

	result, err := a.AssessAnswers(context.Background(), "user-1", bank.Default(), answers, nil)
	require.NoError(t, err)

	assert.Equal(t, 6.0, result.Scores[scoring.KeyPHQ9])
	assert.Equal(t, 6.0, result.Scores[scoring.KeyGAD7])
	assert.Equal(t, models.SeverityMild, result.Severity)
	assert.Equal(t, models.RiskLow, result.RiskLevel)
	assert.Nil(t, result.Metadata)
	// Equal model scores: the smaller GAD-7 maximum lifts the anxiety composite.
	assert.Equal(t, models.ConditionAnxiety, result.PrimaryCondition)
}

func TestAssessCollaboratorFailureReturnsNoResult(t *testing.T) {
	e := completeRun(t, calm)
	cause := errors.New("classifier offline")

	result, err := newTestAssessor(WithScoreModel(stubModel{err: cause})).Assess(context.Background(), "user-1", e)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrCollaboratorFailure)
	assert.ErrorIs(t, err, cause)
}

func TestAssessCanceledContext(t *testing.T) {
	e := completeRun(t, calm)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestAssessor().Assess(ctx, "user-1", e)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}
