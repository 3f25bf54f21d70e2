package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedModel struct {
	scores ConditionScores
	err    error
	seen   []float64
}

func (m *fixedModel) Score(_ context.Context, features []float64) (ConditionScores, error) {
	m.seen = append([]float64(nil), features...)
	return m.scores, m.err
}

func numeric(id string, n float64) models.Answer {
	return models.Answer{QuestionID: id, Value: models.NumericValue(n)}
}

func TestAggregateSubscaleTotalsUseExplicitMembership(t *testing.T) {
	model := &fixedModel{scores: ConditionScores{Depression: 0.5, Anxiety: 0.2, PTSD: 0.1, General: 0.3}}
	agg := NewAggregator(model, bank.Default())

	answers := []models.Answer{
		numeric("phq2_1", 3),
		numeric("phq2_2", 2),
		numeric("gad2_1", 1),
		numeric("sleep_2", 3), // no subscale
		numeric("phq9_3", 1),
		numeric("gad7_4", 2),
		{QuestionID: "open_1", Value: models.TextValue("tired all the time")},
		{QuestionID: "phq9_4", Value: models.TextValue(""), Metadata: models.AnswerMetadata{Skipped: true}},
	}

	s, err := agg.Aggregate(context.Background(), answers)
	require.NoError(t, err)
	assert.Equal(t, 6.0, s.PHQ9)
	assert.Equal(t, 3.0, s.GAD7)
	assert.Equal(t, []float64{3, 2, 1, 3, 1, 2, 0, 0}, model.seen)
}

func TestAggregateComposites(t *testing.T) {
	model := &fixedModel{scores: ConditionScores{Depression: 0.5, Anxiety: 0.4, PTSD: 0.25, General: 0.1}}
	agg := NewAggregator(model, bank.Default())

	answers := []models.Answer{
		numeric("phq2_1", 3), numeric("phq2_2", 3), numeric("phq9_3", 3),
		numeric("gad2_1", 3), numeric("gad2_2", 3), numeric("gad7_3", 3), numeric("gad7_4", 3),
	}

	s, err := agg.Aggregate(context.Background(), answers)
	require.NoError(t, err)
	assert.InDelta(t, 0.7*0.5+0.3*9.0/27.0, s.Depression, 1e-9)
	assert.InDelta(t, 0.7*0.4+0.3*12.0/21.0, s.Anxiety, 1e-9)
	assert.Equal(t, 0.25, s.PTSD)

	m := s.Map()
	for _, key := range []string{KeyModelDepression, KeyModelAnxiety, KeyModelPTSD, KeyModelGeneral, KeyPHQ9, KeyGAD7, KeyDepression, KeyAnxiety, KeyPTSD} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, 0.1, m[KeyModelGeneral])
	assert.Equal(t, 9.0, m[KeyPHQ9])
	assert.Equal(t, s.Anxiety, s.Composite(models.ConditionAnxiety))
	assert.Equal(t, 0.0, s.Composite(models.ConditionBipolar))
}

func TestAggregateModelFailureIsCollaboratorError(t *testing.T) {
	cause := errors.New("model unavailable")
	agg := NewAggregator(&fixedModel{err: cause}, bank.Default())

	_, err := agg.Aggregate(context.Background(), []models.Answer{numeric("phq2_1", 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCollaboratorFailure)
	assert.ErrorIs(t, err, cause)
	var ce *models.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "condition score model", ce.Collaborator)
}

func TestAggregateRejectsUnknownQuestion(t *testing.T) {
	agg := NewAggregator(&fixedModel{}, bank.Default())

	_, err := agg.Aggregate(context.Background(), []models.Answer{numeric("phq9_99", 3)})
	assert.ErrorIs(t, err, models.ErrInvalidQuestionReference)
}

func TestLinearModelIsDeterministicAndBounded(t *testing.T) {
	m := DefaultLinearModel()
	ctx := context.Background()

	a, err := m.Score(ctx, []float64{0, 1, 2, 3})
	require.NoError(t, err)
	b, err := m.Score(ctx, []float64{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	high, err := m.Score(ctx, []float64{3, 3, 3, 3})
	require.NoError(t, err)
	assert.Greater(t, high.Depression, a.Depression)

	for _, v := range []float64{a.Depression, a.Anxiety, a.PTSD, a.General} {
		assert.True(t, v > 0 && v < 1, "score %v outside (0,1)", v)
	}

	empty, err := m.Score(ctx, nil)
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-1.5), empty.Depression, 1e-12)
}

func TestLinearModelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultLinearModel().Score(ctx, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
}
