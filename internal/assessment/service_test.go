package assessment

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResultStore struct {
	saved   []models.StoredAssessment
	saveErr error
}

func (f *fakeResultStore) SaveAssessment(a models.StoredAssessment) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeResultStore) ListAssessments(userID string) ([]models.StoredAssessment, error) {
	var out []models.StoredAssessment
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].Result.UserID == userID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

type fakeNotifier struct {
	alerts []models.AssessmentResult
	err    error
}

func (f *fakeNotifier) NotifyCrisis(_ context.Context, r models.AssessmentResult) error {
	f.alerts = append(f.alerts, r)
	return f.err
}

type fakeCache struct {
	contexts map[string]models.ChatContext
}

func (f *fakeCache) SetContext(_ context.Context, userID string, c models.ChatContext) error {
	if f.contexts == nil {
		f.contexts = make(map[string]models.ChatContext)
	}
	f.contexts[userID] = c
	return nil
}

func TestServiceCompletePersistsAndCaches(t *testing.T) {
	st := &fakeResultStore{}
	notifier := &fakeNotifier{}
	cache := &fakeCache{}
	svc := NewService(newTestAssessor(), st, WithNotifier(notifier), WithContextCache(cache))
	e := completeRun(t, calm)

	result, err := svc.Complete(context.Background(), "user-1", e)
	require.NoError(t, err)

	require.Len(t, st.saved, 1)
	assert.Equal(t, *result, st.saved[0].Result)
	assert.Len(t, st.saved[0].Answers, 11)
	assert.Empty(t, notifier.alerts)
	assert.Equal(t, result.PrimaryCondition, cache.contexts["user-1"].Diagnosis)
	assert.Equal(t, result.Recommendations, cache.contexts["user-1"].PreviousRecommendations)

	history, err := svc.History("user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestServiceCompleteAlertsOnEmergency(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("sms gateway down")}
	svc := NewService(newTestAssessor(), &fakeResultStore{}, WithNotifier(notifier))
	e := completeRun(t, func(q models.Question) models.AnswerValue {
		if q.ID == "open_2" {
			return models.TextValue("I keep thinking I should kill myself")
		}
		return calm(q)
	})

	result, err := svc.Complete(context.Background(), "user-1", e)
	require.NoError(t, err)
	assert.Equal(t, models.RiskEmergency, result.RiskLevel)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, result.ID, notifier.alerts[0].ID)
}

func TestServiceCompleteSaveFailure(t *testing.T) {
	cause := errors.New("database locked")
	svc := NewService(newTestAssessor(), &fakeResultStore{saveErr: cause})

	result, err := svc.Complete(context.Background(), "user-1", completeRun(t, calm))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, cause)
}
