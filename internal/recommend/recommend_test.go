package recommend

import (
	"strings"
	"testing"

	"github.com/BTreeMap/MindScreen/internal/diagnosis"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergencyReturnsSingleCrisisMessage(t *testing.T) {
	got := Generate(diagnosis.Diagnosis{
		Primary:   models.ConditionAnxiety,
		Severity:  models.SeveritySevere,
		Emergency: true,
	})

	require.Len(t, got, 1)
	for _, want := range []string{"988", "911", "Text HOME to 741741"} {
		assert.Contains(t, got[0], want)
	}
}

func TestAnxietySevereOrdering(t *testing.T) {
	got := For(models.ConditionAnxiety, models.SeveritySevere, false)

	assert.Equal(t, []string{
		"Consider scheduling an urgent appointment with a psychiatrist",
		"Discuss medication options with your healthcare provider",
		"Schedule an appointment with a mental health professional for a thorough evaluation",
		"Learn and practice deep breathing exercises",
		"Try progressive muscle relaxation techniques",
		"Limit caffeine and alcohol intake",
		"Keep a worry journal to track triggers",
	}, got)
}

func TestConditionLists(t *testing.T) {
	tests := []struct {
		primary models.Condition
		first   string
		length  int
	}{
		{models.ConditionDepression, "Begin a daily exercise routine", 5},
		{models.ConditionAnxiety, "Learn and practice deep breathing", 5},
		{models.ConditionPTSD, "Consider trauma-focused", 5},
		{models.ConditionBipolar, "", 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.primary), func(t *testing.T) {
			got := For(tt.primary, models.SeverityModerate, false)
			require.Len(t, got, tt.length)
			assert.Equal(t, ProfessionalEvaluation, got[0])
			if tt.first != "" {
				assert.True(t, strings.HasPrefix(got[1], tt.first), "got %q", got[1])
			}
		})
	}
}

func TestListsAreNotShared(t *testing.T) {
	got := For(models.ConditionDepression, models.SeveritySevere, false)
	got[0] = "changed"

	assert.Equal(t, "Consider scheduling an urgent appointment with a psychiatrist", SevereActions[0])
	assert.Equal(t, "Begin a daily exercise routine, even if just for 15 minutes", ConditionActions[models.ConditionDepression][0])
}
