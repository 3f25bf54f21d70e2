// Package recommend turns a resolved diagnosis into an ordered list of guidance strings.
package recommend

import (
	"github.com/BTreeMap/MindScreen/internal/diagnosis"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// EmergencyMessage is the only recommendation given when the emergency flag is set.
const EmergencyMessage = `I notice you're expressing thoughts that concern me. Your safety is the top priority.
Please immediately contact one of these emergency resources:

- National Crisis Hotline (24/7): 988
- Emergency Services: 911
- Crisis Text Line: Text HOME to 741741

These professionals are ready to help you right now. You don't have to go through this alone.`

// ProfessionalEvaluation opens every non-emergency list.
const ProfessionalEvaluation = "Schedule an appointment with a mental health professional for a thorough evaluation"

// SevereActions are prepended, in order, when severity is severe.
var SevereActions = []string{
	"Consider scheduling an urgent appointment with a psychiatrist",
	"Discuss medication options with your healthcare provider",
}

// ConditionActions are appended for the primary condition.
var ConditionActions = map[models.Condition][]string{
	models.ConditionDepression: {
		"Begin a daily exercise routine, even if just for 15 minutes",
		"Practice mindfulness meditation to improve mood",
		"Maintain a regular sleep schedule",
		"Connect with friends or family members daily",
	},
	models.ConditionAnxiety: {
		"Learn and practice deep breathing exercises",
		"Try progressive muscle relaxation techniques",
		"Limit caffeine and alcohol intake",
		"Keep a worry journal to track triggers",
	},
	models.ConditionPTSD: {
		"Consider trauma-focused cognitive behavioral therapy",
		"Practice grounding techniques",
		"Join a support group for trauma survivors",
		"Create a safety plan for triggering situations",
	},
}

// Generate builds the recommendation list for d.
func Generate(d diagnosis.Diagnosis) []string {
	return For(d.Primary, d.Severity, d.Emergency)
}

// For builds the recommendation list from its inputs.
func For(primary models.Condition, severity models.Severity, emergency bool) []string {
	if emergency {
		return []string{EmergencyMessage}
	}

	var out []string
	if severity == models.SeveritySevere {
		out = append(out, SevereActions...)
	}
	out = append(out, ProfessionalEvaluation)
	out = append(out, ConditionActions[primary]...)
	return out
}
