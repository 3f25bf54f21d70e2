// Package models defines assessment outcome structures for MindScreen.
package models

import "time"

// Condition names a screened condition.
type Condition string

const (
	ConditionDepression Condition = "depression"
	ConditionAnxiety    Condition = "anxiety"
	ConditionPTSD       Condition = "ptsd"
	ConditionBipolar    Condition = "bipolar"
	ConditionGeneral    Condition = "general"
)

// RankedConditions is the declaration order used for ranking and tie-breaks.
var RankedConditions = []Condition{ConditionDepression, ConditionAnxiety, ConditionPTSD}

// Severity is the band derived from clinical subscale totals.
type Severity string

const (
	SeverityMinimal  Severity = "minimal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// RiskLevel is the overall risk communicated to the user.
type RiskLevel string

const (
	RiskLow       RiskLevel = "low"
	RiskMedium    RiskLevel = "medium"
	RiskHigh      RiskLevel = "high"
	RiskEmergency RiskLevel = "emergency"
)

// NLPSignal is the normalized signal bundle for one free-text answer.
type NLPSignal struct {
	QuestionID string                `json:"question_id,omitempty"`
	Sentiment  float64               `json:"sentiment"`
	Emotions   map[Condition]float64 `json:"emotions"`
	Urgency    float64               `json:"urgency"`
	Topics     []string              `json:"topics"`
}

// NLPSummary aggregates the text signals of a run for the stored result.
type NLPSummary struct {
	Emotions       map[Condition]float64 `json:"emotions"`
	Sentiments     map[string]float64    `json:"sentiments"`
	Topics         []string              `json:"topics"`
	EmergencyFlags []string              `json:"emergency_flags"`
}

// RunMetadata describes how a questionnaire run went.
type RunMetadata struct {
	CompletionTime time.Duration `json:"completion_time"`
	QuestionCount  int           `json:"question_count"`
	SkippedCount   int           `json:"skipped_count"`
	RevisedCount   int           `json:"revised_count"`
	Tier2Triggered bool          `json:"tier2_triggered"`
}

// AssessmentResult is produced once per completed run and never mutated afterwards.
type AssessmentResult struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	Scores              map[string]float64 `json:"scores"`
	PrimaryCondition    Condition          `json:"primary_condition"`
	SecondaryConditions []Condition        `json:"secondary_conditions"`
	Severity            Severity           `json:"severity"`
	RiskLevel           RiskLevel          `json:"risk_level"`
	Recommendations     []string           `json:"recommendations"`
	Timestamp           time.Time          `json:"timestamp"`
	NLPAnalysis         *NLPSummary        `json:"nlp_analysis,omitempty"`
	Metadata            *RunMetadata       `json:"metadata,omitempty"`
}

// StoredAssessment pairs a result with the answers that produced it.
type StoredAssessment struct {
	Result  AssessmentResult `json:"result"`
	Answers []Answer         `json:"answers"`
}
