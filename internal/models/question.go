// Package models defines question bank structures for MindScreen.
package models

import (
	"fmt"
	"strings"
)

// QuestionType defines how a question is answered.
type QuestionType string

const (
	// QuestionTypeScale is answered with a number picked from the options.
	QuestionTypeScale QuestionType = "scale"
	// QuestionTypeChoice is answered with one of the option labels.
	QuestionTypeChoice QuestionType = "choice"
	// QuestionTypeText is answered with free text.
	QuestionTypeText QuestionType = "text"
)

// Category is the symptom domain a question belongs to.
type Category string

const (
	CategoryMood      Category = "mood"
	CategoryAnxiety   Category = "anxiety"
	CategoryCognitive Category = "cognitive"
	CategoryStress    Category = "stress"
	CategorySleep     Category = "sleep"
	CategorySubstance Category = "substance"
)

// Tier is the questionnaire phase a question is shown in.
type Tier string

const (
	// TierPrimary questions are always shown.
	TierPrimary Tier = "primary"
	// TierSecondary questions are shown only when a primary trigger fired for their category.
	TierSecondary Tier = "secondary"
)

// Subscale names the standardized clinical scale a question contributes to.
type Subscale string

const (
	SubscaleNone Subscale = ""
	// SubscalePHQ9 is the depression severity scale (max 27).
	SubscalePHQ9 Subscale = "phq9"
	// SubscaleGAD7 is the anxiety severity scale (max 21).
	SubscaleGAD7 Subscale = "gad7"
)

// Subscale maximum totals.
const (
	PHQ9Max = 27
	GAD7Max = 21
)

// TriggerConditionValue is the only follow-up condition the engine evaluates:
// compare the submitted value itself against the threshold.
const TriggerConditionValue = "value"

// FollowUpTrigger enables a category's secondary questions when satisfied.
type FollowUpTrigger struct {
	Condition string  `json:"condition" yaml:"condition"`
	Value     float64 `json:"value" yaml:"value"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Question is a single catalog entry.
type Question struct {
	ID              string           `json:"id" yaml:"id"`
	Text            string           `json:"text" yaml:"text"`
	Type            QuestionType     `json:"type" yaml:"type"`
	Options         []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Category        Category         `json:"category" yaml:"category"`
	Tier            Tier             `json:"tier" yaml:"tier"`
	Weight          float64          `json:"weight" yaml:"weight"`
	FollowUpTrigger *FollowUpTrigger `json:"follow_up_trigger,omitempty" yaml:"follow_up_trigger,omitempty"`
	Subscale        Subscale         `json:"subscale,omitempty" yaml:"subscale,omitempty"`
}

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionTypeScale, QuestionTypeChoice, QuestionTypeText:
		return true
	default:
		return false
	}
}

// IsValidCategory checks if the given category is supported.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryMood, CategoryAnxiety, CategoryCognitive, CategoryStress, CategorySleep, CategorySubstance:
		return true
	default:
		return false
	}
}

// Validate checks a single question's structural invariants.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return ErrEmptyQuestionID
	}
	if !IsValidQuestionType(q.Type) {
		return fmt.Errorf("question %s: %w: %q", q.ID, ErrInvalidQuestionType, q.Type)
	}
	if !IsValidCategory(q.Category) {
		return fmt.Errorf("question %s: %w: %q", q.ID, ErrInvalidCategory, q.Category)
	}
	if q.Tier != TierPrimary && q.Tier != TierSecondary {
		return fmt.Errorf("question %s: %w: %q", q.ID, ErrInvalidTier, q.Tier)
	}
	if q.Type != QuestionTypeText && len(q.Options) == 0 {
		return fmt.Errorf("question %s: %w", q.ID, ErrMissingOptions)
	}
	switch q.Subscale {
	case SubscaleNone, SubscalePHQ9, SubscaleGAD7:
	default:
		return fmt.Errorf("question %s: %w: %q", q.ID, ErrInvalidSubscale, q.Subscale)
	}
	return nil
}

// NoSymptomOption returns the least-severe option label, by convention the first one.
func (q *Question) NoSymptomOption() string {
	if len(q.Options) == 0 {
		return ""
	}
	return q.Options[0]
}

// OptionIndex returns the ordinal of the option label, or -1 if absent.
func (q *Question) OptionIndex(label string) int {
	for i, opt := range q.Options {
		if opt == label {
			return i
		}
	}
	return -1
}
