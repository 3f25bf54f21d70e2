// Package models defines answer records collected by the questionnaire engine.
package models

import (
	"strconv"
	"time"
)

// ValueKind tags the variant held by an AnswerValue.
type ValueKind string

const (
	ValueKindText    ValueKind = "text"
	ValueKindNumeric ValueKind = "numeric"
)

// AnswerValue is a tagged string-or-number answer payload.
//
// Choice answers are stored as numeric (the option ordinal) with Text holding the
// selected label, so both categorical comparisons and numeric sums are possible.
type AnswerValue struct {
	Kind   ValueKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
}

// TextValue builds a text answer.
func TextValue(s string) AnswerValue {
	return AnswerValue{Kind: ValueKindText, Text: s}
}

// NumericValue builds a numeric answer.
func NumericValue(n float64) AnswerValue {
	return AnswerValue{Kind: ValueKindNumeric, Number: n}
}

// ChoiceValue builds a numeric answer that remembers the chosen label.
func ChoiceValue(ordinal int, label string) AnswerValue {
	return AnswerValue{Kind: ValueKindNumeric, Number: float64(ordinal), Text: label}
}

// IsNumeric reports whether the value carries a number.
func (v AnswerValue) IsNumeric() bool {
	return v.Kind == ValueKindNumeric
}

// IsText reports whether the value is free text.
func (v AnswerValue) IsText() bool {
	return v.Kind == ValueKindText
}

// NumericOrZero returns the number for numeric values and 0 for text.
func (v AnswerValue) NumericOrZero() float64 {
	if v.Kind != ValueKindNumeric {
		return 0
	}
	return v.Number
}

// String renders the value for logs and storage.
func (v AnswerValue) String() string {
	if v.Kind == ValueKindNumeric {
		if v.Text != "" {
			return v.Text
		}
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// AnswerMetadata records how an answer was given.
type AnswerMetadata struct {
	ResponseTime time.Duration `json:"response_time"`
	Skipped      bool          `json:"skipped"`
	Revised      bool          `json:"revised"`
}

// Answer is one submitted response to a question.
type Answer struct {
	QuestionID string         `json:"question_id"`
	Value      AnswerValue    `json:"value"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   AnswerMetadata `json:"metadata"`
}
