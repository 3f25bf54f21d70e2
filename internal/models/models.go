// Package models defines the core data structures for MindScreen.
//
// It includes question bank entries, answers, assessment results and the API
// envelope types, which are shared across modules.
package models

import "errors"

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates an answer was recorded.
	APIStatusRecorded APIStatus = "recorded"
	// APIStatusCompleted indicates the questionnaire has no further questions.
	APIStatusCompleted APIStatus = "completed"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Recorded creates a recorded API response carrying the next step of the session.
func Recorded(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRecorded).
		WithResult(result).
		Build()
}

// Completed creates a completed API response carrying the assessment result.
func Completed(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusCompleted).
		WithResult(result).
		Build()
}

// StartAssessmentRequest is the payload for opening a questionnaire session.
type StartAssessmentRequest struct {
	UserID string `json:"user_id"`
}

// Validate checks the request shape.
func (r *StartAssessmentRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// AnswerRequest is the payload for answering the current question.
// Exactly one of Text and Number must be set.
type AnswerRequest struct {
	QuestionID string   `json:"question_id"`
	Text       *string  `json:"text,omitempty"`
	Number     *float64 `json:"number,omitempty"`
}

// Answer request validation errors.
var (
	ErrEmptyQuestionReference = errors.New("question_id is required")
	ErrAmbiguousAnswerValue   = errors.New("exactly one of text or number must be provided")
)

// Validate checks the request shape.
func (r *AnswerRequest) Validate() error {
	if r.QuestionID == "" {
		return ErrEmptyQuestionReference
	}
	if (r.Text == nil) == (r.Number == nil) {
		return ErrAmbiguousAnswerValue
	}
	return nil
}

// Value converts the request payload into an AnswerValue.
func (r *AnswerRequest) Value() AnswerValue {
	if r.Number != nil {
		return NumericValue(*r.Number)
	}
	return TextValue(*r.Text)
}

// SessionView is what the API returns while a questionnaire is in progress.
type SessionView struct {
	SessionID string    `json:"session_id"`
	State     StateType `json:"state"`
	Question  *Question `json:"question,omitempty"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
}
