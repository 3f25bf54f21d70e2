// Package models defines the error kinds shared by the assessment packages.
package models

import (
	"errors"
	"fmt"
)

// Assessment run failures. Any of these aborts the run; no partial result is produced.
var (
	ErrInvalidQuestionReference = errors.New("question is not part of the active question bank")
	ErrIncompleteRun            = errors.New("assessment run has not completed")
	ErrCollaboratorFailure      = errors.New("assessment collaborator failed")
)

// Question bank validation errors.
var (
	ErrEmptyQuestionID     = errors.New("question id cannot be empty")
	ErrDuplicateQuestionID = errors.New("duplicate question id")
	ErrInvalidQuestionType = errors.New("invalid question type")
	ErrInvalidCategory     = errors.New("invalid question category")
	ErrInvalidTier         = errors.New("invalid question tier")
	ErrMissingOptions      = errors.New("scale and choice questions require options")
	ErrInvalidSubscale     = errors.New("invalid subscale")
	ErrTierMismatch        = errors.New("question tier does not match its bank list")
)

// CollaboratorError wraps a failure from an external scorer, matcher or model.
type CollaboratorError struct {
	Collaborator string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorFailure, e.Cause}
}

// NewCollaboratorError wraps err as a collaborator failure.
func NewCollaboratorError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Cause: err}
}
