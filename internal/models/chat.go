// Package models defines conversational relay structures for MindScreen.
package models

import (
	"errors"
	"time"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single turn in a relay conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatContext is the assessment context handed to the conversational relay as hints.
type ChatContext struct {
	Diagnosis               Condition `json:"diagnosis,omitempty"`
	Severity                Severity  `json:"severity,omitempty"`
	PreviousRecommendations []string  `json:"previous_recommendations,omitempty"`
}

// ChatContextFromResult builds relay hints from a finished assessment.
func ChatContextFromResult(r AssessmentResult) ChatContext {
	return ChatContext{
		Diagnosis:               r.PrimaryCondition,
		Severity:                r.Severity,
		PreviousRecommendations: append([]string(nil), r.Recommendations...),
	}
}

// ChatSession is a stored relay exchange.
type ChatSession struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChatRequest is the payload for a relay turn.
type ChatRequest struct {
	UserID   string        `json:"user_id"`
	Messages []ChatMessage `json:"messages"`
	Context  *ChatContext  `json:"context,omitempty"`
}

// Chat request validation errors.
var (
	ErrEmptyUserID   = errors.New("user_id is required")
	ErrEmptyMessages = errors.New("at least one message is required")
	ErrInvalidRole   = errors.New("invalid chat message role")
)

// Validate checks the request shape.
func (r *ChatRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if len(r.Messages) == 0 {
		return ErrEmptyMessages
	}
	for _, m := range r.Messages {
		switch m.Role {
		case ChatRoleUser, ChatRoleAssistant:
		default:
			return ErrInvalidRole
		}
	}
	return nil
}
