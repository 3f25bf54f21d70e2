// Package chat relays conversation turns to a language model, primed with the
// user's latest assessment context, and records each exchange.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/MindScreen/internal/genai"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
)

// BaseSystemPrompt frames every relay conversation.
const BaseSystemPrompt = `You are an empathetic and knowledgeable AI mental health assistant. 
Your role is to provide support, guidance, and evidence-based recommendations while maintaining appropriate boundaries.
Always remind users that you are an AI and encourage professional help when needed.`

// SessionStore persists relay exchanges.
type SessionStore interface {
	SaveChatSession(session models.ChatSession) error
	ListChatSessions(userID string) ([]models.ChatSession, error)
}

// ContextSource supplies cached context when a request carries none.
type ContextSource interface {
	GetContext(ctx context.Context, userID string) (*models.ChatContext, error)
}

// Relay forwards chat turns to the model.
type Relay struct {
	client   genai.ClientInterface
	store    SessionStore
	contexts ContextSource
	now      func() time.Time
	newID    func() string
}

// Option configures a Relay.
type Option func(*Relay)

// WithContextSource looks up cached context for requests that carry none.
func WithContextSource(src ContextSource) Option {
	return func(r *Relay) { r.contexts = src }
}

// WithClock overrides the session timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// NewRelay creates a Relay.
func NewRelay(client genai.ClientInterface, store SessionStore, opts ...Option) *Relay {
	r := &Relay{
		client: client,
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SystemPrompt renders the system message for the given context.
func SystemPrompt(c *models.ChatContext) string {
	prompt := BaseSystemPrompt
	if c == nil || c.Diagnosis == "" {
		return prompt
	}
	prompt += fmt.Sprintf("\nThe user has been diagnosed with %s (%s severity).", c.Diagnosis, c.Severity)
	if len(c.PreviousRecommendations) > 0 {
		prompt += "\nPrevious recommendations: " + strings.Join(c.PreviousRecommendations, ", ")
	}
	return prompt
}

// Reply sends the conversation to the model, stores the exchange and returns the assistant message.
func (r *Relay) Reply(ctx context.Context, req models.ChatRequest) (models.ChatMessage, error) {
	if err := req.Validate(); err != nil {
		return models.ChatMessage{}, err
	}

	hints := req.Context
	if hints == nil && r.contexts != nil {
		cached, err := r.contexts.GetContext(ctx, req.UserID)
		if err != nil {
			slog.Warn("Relay.Reply: context lookup failed", "error", err, "userID", req.UserID)
		} else {
			hints = cached
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	messages = append(messages, openai.SystemMessage(SystemPrompt(hints)))
	for _, m := range req.Messages {
		switch m.Role {
		case models.ChatRoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	slog.Debug("Relay.Reply: generating reply", "userID", req.UserID, "turns", len(req.Messages), "hasContext", hints != nil)
	text, err := r.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("Relay.Reply: generation failed", "error", err, "userID", req.UserID)
		return models.ChatMessage{}, models.NewCollaboratorError("chat model", err)
	}
	reply := models.ChatMessage{Role: models.ChatRoleAssistant, Content: text}

	session := models.ChatSession{
		ID:        r.newID(),
		UserID:    req.UserID,
		Messages:  append(append([]models.ChatMessage(nil), req.Messages...), reply),
		CreatedAt: r.now(),
	}
	if err := r.store.SaveChatSession(session); err != nil {
		slog.Error("Relay.Reply: save failed", "error", err, "userID", req.UserID)
		return models.ChatMessage{}, fmt.Errorf("failed to save chat session: %w", err)
	}
	return reply, nil
}

// History returns the user's stored exchanges, newest first.
func (r *Relay) History(userID string) ([]models.ChatSession, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	return r.store.ListChatSessions(userID)
}
