package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// ErrSessionNotFound is returned when no engine is parked under a session id.
var ErrSessionNotFound = errors.New("questionnaire session not found")

// SessionManager parks questionnaire engines in a StateManager between requests.
type SessionManager struct {
	states StateManager
	bank   *bank.Bank
	opts   []EngineOption
}

// NewSessionManager creates a SessionManager for engines running on b.
func NewSessionManager(states StateManager, b *bank.Bank, opts ...EngineOption) *SessionManager {
	return &SessionManager{states: states, bank: b, opts: opts}
}

// Start creates a fresh engine for the user and saves it under sessionID.
func (m *SessionManager) Start(ctx context.Context, sessionID, userID string) (*Engine, error) {
	e := NewEngine(m.bank, m.opts...)
	if err := m.states.SetStateData(ctx, sessionID, models.FlowTypeQuestionnaire, models.DataKeyUserID, userID); err != nil {
		return nil, fmt.Errorf("failed to record session owner: %w", err)
	}
	if err := m.states.SetStateData(ctx, sessionID, models.FlowTypeQuestionnaire, models.DataKeyBankVersion, m.bank.Version()); err != nil {
		return nil, fmt.Errorf("failed to record bank version: %w", err)
	}
	if err := m.Save(ctx, sessionID, e); err != nil {
		return nil, err
	}
	slog.Info("SessionManager.Start: session started", "sessionID", sessionID, "userID", userID)
	return e, nil
}

// Save writes the engine snapshot and its state under sessionID.
func (m *SessionManager) Save(ctx context.Context, sessionID string, e *Engine) error {
	data, err := json.Marshal(e.Snapshot())
	if err != nil {
		slog.Error("SessionManager.Save: marshal failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to encode engine snapshot: %w", err)
	}
	if err := m.states.SetStateData(ctx, sessionID, models.FlowTypeQuestionnaire, models.DataKeyEngineSnapshot, string(data)); err != nil {
		return fmt.Errorf("failed to save engine snapshot: %w", err)
	}
	if err := m.states.SetCurrentState(ctx, sessionID, models.FlowTypeQuestionnaire, e.State()); err != nil {
		return fmt.Errorf("failed to save engine state: %w", err)
	}
	return nil
}

// Load restores the engine parked under sessionID along with its owner.
func (m *SessionManager) Load(ctx context.Context, sessionID string) (*Engine, string, error) {
	raw, err := m.states.GetStateData(ctx, sessionID, models.FlowTypeQuestionnaire, models.DataKeyEngineSnapshot)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load engine snapshot: %w", err)
	}
	if raw == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	userID, err := m.states.GetStateData(ctx, sessionID, models.FlowTypeQuestionnaire, models.DataKeyUserID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load session owner: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		slog.Error("SessionManager.Load: unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	e, err := Restore(m.bank, snap, m.opts...)
	if err != nil {
		return nil, "", err
	}
	return e, userID, nil
}

// End discards the session.
func (m *SessionManager) End(ctx context.Context, sessionID string) error {
	return m.states.ResetState(ctx, sessionID, models.FlowTypeQuestionnaire)
}
