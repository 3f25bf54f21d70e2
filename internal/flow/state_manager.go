// Package flow provides concrete implementations of state management.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
)

// FlowStateStore is the slice of the store the state manager needs.
type FlowStateStore interface {
	SaveFlowState(state models.FlowState) error
	GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error)
	DeleteFlowState(sessionID string, flowType models.FlowType) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store FlowStateStore
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st FlowStateStore) *StoreBasedStateManager {
	slog.Debug("flow.NewStoreBasedStateManager: creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current state for a session in a flow.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType) (models.StateType, error) {
	slog.Debug("StoreBasedStateManager.GetCurrentState: loading", "sessionID", sessionID, "flowType", flowType)

	flowState, err := sm.store.GetFlowState(sessionID, flowType)
	if err != nil {
		slog.Error("StoreBasedStateManager.GetCurrentState: error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return "", err
	}

	if flowState == nil {
		slog.Debug("StoreBasedStateManager.GetCurrentState: not found", "sessionID", sessionID, "flowType", flowType)
		return "", nil
	}

	return flowState.CurrentState, nil
}

// SetCurrentState updates the current state for a session in a flow.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType, state models.StateType) error {
	slog.Debug("StoreBasedStateManager.SetCurrentState: saving", "sessionID", sessionID, "flowType", flowType, "state", state)

	return sm.update(sessionID, flowType, func(fs *models.FlowState) {
		fs.CurrentState = state
	})
}

// GetStateData retrieves additional data associated with the session's state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey) (string, error) {
	flowState, err := sm.store.GetFlowState(sessionID, flowType)
	if err != nil {
		slog.Error("StoreBasedStateManager.GetStateData: error", "error", err, "sessionID", sessionID, "flowType", flowType, "key", key)
		return "", err
	}

	if flowState == nil || flowState.StateData == nil {
		slog.Debug("StoreBasedStateManager.GetStateData: not found", "sessionID", sessionID, "flowType", flowType, "key", key)
		return "", nil
	}

	return flowState.StateData[key], nil
}

// SetStateData stores additional data associated with the session's state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey, value string) error {
	slog.Debug("StoreBasedStateManager.SetStateData: saving", "sessionID", sessionID, "flowType", flowType, "key", key)

	return sm.update(sessionID, flowType, func(fs *models.FlowState) {
		fs.StateData[key] = value
	})
}

// TransitionState transitions from one state to another.
func (sm *StoreBasedStateManager) TransitionState(ctx context.Context, sessionID string, flowType models.FlowType, fromState, toState models.StateType) error {
	currentState, err := sm.GetCurrentState(ctx, sessionID, flowType)
	if err != nil {
		return err
	}

	if currentState != fromState {
		err := fmt.Errorf("invalid state transition: expected %s, current is %s", fromState, currentState)
		slog.Error("StoreBasedStateManager.TransitionState: invalid transition", "error", err, "sessionID", sessionID, "expected", fromState, "current", currentState)
		return err
	}

	if err := sm.SetCurrentState(ctx, sessionID, flowType, toState); err != nil {
		return err
	}

	slog.Info("StoreBasedStateManager.TransitionState: succeeded", "sessionID", sessionID, "flowType", flowType, "from", fromState, "to", toState)
	return nil
}

// ResetState removes all state data for a session in a flow.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, sessionID string, flowType models.FlowType) error {
	if err := sm.store.DeleteFlowState(sessionID, flowType); err != nil {
		slog.Error("StoreBasedStateManager.ResetState: error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}

	slog.Info("StoreBasedStateManager.ResetState: succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// update loads or creates the flow state, applies fn and saves it.
func (sm *StoreBasedStateManager) update(sessionID string, flowType models.FlowType, fn func(*models.FlowState)) error {
	flowState, err := sm.store.GetFlowState(sessionID, flowType)
	if err != nil {
		slog.Error("StoreBasedStateManager.update: get error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			SessionID: sessionID,
			FlowType:  flowType,
			CreatedAt: now,
		}
	}
	if flowState.StateData == nil {
		flowState.StateData = make(map[models.DataKey]string)
	}
	fn(flowState)
	flowState.UpdatedAt = now

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StoreBasedStateManager.update: save error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	return nil
}
