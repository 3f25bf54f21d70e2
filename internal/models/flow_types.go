// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType represents a specific type of flow
type FlowType string

// StateType represents a specific state within a flow
type StateType string

// DataKey represents a key for storing state-specific data
type DataKey string

// Flow type constants.
const (
	FlowTypeQuestionnaire FlowType = "questionnaire"
)

// State constants for the questionnaire flow.
const (
	StateAwaitingPrimary   StateType = "AWAITING_PRIMARY"
	StateAwaitingSecondary StateType = "AWAITING_SECONDARY"
	StateCompleted         StateType = "COMPLETED"
)

// Data key constants for the questionnaire flow.
const (
	DataKeyEngineSnapshot DataKey = "engineSnapshot" // JSON-encoded engine snapshot
	DataKeyUserID         DataKey = "userID"
	DataKeyBankVersion    DataKey = "bankVersion"
)
