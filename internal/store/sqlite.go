// Package store provides storage backends for MindScreen.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("store.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("store.NewSQLiteStore: DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("store.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("store.NewSQLiteStore: failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("store.NewSQLiteStore: SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("store.NewSQLiteStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("store.NewSQLiteStore: SQLite migrations applied successfully", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

// SaveAssessment inserts a result with its answers. Results are never updated.
func (s *SQLiteStore) SaveAssessment(a models.StoredAssessment) error {
	resultJSON, answersJSON, err := encodeAssessment(a)
	if err != nil {
		slog.Error("SQLiteStore.SaveAssessment: encode failed", "error", err, "id", a.Result.ID)
		return err
	}
	r := a.Result
	_, err = s.db.Exec(`INSERT INTO assessments (id, user_id, primary_condition, severity, risk_level, result_json, answers_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.PrimaryCondition, r.Severity, r.RiskLevel, resultJSON, answersJSON, r.Timestamp)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrDuplicateAssessment, r.ID)
		}
		slog.Error("SQLiteStore.SaveAssessment: failed", "error", err, "id", r.ID, "userID", r.UserID)
		return fmt.Errorf("failed to insert assessment %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore.SaveAssessment: succeeded", "id", r.ID, "userID", r.UserID, "risk", r.RiskLevel)
	return nil
}

// GetAssessment returns the stored result, or nil if unknown.
func (s *SQLiteStore) GetAssessment(id string) (*models.StoredAssessment, error) {
	row := s.db.QueryRow(`SELECT result_json, answers_json FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetAssessment: not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetAssessment: failed", "error", err, "id", id)
		return nil, err
	}
	return &a, nil
}

// ListAssessments returns the user's results, newest first.
func (s *SQLiteStore) ListAssessments(userID string) ([]models.StoredAssessment, error) {
	rows, err := s.db.Query(`SELECT result_json, answers_json FROM assessments WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore.ListAssessments: query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []models.StoredAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListAssessments: scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan assessment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessment rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListAssessments: succeeded", "userID", userID, "count", len(out))
	return out, nil
}

// SaveFlowState stores or updates flow state for a session.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	stateDataJSON, err := encodeStateData(state.StateData)
	if err != nil {
		slog.Error("SQLiteStore.SaveFlowState: JSON marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		state.SessionID, state.FlowType, state.CurrentState, nilIfEmpty(stateDataJSON), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveFlowState: failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore.SaveFlowState: succeeded", "sessionID", state.SessionID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a session.
func (s *SQLiteStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType).Scan(
		&state.SessionID, &state.FlowType, &state.CurrentState,
		&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetFlowState: not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetFlowState: failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}

	state.StateData, err = decodeStateData(stateDataJSON.String)
	if err != nil {
		// Continue with empty map rather than failing
		slog.Error("SQLiteStore.GetFlowState: JSON unmarshal failed", "error", err, "sessionID", sessionID)
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a session.
func (s *SQLiteStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType)
	if err != nil {
		slog.Error("SQLiteStore.DeleteFlowState: failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("SQLiteStore.DeleteFlowState: succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// SaveChatSession appends a relay exchange.
func (s *SQLiteStore) SaveChatSession(session models.ChatSession) error {
	messagesJSON, err := encodeMessages(session.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO chat_sessions (id, user_id, messages_json, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, messagesJSON, session.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveChatSession: failed", "error", err, "id", session.ID, "userID", session.UserID)
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

// ListChatSessions returns the user's chat sessions, newest first.
func (s *SQLiteStore) ListChatSessions(userID string) ([]models.ChatSession, error) {
	rows, err := s.db.Query(`SELECT id, user_id, messages_json, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore.ListChatSessions: query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		c, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("SQLiteStore.Close: closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("SQLiteStore.Close: failed to close SQLite database", "error", err)
	}
	return err
}
