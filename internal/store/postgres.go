// Package store provides storage backends for MindScreen.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("store.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("store.NewPostgresStore: DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("store.NewPostgresStore: failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("store.NewPostgresStore: Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("store.NewPostgresStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("store.NewPostgresStore: Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveAssessment inserts a result with its answers. Results are never updated.
func (s *PostgresStore) SaveAssessment(a models.StoredAssessment) error {
	resultJSON, answersJSON, err := encodeAssessment(a)
	if err != nil {
		slog.Error("PostgresStore.SaveAssessment: encode failed", "error", err, "id", a.Result.ID)
		return err
	}
	r := a.Result
	_, err = s.db.Exec(`INSERT INTO assessments (id, user_id, primary_condition, severity, risk_level, result_json, answers_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, r.PrimaryCondition, r.Severity, r.RiskLevel, resultJSON, answersJSON, r.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateAssessment, r.ID)
		}
		slog.Error("PostgresStore.SaveAssessment: failed", "error", err, "id", r.ID, "userID", r.UserID)
		return fmt.Errorf("failed to insert assessment %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore.SaveAssessment: succeeded", "id", r.ID, "userID", r.UserID, "risk", r.RiskLevel)
	return nil
}

// GetAssessment returns the stored result, or nil if unknown.
func (s *PostgresStore) GetAssessment(id string) (*models.StoredAssessment, error) {
	row := s.db.QueryRow(`SELECT result_json, answers_json FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetAssessment: not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetAssessment: failed", "error", err, "id", id)
		return nil, err
	}
	return &a, nil
}

// ListAssessments returns the user's results, newest first.
func (s *PostgresStore) ListAssessments(userID string) ([]models.StoredAssessment, error) {
	rows, err := s.db.Query(`SELECT result_json, answers_json FROM assessments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore.ListAssessments: query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []models.StoredAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			slog.Error("PostgresStore.ListAssessments: scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan assessment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessment rows: %w", err)
	}
	return out, nil
}

// SaveFlowState stores or updates flow state for a session.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	query := `
		INSERT INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, flow_type)
		DO UPDATE SET
			current_state = EXCLUDED.current_state,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at`

	stateDataJSON, err := encodeStateData(state.StateData)
	if err != nil {
		slog.Error("PostgresStore.SaveFlowState: JSON marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	_, err = s.db.Exec(query, state.SessionID, state.FlowType, state.CurrentState,
		nilIfEmpty(stateDataJSON), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveFlowState: failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("PostgresStore.SaveFlowState: succeeded", "sessionID", state.SessionID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a session.
func (s *PostgresStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType).Scan(
		&state.SessionID, &state.FlowType, &state.CurrentState,
		&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetFlowState: not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetFlowState: failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}

	state.StateData, err = decodeStateData(stateDataJSON.String)
	if err != nil {
		// Continue with empty map rather than failing
		slog.Error("PostgresStore.GetFlowState: JSON unmarshal failed", "error", err, "sessionID", sessionID)
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a session.
func (s *PostgresStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType)
	if err != nil {
		slog.Error("PostgresStore.DeleteFlowState: failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("PostgresStore.DeleteFlowState: succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// SaveChatSession appends a relay exchange.
func (s *PostgresStore) SaveChatSession(session models.ChatSession) error {
	messagesJSON, err := encodeMessages(session.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO chat_sessions (id, user_id, messages_json, created_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, messagesJSON, session.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveChatSession: failed", "error", err, "id", session.ID, "userID", session.UserID)
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

// ListChatSessions returns the user's chat sessions, newest first.
func (s *PostgresStore) ListChatSessions(userID string) ([]models.ChatSession, error) {
	rows, err := s.db.Query(`SELECT id, user_id, messages_json, created_at FROM chat_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore.ListChatSessions: query failed", "error", err, "userID", userID)
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

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("PostgresStore.Close: closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("PostgresStore.Close: failed to close PostgreSQL database", "error", err)
	}
	return err
}
