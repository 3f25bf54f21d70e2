package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/MindScreen/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeAssessment renders the JSON columns of an assessments row.
func encodeAssessment(a models.StoredAssessment) (resultJSON, answersJSON string, err error) {
	r, err := json.Marshal(a.Result)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode assessment result: %w", err)
	}
	answers := a.Answers
	if answers == nil {
		answers = []models.Answer{}
	}
	ans, err := json.Marshal(answers)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode assessment answers: %w", err)
	}
	return string(r), string(ans), nil
}

// scanAssessment reads the result_json and answers_json columns.
func scanAssessment(row rowScanner) (models.StoredAssessment, error) {
	var a models.StoredAssessment
	var resultJSON, answersJSON string
	if err := row.Scan(&resultJSON, &answersJSON); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return a, fmt.Errorf("failed to decode assessment result: %w", err)
	}
	if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
		return a, fmt.Errorf("failed to decode assessment answers: %w", err)
	}
	return a, nil
}

// encodeStateData renders flow state data as JSON, or "" when empty.
func encodeStateData(data map[models.DataKey]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeStateData parses flow state JSON. Malformed data yields an empty map.
func decodeStateData(raw string) (map[models.DataKey]string, error) {
	data := make(map[models.DataKey]string)
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return make(map[models.DataKey]string), err
	}
	return data, nil
}

// scanChatSession reads id, user_id, messages_json and created_at.
func scanChatSession(row rowScanner) (models.ChatSession, error) {
	var c models.ChatSession
	var messagesJSON string
	if err := row.Scan(&c.ID, &c.UserID, &messagesJSON, &c.CreatedAt); err != nil {
		return c, fmt.Errorf("scan chat session failed: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &c.Messages); err != nil {
		return c, fmt.Errorf("failed to decode chat messages: %w", err)
	}
	return c, nil
}

// scanOutboxMessage scans an OutboxMessage from a row.
func scanOutboxMessage(row rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON, dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.UserID, &m.Kind, &payloadJSON, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.PayloadJSON = payloadJSON.String
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

// encodeMessages renders chat messages as JSON, never as null.
func encodeMessages(msgs []models.ChatMessage) (string, error) {
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat messages: %w", err)
	}
	return string(b), nil
}
