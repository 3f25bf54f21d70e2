// Package store provides storage backends for MindScreen.
//
// It includes an in-memory store plus SQLite and PostgreSQL backends for
// assessment results, parked questionnaire sessions, chat sessions and the
// crisis alert outbox.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/google/uuid"
)

// ErrDuplicateAssessment is returned when a result id is stored twice.
var ErrDuplicateAssessment = errors.New("assessment already stored")

// Store is the persistence contract shared by all backends.
type Store interface {
	OutboxRepo

	SaveAssessment(a models.StoredAssessment) error
	GetAssessment(id string) (*models.StoredAssessment, error)
	ListAssessments(userID string) ([]models.StoredAssessment, error)

	SaveFlowState(state models.FlowState) error
	GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error)
	DeleteFlowState(sessionID string, flowType models.FlowType) error

	SaveChatSession(session models.ChatSession) error
	ListChatSessions(userID string) ([]models.ChatSession, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN    string
	Driver string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// WithSQLiteDSN configures the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// DetectDSNType returns "postgres" for PostgreSQL URLs or key=value connection
// strings and "sqlite3" for anything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "user=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by the options. With no DSN it returns an InMemoryStore.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		return NewInMemoryStore(), nil
	case cfg.Driver == "postgres" || (cfg.Driver == "" && DetectDSNType(cfg.DSN) == "postgres"):
		return NewPostgresStore(WithPostgresDSN(cfg.DSN))
	default:
		return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
	}
}

// InMemoryStore keeps everything in process memory. It is safe for concurrent use.
type InMemoryStore struct {
	mu          sync.RWMutex
	assessments []models.StoredAssessment
	flowStates  map[string]models.FlowState
	chats       []models.ChatSession
	outbox      []OutboxMessage
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flowStates: make(map[string]models.FlowState)}
}

func (s *InMemoryStore) SaveAssessment(a models.StoredAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assessments {
		if existing.Result.ID == a.Result.ID {
			return ErrDuplicateAssessment
		}
	}
	s.assessments = append(s.assessments, a)
	return nil
}

func (s *InMemoryStore) GetAssessment(id string) (*models.StoredAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assessments {
		if a.Result.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

// ListAssessments returns the user's results, newest first.
func (s *InMemoryStore) ListAssessments(userID string) ([]models.StoredAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StoredAssessment
	for _, a := range s.assessments {
		if a.Result.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.Timestamp.After(out[j].Result.Timestamp)
	})
	return out, nil
}

func flowKey(sessionID string, flowType models.FlowType) string {
	return string(flowType) + "/" + sessionID
}

func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[models.DataKey]string, len(state.StateData))
	for k, v := range state.StateData {
		data[k] = v
	}
	state.StateData = data
	s.flowStates[flowKey(state.SessionID, state.FlowType)] = state
	return nil
}

func (s *InMemoryStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.flowStates[flowKey(sessionID, flowType)]
	if !ok {
		return nil, nil
	}
	data := make(map[models.DataKey]string, len(state.StateData))
	for k, v := range state.StateData {
		data[k] = v
	}
	state.StateData = data
	return &state, nil
}

func (s *InMemoryStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flowStates, flowKey(sessionID, flowType))
	return nil
}

func (s *InMemoryStore) SaveChatSession(session models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Messages = append([]models.ChatMessage(nil), session.Messages...)
	s.chats = append(s.chats, session)
	return nil
}

// ListChatSessions returns the user's chat sessions, newest first.
func (s *InMemoryStore) ListChatSessions(userID string) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatSession
	for i := len(s.chats) - 1; i >= 0; i-- {
		if s.chats[i].UserID == userID {
			out = append(out, s.chats[i])
		}
	}
	return out, nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(userID, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusCanceled {
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	m := OutboxMessage{
		ID:          "outbox_" + uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.outbox = append(s.outbox, m)
	return m.ID, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []OutboxMessage
	for i := range s.outbox {
		if len(claimed) >= limit {
			break
		}
		m := &s.outbox[i]
		if m.Status != OutboxStatusQueued || (m.NextAttemptAt != nil && m.NextAttemptAt.After(now)) {
			continue
		}
		locked := now
		m.Status = OutboxStatusSending
		m.LockedAt = &locked
		m.UpdatedAt = now
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
	})
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		next := nextAttemptAt
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &next
		m.LockedAt = nil
		m.Status = OutboxStatusQueued
		if m.Attempts >= MaxOutboxAttempts {
			m.Status = OutboxStatusFailed
		}
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.outbox {
		m := &s.outbox[i]
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			m.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// OutboxMessages returns a copy of every outbox record, for inspection in tests and tooling.
func (s *InMemoryStore) OutboxMessages() []OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]OutboxMessage(nil), s.outbox...)
}

func (s *InMemoryStore) updateOutbox(id string, fn func(*OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			s.outbox[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
