package assessment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// ResultStore persists results together with the answers that produced them.
type ResultStore interface {
	SaveAssessment(a models.StoredAssessment) error
	ListAssessments(userID string) ([]models.StoredAssessment, error)
}

// CrisisNotifier alerts on-call staff about an emergency result.
type CrisisNotifier interface {
	NotifyCrisis(ctx context.Context, result models.AssessmentResult) error
}

// ContextCache keeps the latest chat context per user.
type ContextCache interface {
	SetContext(ctx context.Context, userID string, c models.ChatContext) error
}

// Service completes runs: it assesses, persists, alerts and primes the chat context.
type Service struct {
	assessor *Assessor
	store    ResultStore
	notifier CrisisNotifier
	cache    ContextCache
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sends crisis alerts for emergency results.
func WithNotifier(n CrisisNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithContextCache stores the chat context of each new result.
func WithContextCache(c ContextCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// NewService creates a Service.
func NewService(assessor *Assessor, store ResultStore, opts ...ServiceOption) *Service {
	s := &Service{assessor: assessor, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete assesses a completed run and persists the result with the full answer log.
// Alert and cache failures are logged; they do not fail the assessment.
func (s *Service) Complete(ctx context.Context, userID string, e *flow.Engine) (*models.AssessmentResult, error) {
	result, err := s.assessor.Assess(ctx, userID, e)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveAssessment(models.StoredAssessment{Result: *result, Answers: e.Log().Records()}); err != nil {
		slog.Error("Service.Complete: save failed", "error", err, "id", result.ID, "userID", userID)
		return nil, fmt.Errorf("failed to save assessment: %w", err)
	}

	if result.RiskLevel == models.RiskEmergency && s.notifier != nil {
		if err := s.notifier.NotifyCrisis(ctx, *result); err != nil {
			slog.Error("Service.Complete: crisis alert failed", "error", err, "id", result.ID, "userID", userID)
		}
	}
	if s.cache != nil {
		if err := s.cache.SetContext(ctx, userID, models.ChatContextFromResult(*result)); err != nil {
			slog.Warn("Service.Complete: context cache failed", "error", err, "userID", userID)
		}
	}
	return result, nil
}

// History lists a user's stored results, newest first.
func (s *Service) History(userID string) ([]models.StoredAssessment, error) {
	items, err := s.store.ListAssessments(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return items, nil
}
