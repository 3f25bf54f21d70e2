// Package assessment runs the scoring and text analysis of a completed
// questionnaire and assembles the immutable AssessmentResult.
package assessment

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/MindScreen/internal/analysis"
	"github.com/BTreeMap/MindScreen/internal/diagnosis"
	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/BTreeMap/MindScreen/internal/recommend"
	"github.com/BTreeMap/MindScreen/internal/scoring"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TextAnalyzer produces one signal per free-text answer, in submission order.
type TextAnalyzer interface {
	AnalyzeAnswers(ctx context.Context, answers []models.Answer) ([]models.NLPSignal, error)
}

// Assessor turns completed runs into results.
type Assessor struct {
	model    scoring.ConditionScoreModel
	analyzer TextAnalyzer
	now      func() time.Time
	newID    func() string
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithScoreModel sets the condition classifier.
func WithScoreModel(m scoring.ConditionScoreModel) Option {
	return func(a *Assessor) { a.model = m }
}

// WithTextAnalyzer sets the free-text analyzer.
func WithTextAnalyzer(t TextAnalyzer) Option {
	return func(a *Assessor) { a.analyzer = t }
}

// WithClock overrides the result timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// WithIDGenerator overrides result id generation.
func WithIDGenerator(newID func() string) Option {
	return func(a *Assessor) { a.newID = newID }
}

// NewAssessor creates an Assessor using the linear stand-in model and the
// built-in analyzer unless overridden.
func NewAssessor(opts ...Option) *Assessor {
	a := &Assessor{
		model:    scoring.DefaultLinearModel(),
		analyzer: analysis.NewAnalyzer(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess builds the result for a completed engine run.
func (a *Assessor) Assess(ctx context.Context, userID string, e *flow.Engine) (*models.AssessmentResult, error) {
	log, err := e.CompletedLog()
	if err != nil {
		slog.Error("Assessor.Assess: incomplete run", "userID", userID, "state", e.State())
		return nil, err
	}
	md := e.Metadata()
	return a.AssessAnswers(ctx, userID, e.Bank(), log.Active(), &md)
}

// AssessAnswers builds a result from the active answers of a completed run.
// Scoring and text analysis run concurrently; any failure aborts the whole
// assessment and no result is returned.
func (a *Assessor) AssessAnswers(ctx context.Context, userID string, questions scoring.QuestionLookup, answers []models.Answer, md *models.RunMetadata) (*models.AssessmentResult, error) {
	aggregator := scoring.NewAggregator(a.model, questions)

	var (
		scores  scoring.Scores
		signals []models.NLPSignal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := aggregator.Aggregate(gctx, answers)
		if err != nil {
			return err
		}
		scores = s
		return nil
	})
	g.Go(func() error {
		sig, err := a.analyzer.AnalyzeAnswers(gctx, answers)
		if err != nil {
			return err
		}
		signals = sig
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("Assessor.AssessAnswers: assessment failed", "userID", userID, "error", err)
		return nil, err
	}

	d := diagnosis.Resolve(scores, signals)
	result := &models.AssessmentResult{
		ID:                  a.newID(),
		UserID:              userID,
		Scores:              scores.Map(),
		PrimaryCondition:    d.Primary,
		SecondaryConditions: d.Secondary,
		Severity:            d.Severity,
		RiskLevel:           d.RiskLevel,
		Recommendations:     recommend.Generate(d),
		Timestamp:           a.now(),
		NLPAnalysis:         summarize(d, signals),
	}
	if md != nil {
		meta := *md
		result.Metadata = &meta
	}

	slog.Info("Assessor.AssessAnswers: assessment completed", "id", result.ID, "userID", userID, "primary", result.PrimaryCondition, "severity", result.Severity, "risk", result.RiskLevel)
	return result, nil
}

func summarize(d diagnosis.Diagnosis, signals []models.NLPSignal) *models.NLPSummary {
	summary := &models.NLPSummary{
		Emotions:       d.EmotionalScores,
		Sentiments:     make(map[string]float64, len(signals)),
		Topics:         []string{},
		EmergencyFlags: append([]string{}, d.EmergencyFlags...),
	}
	seen := make(map[string]struct{})
	for _, s := range signals {
		summary.Sentiments[s.QuestionID] = s.Sentiment
		for _, t := range s.Topics {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			summary.Topics = append(summary.Topics, t)
		}
	}
	return summary
}
