// Package analysis derives NLP signals from free-text answers through injected
// sentiment, keyword and topic capabilities.
package analysis

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/MindScreen/internal/models"
	"golang.org/x/sync/errgroup"
)

// SentimentScorer returns a normalized sentiment score, negative for negative text.
type SentimentScorer interface {
	Sentiment(ctx context.Context, text string) (float64, error)
}

// EmotionMatcher returns the fraction of keywords present in text.
type EmotionMatcher interface {
	Match(ctx context.Context, text string, keywords []string) (float64, error)
}

// UrgencyMatcher returns the fraction of urgency keywords present in text.
type UrgencyMatcher interface {
	Match(ctx context.Context, text string, keywords []string) (float64, error)
}

// TopicExtractor lists the topics mentioned in text.
type TopicExtractor interface {
	Topics(ctx context.Context, text string) ([]string, error)
}

// EmotionKeywords are matched per condition to build the emotion scores.
var EmotionKeywords = map[models.Condition][]string{
	models.ConditionDepression: {"sad", "hopeless", "worthless", "tired", "empty", "lonely"},
	models.ConditionAnxiety:    {"worried", "nervous", "panic", "fear", "stress", "tense"},
	models.ConditionPTSD:       {"flashback", "nightmare", "trauma", "avoid", "startle", "trigger"},
	models.ConditionBipolar:    {"manic", "energy", "racing", "impulsive", "high", "low"},
}

// emotionOrder fixes the iteration order over EmotionKeywords.
var emotionOrder = []models.Condition{
	models.ConditionDepression,
	models.ConditionAnxiety,
	models.ConditionPTSD,
	models.ConditionBipolar,
}

// UrgencyKeywords drive the urgency score.
var UrgencyKeywords = []string{"immediately", "emergency", "crisis", "suicide", "harm"}

// Opts holds the analyzer collaborators.
type Opts struct {
	Sentiment   SentimentScorer
	Emotions    EmotionMatcher
	Urgency     UrgencyMatcher
	Topics      TopicExtractor
	Concurrency int
}

// Option configures an Analyzer.
type Option func(*Opts)

// WithSentimentScorer overrides the sentiment capability.
func WithSentimentScorer(s SentimentScorer) Option {
	return func(o *Opts) { o.Sentiment = s }
}

// WithEmotionMatcher overrides the emotion keyword capability.
func WithEmotionMatcher(m EmotionMatcher) Option {
	return func(o *Opts) { o.Emotions = m }
}

// WithUrgencyMatcher overrides the urgency keyword capability.
func WithUrgencyMatcher(m UrgencyMatcher) Option {
	return func(o *Opts) { o.Urgency = m }
}

// WithTopicExtractor overrides the topic capability.
func WithTopicExtractor(t TopicExtractor) Option {
	return func(o *Opts) { o.Topics = t }
}

// WithConcurrency bounds how many answers are analysed at once. Values below 1 mean unbounded.
func WithConcurrency(n int) Option {
	return func(o *Opts) { o.Concurrency = n }
}

// Analyzer produces one NLPSignal per free-text answer.
type Analyzer struct {
	opts Opts
}

// NewAnalyzer creates an Analyzer with the built-in lexicon, keyword and topic
// collaborators unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	o := Opts{
		Sentiment:   NewLexiconScorer(),
		Emotions:    KeywordMatcher{},
		Urgency:     KeywordMatcher{},
		Topics:      NewTermTopicExtractor(),
		Concurrency: 4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Analyzer{opts: o}
}

// Analyze builds the signal bundle for one text.
func (a *Analyzer) Analyze(ctx context.Context, text string) (models.NLPSignal, error) {
	sentiment, err := a.opts.Sentiment.Sentiment(ctx, text)
	if err != nil {
		return models.NLPSignal{}, models.NewCollaboratorError("sentiment scorer", err)
	}

	emotions := make(map[models.Condition]float64, len(emotionOrder))
	for _, c := range emotionOrder {
		score, err := a.opts.Emotions.Match(ctx, text, EmotionKeywords[c])
		if err != nil {
			return models.NLPSignal{}, models.NewCollaboratorError("emotion matcher", err)
		}
		emotions[c] = score
	}

	urgency, err := a.opts.Urgency.Match(ctx, text, UrgencyKeywords)
	if err != nil {
		return models.NLPSignal{}, models.NewCollaboratorError("urgency matcher", err)
	}

	topics, err := a.opts.Topics.Topics(ctx, text)
	if err != nil {
		return models.NLPSignal{}, models.NewCollaboratorError("topic extractor", err)
	}
	if topics == nil {
		topics = []string{}
	}

	return models.NLPSignal{
		Sentiment: sentiment,
		Emotions:  emotions,
		Urgency:   urgency,
		Topics:    topics,
	}, nil
}

// AnalyzeAnswers analyses every non-skipped free-text answer. Answers run in
// parallel and the signals come back in submission order.
func (a *Analyzer) AnalyzeAnswers(ctx context.Context, answers []models.Answer) ([]models.NLPSignal, error) {
	var texts []models.Answer
	for _, ans := range answers {
		if ans.Metadata.Skipped || !ans.Value.IsText() || ans.Value.Text == "" {
			continue
		}
		texts = append(texts, ans)
	}
	signals := make([]models.NLPSignal, len(texts))
	if len(texts) == 0 {
		return signals, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.opts.Concurrency > 0 {
		g.SetLimit(a.opts.Concurrency)
	}
	for i, ans := range texts {
		i, ans := i, ans
		g.Go(func() error {
			sig, err := a.Analyze(gctx, ans.Value.Text)
			if err != nil {
				slog.Error("Analyzer.AnalyzeAnswers: failed", "questionID", ans.QuestionID, "error", err)
				return err
			}
			sig.QuestionID = ans.QuestionID
			signals[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Analyzer.AnalyzeAnswers: completed", "signals", len(signals))
	return signals, nil
}
