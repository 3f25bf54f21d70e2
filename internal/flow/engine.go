// Package flow implements the adaptive questionnaire state machine.
//
// The engine starts with every primary and open-text question, collects trigger
// categories while the primary tier is answered, and appends the matching
// secondary questions before completing. States move strictly forward:
// AWAITING_PRIMARY → AWAITING_SECONDARY → COMPLETED, with the secondary state
// skipped when no trigger fired or no secondary question matches.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// Engine errors that reject a single call without ending the run.
var (
	ErrRunCompleted         = errors.New("questionnaire already completed")
	ErrQuestionNotPresented = errors.New("question has not been presented yet")
	ErrNotCurrentQuestion   = errors.New("only the current question can be skipped")
	ErrInvalidAnswerValue   = errors.New("answer value does not fit the question")
	ErrBankVersionMismatch  = errors.New("snapshot was taken against a different question bank version")
	ErrInvalidSnapshot      = errors.New("invalid engine snapshot")
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine drives one questionnaire run. It is not safe for concurrent use;
// each run owns its engine.
type Engine struct {
	bank        *bank.Bank
	state       models.StateType
	active      []models.Question
	index       int
	triggers    map[models.Category]struct{}
	log         *AnswerLog
	presentedAt map[string]time.Time
	startedAt   time.Time
	completedAt time.Time
	transitions []models.StateTransition
	now         func() time.Time
}

// NewEngine creates an engine positioned on the first primary question.
func NewEngine(b *bank.Bank, opts ...EngineOption) *Engine {
	e := &Engine{
		bank:        b,
		state:       models.StateAwaitingPrimary,
		active:      b.InitialList(),
		triggers:    make(map[models.Category]struct{}),
		log:         NewAnswerLog(),
		presentedAt: make(map[string]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startedAt = e.now()
	slog.Debug("flow.NewEngine: engine created", "bankVersion", b.Version(), "questions", len(e.active))

	if len(e.active) == 0 {
		e.finishTier()
	} else {
		e.present()
	}
	return e
}

// State returns the current state of the run.
func (e *Engine) State() models.StateType { return e.state }

// Completed reports whether no further question is available.
func (e *Engine) Completed() bool { return e.state == models.StateCompleted }

// CurrentQuestion returns the question to present, or false once the run is completed.
func (e *Engine) CurrentQuestion() (models.Question, bool) {
	if e.state == models.StateCompleted || e.index >= len(e.active) {
		return models.Question{}, false
	}
	return e.active[e.index], true
}

// Progress returns the zero-based position within the current tier and the tier length.
func (e *Engine) Progress() (index, total int) {
	return e.index, len(e.active)
}

// Triggers returns the trigger categories collected so far, sorted.
func (e *Engine) Triggers() []models.Category {
	out := make([]models.Category, 0, len(e.triggers))
	for c := range e.triggers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transitions returns the tier transitions taken so far.
func (e *Engine) Transitions() []models.StateTransition {
	return append([]models.StateTransition(nil), e.transitions...)
}

// Bank returns the question bank the engine runs on.
func (e *Engine) Bank() *bank.Bank { return e.bank }

// SubmitAnswer records an answer for a presented question.
//
// Choice answers given as an option label are stored as the option ordinal with
// the label kept. While the primary tier is active, the question's follow-up
// trigger is evaluated and its category added to the trigger set when it fires.
// SubmitAnswer does not move to the next question; call Advance for that.
func (e *Engine) SubmitAnswer(q models.Question, value models.AnswerValue) error {
	if e.state == models.StateCompleted {
		return ErrRunCompleted
	}
	bankQ, err := e.resolve(q.ID)
	if err != nil {
		return err
	}
	normalized, err := normalizeValue(bankQ, value)
	if err != nil {
		slog.Warn("Engine.SubmitAnswer: rejected value", "questionID", bankQ.ID, "error", err)
		return err
	}

	now := e.now()
	answer := models.Answer{
		QuestionID: bankQ.ID,
		Value:      normalized,
		Timestamp:  now,
		Metadata: models.AnswerMetadata{
			ResponseTime: e.responseTime(bankQ.ID, now),
			Skipped:      false,
			Revised:      e.log.Has(bankQ.ID),
		},
	}
	e.log.append(answer)

	if e.state == models.StateAwaitingPrimary && bankQ.FollowUpTrigger != nil && triggerFires(bankQ, normalized) {
		if _, seen := e.triggers[bankQ.Category]; !seen {
			slog.Debug("Engine.SubmitAnswer: trigger fired", "questionID", bankQ.ID, "category", bankQ.Category)
		}
		e.triggers[bankQ.Category] = struct{}{}
	}

	slog.Debug("Engine.SubmitAnswer: recorded", "questionID", bankQ.ID, "revised", answer.Metadata.Revised, "state", e.state)
	return nil
}

// Skip records a skipped answer for the current question and advances.
func (e *Engine) Skip(q models.Question) error {
	if e.state == models.StateCompleted {
		return ErrRunCompleted
	}
	bankQ, err := e.resolve(q.ID)
	if err != nil {
		return err
	}
	if current, ok := e.CurrentQuestion(); !ok || current.ID != bankQ.ID {
		return ErrNotCurrentQuestion
	}

	now := e.now()
	e.log.append(models.Answer{
		QuestionID: bankQ.ID,
		Value:      models.TextValue(""),
		Timestamp:  now,
		Metadata: models.AnswerMetadata{
			ResponseTime: e.responseTime(bankQ.ID, now),
			Skipped:      true,
			Revised:      e.log.Has(bankQ.ID),
		},
	})
	slog.Debug("Engine.Skip: recorded", "questionID", bankQ.ID)
	e.Advance()
	return nil
}

// Advance moves to the next question, applying the tier transition rule when the
// current list is exhausted. It returns the state after moving.
func (e *Engine) Advance() models.StateType {
	if e.state == models.StateCompleted {
		return e.state
	}
	if e.index < len(e.active)-1 {
		e.index++
		e.present()
		return e.state
	}
	e.finishTier()
	return e.state
}

// Previous steps back one question within the current tier. It reports whether it moved.
func (e *Engine) Previous() bool {
	if e.state == models.StateCompleted || e.index == 0 {
		return false
	}
	e.index--
	e.presentedAt[e.active[e.index].ID] = e.now()
	return true
}

// Log returns a copy of the answers collected so far.
func (e *Engine) Log() *AnswerLog { return e.log.Clone() }

// CompletedLog returns the final answer log, or ErrIncompleteRun before completion.
func (e *Engine) CompletedLog() (*AnswerLog, error) {
	if e.state != models.StateCompleted {
		return nil, fmt.Errorf("%w: engine is in state %s", models.ErrIncompleteRun, e.state)
	}
	return e.log.Clone(), nil
}

// Metadata summarises the run for the stored result.
func (e *Engine) Metadata() models.RunMetadata {
	md := models.RunMetadata{QuestionCount: e.log.Len()}
	for _, a := range e.log.Active() {
		if a.Metadata.Skipped {
			md.SkippedCount++
		}
	}
	for _, a := range e.log.Records() {
		if a.Metadata.Revised {
			md.RevisedCount++
		}
	}
	for _, t := range e.transitions {
		if t.ToState == models.StateAwaitingSecondary {
			md.Tier2Triggered = true
		}
	}
	end := e.completedAt
	if end.IsZero() {
		end = e.now()
	}
	md.CompletionTime = end.Sub(e.startedAt)
	return md
}

func (e *Engine) resolve(id string) (models.Question, error) {
	q, ok := e.bank.Lookup(id)
	if !ok {
		slog.Error("Engine.resolve: received unknown question", "questionID", id, "bankVersion", e.bank.Version())
		return models.Question{}, fmt.Errorf("%w: %s", models.ErrInvalidQuestionReference, id)
	}
	if _, presented := e.presentedAt[id]; !presented {
		return models.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotPresented, id)
	}
	return q, nil
}

func (e *Engine) present() {
	q := e.active[e.index]
	if _, ok := e.presentedAt[q.ID]; !ok {
		e.presentedAt[q.ID] = e.now()
	}
}

func (e *Engine) responseTime(id string, now time.Time) time.Duration {
	start, ok := e.presentedAt[id]
	if !ok {
		return 0
	}
	if d := now.Sub(start); d > 0 {
		return d
	}
	return 0
}

func (e *Engine) finishTier() {
	if e.state == models.StateAwaitingPrimary && len(e.triggers) > 0 {
		secondary := e.bank.SecondaryFor(e.triggers)
		if len(secondary) > 0 {
			e.transition(models.StateAwaitingSecondary, "triggers="+joinCategories(e.Triggers()))
			e.active = secondary
			e.index = 0
			e.present()
			return
		}
		slog.Debug("Engine.finishTier: triggers matched no secondary questions", "triggers", e.Triggers())
	}
	e.transition(models.StateCompleted, "questions exhausted")
	e.index = len(e.active)
	e.completedAt = e.now()
}

func (e *Engine) transition(to models.StateType, condition string) {
	e.transitions = append(e.transitions, models.StateTransition{FromState: e.state, ToState: to, Condition: condition})
	slog.Info("Engine.transition: state changed", "from", e.state, "to", to, "condition", condition)
	e.state = to
}

// triggerFires evaluates a follow-up trigger against a normalized value.
// Labelled choice answers are categorical: they fire unless they equal the
// no-symptom option. Plain numbers fire at or above the threshold.
func triggerFires(q models.Question, v models.AnswerValue) bool {
	t := q.FollowUpTrigger
	if t.Condition != "" && t.Condition != models.TriggerConditionValue {
		slog.Warn("flow.triggerFires: unsupported trigger condition", "questionID", q.ID, "condition", t.Condition)
		return false
	}
	if q.Type == models.QuestionTypeChoice && v.Text != "" {
		return v.Text != q.NoSymptomOption()
	}
	if v.IsNumeric() {
		return v.Number >= t.Threshold
	}
	return false
}

func normalizeValue(q models.Question, v models.AnswerValue) (models.AnswerValue, error) {
	if v.IsNumeric() && (math.IsNaN(v.Number) || math.IsInf(v.Number, 0)) {
		return v, fmt.Errorf("%w: non-finite value for %s", ErrInvalidAnswerValue, q.ID)
	}
	switch q.Type {
	case models.QuestionTypeText:
		if !v.IsText() {
			return v, fmt.Errorf("%w: question %s expects text", ErrInvalidAnswerValue, q.ID)
		}
		return v, nil
	case models.QuestionTypeChoice:
		idx := -1
		if v.IsNumeric() {
			if v.Number == math.Trunc(v.Number) && v.Number >= 0 && v.Number < float64(len(q.Options)) {
				idx = int(v.Number)
			}
		} else {
			idx = q.OptionIndex(v.Text)
		}
		if idx < 0 {
			return v, fmt.Errorf("%w: %s is not an option of %s", ErrInvalidAnswerValue, v, q.ID)
		}
		return models.ChoiceValue(idx, q.Options[idx]), nil
	case models.QuestionTypeScale:
		n := v.Number
		if !v.IsNumeric() {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
			if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
				return v, fmt.Errorf("%w: %q is not a number for %s", ErrInvalidAnswerValue, v.Text, q.ID)
			}
			n = parsed
		}
		if !scaleAllows(q, n) {
			return v, fmt.Errorf("%w: %v is outside the scale of %s", ErrInvalidAnswerValue, n, q.ID)
		}
		return models.NumericValue(n), nil
	}
	return v, fmt.Errorf("%w: unknown question type %s", ErrInvalidAnswerValue, q.Type)
}

// scaleAllows reports whether n equals one of the question's numeric option labels.
func scaleAllows(q models.Question, n float64) bool {
	for _, opt := range q.Options {
		if f, err := strconv.ParseFloat(strings.TrimSpace(opt), 64); err == nil && f == n {
			return true
		}
	}
	return false
}

func joinCategories(cs []models.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
