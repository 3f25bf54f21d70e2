package flow

import (
	"fmt"
	"time"

	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// Snapshot is the serializable form of an engine, used to park a run between requests.
type Snapshot struct {
	BankVersion string                   `json:"bank_version"`
	State       models.StateType         `json:"state"`
	Index       int                      `json:"index"`
	Triggers    []models.Category        `json:"triggers,omitempty"`
	Records     []models.Answer          `json:"records,omitempty"`
	PresentedAt map[string]time.Time     `json:"presented_at,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at,omitempty"`
	Transitions []models.StateTransition `json:"transitions,omitempty"`
}

// Snapshot captures the engine's full state.
func (e *Engine) Snapshot() Snapshot {
	presented := make(map[string]time.Time, len(e.presentedAt))
	for id, t := range e.presentedAt {
		presented[id] = t
	}
	return Snapshot{
		BankVersion: e.bank.Version(),
		State:       e.state,
		Index:       e.index,
		Triggers:    e.Triggers(),
		Records:     e.log.Records(),
		PresentedAt: presented,
		StartedAt:   e.startedAt,
		CompletedAt: e.completedAt,
		Transitions: e.Transitions(),
	}
}

// Restore rebuilds an engine from a snapshot taken against the same bank version.
// The active question list is derived from the bank and the recorded triggers.
func Restore(b *bank.Bank, snap Snapshot, opts ...EngineOption) (*Engine, error) {
	if snap.BankVersion != b.Version() {
		return nil, fmt.Errorf("%w: snapshot %q, bank %q", ErrBankVersionMismatch, snap.BankVersion, b.Version())
	}

	e := &Engine{
		bank:        b,
		state:       snap.State,
		index:       snap.Index,
		triggers:    make(map[models.Category]struct{}, len(snap.Triggers)),
		log:         newAnswerLogFrom(snap.Records),
		presentedAt: make(map[string]time.Time, len(snap.PresentedAt)),
		startedAt:   snap.StartedAt,
		completedAt: snap.CompletedAt,
		transitions: append([]models.StateTransition(nil), snap.Transitions...),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, c := range snap.Triggers {
		e.triggers[c] = struct{}{}
	}
	for id, t := range snap.PresentedAt {
		if _, ok := b.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrInvalidQuestionReference, id)
		}
		e.presentedAt[id] = t
	}
	for _, r := range snap.Records {
		if _, ok := b.Lookup(r.QuestionID); !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrInvalidQuestionReference, r.QuestionID)
		}
	}

	switch snap.State {
	case models.StateAwaitingPrimary:
		e.active = b.InitialList()
	case models.StateAwaitingSecondary:
		e.active = b.SecondaryFor(e.triggers)
	case models.StateCompleted:
		e.active = nil
		e.index = 0
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, snap.State)
	}
	if snap.Index < 0 || snap.Index >= len(e.active) {
		return nil, fmt.Errorf("%w: index %d outside %d questions", ErrInvalidSnapshot, snap.Index, len(e.active))
	}
	return e, nil
}
