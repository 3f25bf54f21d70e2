package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/BTreeMap/MindScreen/internal/store"
)

// CrisisAlert is the outbox payload for an emergency result.
type CrisisAlert struct {
	AssessmentID     string           `json:"assessment_id"`
	UserID           string           `json:"user_id"`
	PrimaryCondition models.Condition `json:"primary_condition"`
	Severity         models.Severity  `json:"severity"`
	EmergencyFlags   []string         `json:"emergency_flags,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// AlertFromResult extracts the alert payload from an assessment result.
func AlertFromResult(r models.AssessmentResult) CrisisAlert {
	a := CrisisAlert{
		AssessmentID:     r.ID,
		UserID:           r.UserID,
		PrimaryCondition: r.PrimaryCondition,
		Severity:         r.Severity,
		Timestamp:        r.Timestamp,
	}
	if r.NLPAnalysis != nil {
		a.EmergencyFlags = append([]string(nil), r.NLPAnalysis.EmergencyFlags...)
	}
	return a
}

// Body renders the SMS text. It carries no answer content.
func (a CrisisAlert) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MindScreen crisis alert: user %s flagged as emergency", a.UserID)
	fmt.Fprintf(&b, " (assessment %s, %s, %s)", a.AssessmentID, a.PrimaryCondition, a.Severity)
	if len(a.EmergencyFlags) > 0 {
		b.WriteString(". Signals: ")
		b.WriteString(strings.Join(a.EmergencyFlags, "; "))
	}
	b.WriteString(". Follow up immediately.")
	return b.String()
}

// DedupeKey identifies one alert per assessment.
func DedupeKey(assessmentID string) string {
	return "crisis:" + assessmentID
}

// OutboxNotifier queues crisis alerts in the durable outbox. Delivery happens
// asynchronously through a store.OutboxSender running SendFunc.
type OutboxNotifier struct {
	repo store.OutboxRepo
}

// NewOutboxNotifier creates an OutboxNotifier.
func NewOutboxNotifier(repo store.OutboxRepo) *OutboxNotifier {
	return &OutboxNotifier{repo: repo}
}

// NotifyCrisis enqueues one alert per assessment id.
func (n *OutboxNotifier) NotifyCrisis(ctx context.Context, result models.AssessmentResult) error {
	payload, err := json.Marshal(AlertFromResult(result))
	if err != nil {
		return fmt.Errorf("encode crisis alert: %w", err)
	}
	id, err := n.repo.EnqueueOutboxMessage(result.UserID, store.OutboxKindCrisisAlert, string(payload), DedupeKey(result.ID))
	if err != nil {
		slog.Error("OutboxNotifier.NotifyCrisis: enqueue failed", "error", err, "assessmentID", result.ID)
		return fmt.Errorf("enqueue crisis alert: %w", err)
	}
	slog.Info("OutboxNotifier.NotifyCrisis: queued", "outboxID", id, "assessmentID", result.ID, "userID", result.UserID)
	return nil
}

// SendFunc returns the outbox delivery callback that texts each crisis alert to the on-call number.
func SendFunc(sender Sender, to string) store.OutboxSendFunc {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		if msg.Kind != store.OutboxKindCrisisAlert {
			return fmt.Errorf("unsupported outbox kind %q", msg.Kind)
		}
		var alert CrisisAlert
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &alert); err != nil {
			return fmt.Errorf("decode crisis alert %s: %w", msg.ID, err)
		}
		return sender.SendMessage(ctx, to, alert.Body())
	}
}
