// Package diagnosis resolves scores and text signals into a ranked diagnosis,
// a severity band, an emergency decision and a risk level.
package diagnosis

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/BTreeMap/MindScreen/internal/scoring"
)

// Severity and emergency thresholds.
const (
	PHQ9SevereMin  = 20
	GAD7SevereMin  = 15
	PHQ9MildMax    = 9
	GAD7MildMax    = 9
	UrgencyLimit   = 0.7
	SentimentFloor = -0.8
)

// EmergencyTopics raise the emergency flag when reported by the topic extractor.
var EmergencyTopics = []string{"suicide", "self-harm", "emergency", "crisis"}

// Diagnosis is the resolved outcome of one run.
type Diagnosis struct {
	Primary         models.Condition
	Secondary       []models.Condition
	Severity        models.Severity
	RiskLevel       models.RiskLevel
	Emergency       bool
	EmergencyFlags  []string
	EmotionalScores map[models.Condition]float64
}

// Resolve applies the severity, ranking, emergency and risk rules.
func Resolve(scores scoring.Scores, signals []models.NLPSignal) Diagnosis {
	d := Diagnosis{
		Severity:        SeverityFor(scores.PHQ9, scores.GAD7),
		EmotionalScores: SumEmotions(signals),
	}

	ranked := Rank(scores)
	d.Primary = ranked[0]
	d.Secondary = ranked[1:]

	d.EmergencyFlags = EmergencyFlags(signals)
	d.Emergency = len(d.EmergencyFlags) > 0
	d.RiskLevel = RiskFor(d.Severity, d.Emergency)

	if d.Emergency {
		slog.Warn("diagnosis.Resolve: emergency detected", "flags", d.EmergencyFlags)
	}
	slog.Debug("diagnosis.Resolve: diagnosis resolved", "primary", d.Primary, "severity", d.Severity, "risk", d.RiskLevel)
	return d
}

// SeverityFor bands the subscale totals. It never returns minimal.
func SeverityFor(phq9, gad7 float64) models.Severity {
	switch {
	case phq9 >= PHQ9SevereMin || gad7 >= GAD7SevereMin:
		return models.SeveritySevere
	case phq9 <= PHQ9MildMax && gad7 <= GAD7MildMax:
		return models.SeverityMild
	default:
		return models.SeverityModerate
	}
}

// Rank orders the ranked conditions by composite score, highest first. Ties keep
// declaration order, so depression wins over anxiety and anxiety over ptsd.
func Rank(scores scoring.Scores) []models.Condition {
	ranked := append([]models.Condition(nil), models.RankedConditions...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores.Composite(ranked[i]) > scores.Composite(ranked[j])
	})
	return ranked
}

// EmergencyFlags lists why the signals trip the emergency rule, one entry per
// tripped condition per signal. An empty result means no emergency.
func EmergencyFlags(signals []models.NLPSignal) []string {
	var flags []string
	for i, s := range signals {
		ref := s.QuestionID
		if ref == "" {
			ref = fmt.Sprintf("signal %d", i)
		}
		if s.Urgency > UrgencyLimit {
			flags = append(flags, fmt.Sprintf("%s: urgency %.2f", ref, s.Urgency))
		}
		if s.Sentiment < SentimentFloor {
			flags = append(flags, fmt.Sprintf("%s: sentiment %.2f", ref, s.Sentiment))
		}
		for _, topic := range s.Topics {
			if isEmergencyTopic(topic) {
				flags = append(flags, fmt.Sprintf("%s: topic %s", ref, strings.ToLower(topic)))
			}
		}
	}
	return flags
}

// IsEmergency reports whether any signal trips the emergency rule.
func IsEmergency(signals []models.NLPSignal) bool {
	return len(EmergencyFlags(signals)) > 0
}

func isEmergencyTopic(topic string) bool {
	for _, t := range EmergencyTopics {
		if strings.EqualFold(topic, t) {
			return true
		}
	}
	return false
}

// RiskFor maps severity to risk. Emergency overrides everything.
func RiskFor(severity models.Severity, emergency bool) models.RiskLevel {
	if emergency {
		return models.RiskEmergency
	}
	switch severity {
	case models.SeverityMinimal, models.SeverityMild:
		return models.RiskLow
	case models.SeveritySevere:
		return models.RiskHigh
	default:
		return models.RiskMedium
	}
}

// SumEmotions adds the per-condition emotion scores across signals.
func SumEmotions(signals []models.NLPSignal) map[models.Condition]float64 {
	out := make(map[models.Condition]float64)
	for _, s := range signals {
		for c, v := range s.Emotions {
			out[c] += v
		}
	}
	return out
}
