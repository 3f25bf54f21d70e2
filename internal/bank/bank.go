// Package bank provides the versioned question catalog the questionnaire engine runs on.
//
// A Bank is an immutable snapshot: primary questions, secondary questions and
// open-text questions, each list in presentation order.
package bank

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/MindScreen/internal/models"
	"gopkg.in/yaml.v3"
)

// Bank is a validated, read-only question catalog.
type Bank struct {
	version   string
	primary   []models.Question
	secondary []models.Question
	open      []models.Question
	byID      map[string]*models.Question
}

// Definition is the serialized form of a bank, as read from YAML.
type Definition struct {
	Version   string            `yaml:"version"`
	Primary   []models.Question `yaml:"primary"`
	Secondary []models.Question `yaml:"secondary"`
	Open      []models.Question `yaml:"open"`
}

// New validates the definition and builds a Bank from it.
func New(def Definition) (*Bank, error) {
	b := &Bank{
		version:   def.Version,
		primary:   cloneQuestions(def.Primary),
		secondary: cloneQuestions(def.Secondary),
		open:      cloneQuestions(def.Open),
		byID:      make(map[string]*models.Question),
	}

	lists := []struct {
		questions []models.Question
		tier      models.Tier
	}{
		{b.primary, models.TierPrimary},
		{b.secondary, models.TierSecondary},
		{b.open, models.TierPrimary},
	}
	for _, list := range lists {
		for i := range list.questions {
			q := &list.questions[i]
			if err := q.Validate(); err != nil {
				return nil, err
			}
			if q.Tier != list.tier {
				return nil, fmt.Errorf("question %s: %w: %s", q.ID, models.ErrTierMismatch, q.Tier)
			}
			if _, exists := b.byID[q.ID]; exists {
				return nil, fmt.Errorf("%w: %s", models.ErrDuplicateQuestionID, q.ID)
			}
			b.byID[q.ID] = q
		}
	}

	slog.Debug("bank.New: built question bank", "version", b.version, "primary", len(b.primary), "secondary", len(b.secondary), "open", len(b.open))
	return b, nil
}

// LoadFile reads a YAML bank definition from disk.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML bank definition.
func Parse(data []byte) (*Bank, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	b, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("invalid question bank: %w", err)
	}
	return b, nil
}

// Marshal encodes the bank back into its YAML definition.
func (b *Bank) Marshal() ([]byte, error) {
	return yaml.Marshal(Definition{
		Version:   b.version,
		Primary:   b.primary,
		Secondary: b.secondary,
		Open:      b.open,
	})
}

// Version returns the catalog version string.
func (b *Bank) Version() string { return b.version }

// Primary returns a copy of the primary questions in bank order.
func (b *Bank) Primary() []models.Question { return cloneQuestions(b.primary) }

// Secondary returns a copy of the secondary questions in bank order.
func (b *Bank) Secondary() []models.Question { return cloneQuestions(b.secondary) }

// Open returns a copy of the open-text questions in bank order.
func (b *Bank) Open() []models.Question { return cloneQuestions(b.open) }

// Len returns the total number of questions in the bank.
func (b *Bank) Len() int { return len(b.byID) }

// Lookup returns the question with the given id.
func (b *Bank) Lookup(id string) (models.Question, bool) {
	q, ok := b.byID[id]
	if !ok {
		return models.Question{}, false
	}
	return *q, true
}

// InitialList returns the first-tier presentation order: primary then open-text questions.
func (b *Bank) InitialList() []models.Question {
	list := make([]models.Question, 0, len(b.primary)+len(b.open))
	list = append(list, cloneQuestions(b.primary)...)
	list = append(list, cloneQuestions(b.open)...)
	return list
}

// SecondaryFor returns the secondary questions whose category is in the trigger set, in bank order.
func (b *Bank) SecondaryFor(triggers map[models.Category]struct{}) []models.Question {
	var out []models.Question
	for _, q := range b.secondary {
		if _, ok := triggers[q.Category]; ok {
			out = append(out, q)
		}
	}
	return cloneQuestions(out)
}

func cloneQuestions(in []models.Question) []models.Question {
	if in == nil {
		return nil
	}
	out := make([]models.Question, len(in))
	for i, q := range in {
		q.Options = append([]string(nil), q.Options...)
		if q.FollowUpTrigger != nil {
			trigger := *q.FollowUpTrigger
			q.FollowUpTrigger = &trigger
		}
		out[i] = q
	}
	return out
}
