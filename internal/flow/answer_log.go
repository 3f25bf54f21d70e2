package flow

import "github.com/BTreeMap/MindScreen/internal/models"

// AnswerLog is the ordered record of answers for one questionnaire run.
//
// Every submission is kept for audit. Only the most recent record per question
// id is active; superseded records are excluded from Active.
type AnswerLog struct {
	records []models.Answer
	latest  map[string]int
}

// NewAnswerLog creates an empty log.
func NewAnswerLog() *AnswerLog {
	return &AnswerLog{latest: make(map[string]int)}
}

func newAnswerLogFrom(records []models.Answer) *AnswerLog {
	l := NewAnswerLog()
	for _, r := range records {
		l.append(r)
	}
	return l
}

func (l *AnswerLog) append(a models.Answer) {
	l.records = append(l.records, a)
	l.latest[a.QuestionID] = len(l.records) - 1
}

// Has reports whether any answer was recorded for the question.
func (l *AnswerLog) Has(questionID string) bool {
	_, ok := l.latest[questionID]
	return ok
}

// Lookup returns the active answer for the question.
func (l *AnswerLog) Lookup(questionID string) (models.Answer, bool) {
	i, ok := l.latest[questionID]
	if !ok {
		return models.Answer{}, false
	}
	return l.records[i], true
}

// Active returns the active answers ordered by when they were submitted.
func (l *AnswerLog) Active() []models.Answer {
	out := make([]models.Answer, 0, len(l.latest))
	for i, r := range l.records {
		if l.latest[r.QuestionID] == i {
			out = append(out, r)
		}
	}
	return out
}

// Records returns every submission, superseded ones included.
func (l *AnswerLog) Records() []models.Answer {
	return append([]models.Answer(nil), l.records...)
}

// Len returns the number of active answers.
func (l *AnswerLog) Len() int { return len(l.latest) }

// Clone returns an independent copy of the log.
func (l *AnswerLog) Clone() *AnswerLog {
	return newAnswerLogFrom(l.records)
}
