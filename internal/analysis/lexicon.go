package analysis

import (
	"context"
	"strings"
)

// afinn is a subset of the AFINN-165 word list, scored from -5 to 5.
var afinn = map[string]float64{
	"abandoned": -2, "abuse": -3, "afraid": -2, "agony": -3, "alone": -2,
	"angry": -3, "anxious": -2, "ashamed": -2, "awful": -3, "bad": -3,
	"broken": -1, "burden": -2, "cry": -1, "crying": -2, "dead": -3,
	"depressed": -2, "despair": -3, "desperate": -3, "die": -3, "disaster": -2,
	"empty": -1, "exhausted": -2, "fail": -2, "failure": -2, "fear": -2,
	"frightened": -2, "guilty": -3, "hate": -3, "helpless": -2, "hopeless": -2,
	"horrible": -3, "hurt": -2, "hurting": -2, "kill": -3, "lonely": -2,
	"lost": -3, "miserable": -3, "nervous": -2, "numb": -1, "pain": -2,
	"panic": -3, "sad": -2, "scared": -2, "sick": -2, "stress": -1,
	"stressed": -2, "suffer": -2, "suffering": -2, "suicide": -2, "terrible": -3,
	"tired": -2, "trapped": -2, "trauma": -3, "ugly": -3, "unhappy": -2,
	"upset": -2, "useless": -2, "worried": -3, "worry": -3, "worse": -3,
	"worst": -3, "worthless": -2, "wrong": -2,
	"better": 2, "calm": 2, "care": 2, "cheerful": 2, "confident": 2,
	"enjoy": 2, "excited": 3, "fine": 2, "free": 1, "glad": 3,
	"good": 3, "grateful": 3, "great": 3, "happy": 3, "healthy": 2,
	"help": 2, "hope": 2, "hopeful": 2, "joy": 3, "love": 3,
	"loved": 3, "nice": 3, "ok": 2, "okay": 2, "peaceful": 2,
	"proud": 2, "relaxed": 2, "relief": 1, "safe": 1, "satisfied": 2,
	"strong": 2, "support": 2, "thankful": 2, "well": 2, "wonderful": 4,
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "don't": {}, "doesn't": {}, "didn't": {},
	"isn't": {}, "wasn't": {}, "can't": {}, "cannot": {}, "won't": {},
}

// LexiconScorer scores sentiment as the comparative AFINN score: the sum of word
// scores divided by the number of tokens. A negator flips the next word's score.
type LexiconScorer struct {
	words map[string]float64
}

// NewLexiconScorer creates a scorer over the built-in word list plus optional overrides.
func NewLexiconScorer(overrides ...map[string]float64) *LexiconScorer {
	words := make(map[string]float64, len(afinn))
	for k, v := range afinn {
		words[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			words[strings.ToLower(k)] = v
		}
	}
	return &LexiconScorer{words: words}
}

// Sentiment implements SentimentScorer.
func (s *LexiconScorer) Sentiment(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}
	var total float64
	for i, tok := range tokens {
		score, ok := s.words[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if _, neg := negators[tokens[i-1]]; neg {
				score = -score
			}
		}
		total += score
	}
	return total / float64(len(tokens)), nil
}
