package analysis

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it into word tokens. Apostrophes and
// hyphens inside words are kept so "self-harm" and "don't" stay whole.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsPhrase reports whether the token sequence of phrase occurs in tokens.
func containsPhrase(tokens []string, phrase string) bool {
	want := tokenize(phrase)
	if len(want) == 0 || len(want) > len(tokens) {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		match := true
		for j, w := range want {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// KeywordMatcher scores text by the fraction of keywords it contains.
// Keywords may be single words or multi-word phrases.
type KeywordMatcher struct{}

// Match implements EmotionMatcher and UrgencyMatcher.
func (KeywordMatcher) Match(ctx context.Context, text string, keywords []string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(keywords) == 0 {
		return 0, nil
	}
	tokens := tokenize(text)
	hits := 0
	for _, k := range keywords {
		if containsPhrase(tokens, k) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords)), nil
}

// crisisPhrases map phrases to the topic they raise.
var crisisPhrases = []struct {
	phrase string
	topic  string
}{
	{"suicide", "suicide"},
	{"suicidal", "suicide"},
	{"kill myself", "suicide"},
	{"end it all", "suicide"},
	{"end my life", "suicide"},
	{"better off dead", "suicide"},
	{"want to die", "suicide"},
	{"self-harm", "self-harm"},
	{"self harm", "self-harm"},
	{"hurt myself", "self-harm"},
	{"hurting myself", "self-harm"},
	{"cut myself", "self-harm"},
	{"cutting myself", "self-harm"},
	{"emergency", "emergency"},
	{"crisis", "crisis"},
}

// TermTopicExtractor reports crisis topics and capitalised names mentioned in text.
type TermTopicExtractor struct {
	terms map[string]string
}

// NewTermTopicExtractor creates the built-in topic extractor. Extra terms map a
// lowercase word or phrase to the topic it should report.
func NewTermTopicExtractor(extra ...map[string]string) *TermTopicExtractor {
	terms := make(map[string]string)
	for _, m := range extra {
		for k, v := range m {
			terms[strings.ToLower(k)] = v
		}
	}
	return &TermTopicExtractor{terms: terms}
}

// Topics implements TopicExtractor. Topics are deduplicated and returned in
// first-seen order: crisis topics, configured terms, then names.
func (x *TermTopicExtractor) Topics(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(text)
	seen := make(map[string]struct{})
	var topics []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}

	for _, cp := range crisisPhrases {
		if containsPhrase(tokens, cp.phrase) {
			add(cp.topic)
		}
	}
	terms := make([]string, 0, len(x.terms))
	for term := range x.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		if containsPhrase(tokens, term) {
			add(x.terms[term])
		}
	}
	for _, name := range properNouns(text) {
		add(name)
	}
	return topics, nil
}

// properNouns returns capitalised words that do not start a sentence.
func properNouns(text string) []string {
	var out []string
	sentenceStart := true
	for _, w := range strings.Fields(text) {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if trimmed != "" && !sentenceStart && trimmed != "I" {
			if r := []rune(trimmed)[0]; unicode.IsUpper(r) {
				out = append(out, trimmed)
			}
		}
		sentenceStart = strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
	}
	return out
}
