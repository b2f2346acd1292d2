// Package tutor holds the content side of the realtime tutor: intent
// classification, prompt construction, provider output decoding and the
// local fallback content used when the provider cannot answer.
package tutor

import "strings"

// Intent is what the learner is asking for.
type Intent string

const (
	IntentTheory   Intent = "theory"
	IntentPractice Intent = "practice"
	IntentExample  Intent = "example"
	IntentQuestion Intent = "question"
)

// ParseIntent maps a help type from the wire to an Intent. Unknown values
// become IntentQuestion.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentTheory:
		return IntentTheory
	case IntentPractice:
		return IntentPractice
	case IntentExample:
		return IntentExample
	default:
		return IntentQuestion
	}
}

// Kind returns the response kind a provider is expected to answer with.
func (i Intent) Kind() Kind {
	switch i {
	case IntentTheory:
		return KindTheory
	case IntentPractice:
		return KindPractice
	case IntentExample:
		return KindExample
	default:
		return KindText
	}
}

// Classifier turns free text into an Intent. Implementations must be total.
type Classifier interface {
	Classify(text string) Intent
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(text string) Intent

// Classify implements Classifier.
func (f ClassifierFunc) Classify(text string) Intent { return f(text) }

type keywordRule struct {
	intent   Intent
	keywords []string
}

// Checked in order; the first rule with a matching keyword wins.
var keywordRules = []keywordRule{
	{IntentTheory, []string{"explain", "theory", "what is"}},
	{IntentPractice, []string{"practice", "exercise", "problem"}},
	{IntentExample, []string{"example", "show me", "demonstrate"}},
}

// KeywordClassifier classifies by case-insensitive substring match.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(text string) Intent {
	return Classify(text)
}

// Classify is the keyword strategy used by KeywordClassifier.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return IntentQuestion
}
