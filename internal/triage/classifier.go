// Package triage decides when a message should go to a human agent instead of the model.
package triage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/elliotchance/pie/v2"

	"support-agent/internal/domain"
)

// Phrases are matched as lower-case substrings before any keyword logic runs.
var transferPhrases = []string{
	"speak to a human",
	"talk to someone",
	"human agent",
	"real person",
	"customer service",
	"i want to buy",
	"how much does it cost",
	"get a quote",
	"schedule a demo",
	"technical issue",
	"not satisfied",
	"cancel my",
	"refund my",
}

var transferKeywords = map[string]struct{}{
	// sales
	"buy": {}, "purchase": {}, "price": {}, "cost": {}, "pricing": {}, "quote": {},
	"demo": {}, "trial": {}, "sales": {}, "sell": {}, "order": {}, "payment": {},
	"billing": {}, "invoice": {}, "contract": {},
	// asking for a person
	"human": {}, "agent": {}, "person": {}, "representative": {},
	// complaints and failures
	"urgent": {}, "emergency": {}, "complaint": {}, "refund": {}, "cancel": {},
	"problem": {}, "issue": {}, "broken": {},
}

var strongKeywords = []string{"buy", "purchase", "human", "agent", "urgent", "complaint"}

var (
	salesTerms     = []string{"buy", "purchase", "price", "cost", "quote", "demo", "sales"}
	technicalTerms = []string{"technical", "not working", "broken", "error", "bug"}
	supportTerms   = []string{"support", "help"}
	urgentTerms    = []string{"urgent", "emergency", "asap", "immediately", "critical"}
	highTerms      = []string{"complaint", "angry", "frustrated", "disappointed"}
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Classifier is stateless and safe for concurrent use.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Evaluate classifies message. Category and Urgency are always set so callers can log them.
func (c *Classifier) Evaluate(message string) domain.TriageResult {
	lower := strings.ToLower(strings.TrimSpace(message))

	result := domain.TriageResult{
		Category: Categorize(lower),
		Urgency:  UrgencyOf(lower),
	}
	result.ShouldTransfer, result.Reason = transferReason(lower)
	return result
}

func transferReason(lower string) (bool, string) {
	if i := pie.FindFirstUsing(transferPhrases, func(p string) bool {
		return strings.Contains(lower, p)
	}); i >= 0 {
		return true, fmt.Sprintf("Phrase detected: '%s'", transferPhrases[i])
	}

	matched := matchedKeywords(lower)
	switch {
	case len(matched) >= 2:
		return true, "Multiple keywords: " + strings.Join(matched, ", ")
	case len(matched) == 1 && pie.Contains(strongKeywords, matched[0]):
		return true, "Strong keyword: " + matched[0]
	}
	return false, ""
}

// matchedKeywords returns distinct keyword hits in order of first appearance.
func matchedKeywords(lower string) []string {
	var matched []string
	for _, tok := range wordPattern.FindAllString(lower, -1) {
		if _, ok := transferKeywords[tok]; !ok {
			continue
		}
		if !pie.Contains(matched, tok) {
			matched = append(matched, tok)
		}
	}
	return matched
}

// Categorize picks the team that should handle the message.
func Categorize(message string) domain.Category {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, salesTerms):
		return domain.CategorySales
	case containsAny(lower, technicalTerms):
		return domain.CategoryTechnical
	case containsAny(lower, supportTerms):
		return domain.CategorySupport
	default:
		return domain.CategoryGeneral
	}
}

func UrgencyOf(message string) domain.Urgency {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, urgentTerms):
		return domain.UrgencyUrgent
	case containsAny(lower, highTerms):
		return domain.UrgencyHigh
	default:
		return domain.UrgencyNormal
	}
}

func containsAny(s string, terms []string) bool {
	return pie.FindFirstUsing(terms, func(t string) bool {
		return strings.Contains(s, t)
	}) >= 0
}
