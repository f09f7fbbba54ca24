package triage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		message  string
		transfer bool
		reason   string
		category domain.Category
		urgency  domain.Urgency
	}{
		{
			message:  "I want to buy your product",
			transfer: true,
			reason:   "Phrase detected: 'i want to buy'",
			category: domain.CategorySales,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "How does your AI work?",
			transfer: false,
			category: domain.CategoryGeneral,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "urgent complaint about broken order",
			transfer: true,
			reason:   "Multiple keywords: urgent, complaint, broken, order",
			category: domain.CategoryTechnical,
			urgency:  domain.UrgencyUrgent,
		},
		{
			message:  "Can I speak to a human?",
			transfer: true,
			reason:   "Phrase detected: 'speak to a human'",
			category: domain.CategoryGeneral,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "I need an agent",
			transfer: true,
			reason:   "Strong keyword: agent",
			category: domain.CategoryGeneral,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "What's the pricing for your service?",
			transfer: false,
			category: domain.CategoryGeneral,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "I need technical support",
			transfer: false,
			category: domain.CategoryTechnical,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "Refund, refund, REFUND and cancel it",
			transfer: true,
			reason:   "Multiple keywords: refund, cancel",
			category: domain.CategoryGeneral,
			urgency:  domain.UrgencyNormal,
		},
		{
			message:  "I have a complaint and I'm frustrated, can you help?",
			transfer: true,
			reason:   "Strong keyword: complaint",
			category: domain.CategorySupport,
			urgency:  domain.UrgencyHigh,
		},
	}

	c := NewClassifier()
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			got := c.Evaluate(tc.message)
			require.Equal(t, tc.transfer, got.ShouldTransfer)
			require.Equal(t, tc.reason, got.Reason)
			require.Equal(t, tc.category, got.Category)
			require.Equal(t, tc.urgency, got.Urgency)
		})
	}
}

func TestEvaluate_PhraseWinsOverKeywords(t *testing.T) {
	got := NewClassifier().Evaluate("URGENT: I want to buy a quote")
	require.True(t, got.ShouldTransfer)
	require.Equal(t, "Phrase detected: 'i want to buy'", got.Reason)
	require.Equal(t, domain.UrgencyUrgent, got.Urgency)
}

func TestEvaluate_SingleWeakKeyword(t *testing.T) {
	got := NewClassifier().Evaluate("Where is my order?")
	require.False(t, got.ShouldTransfer)
	require.Empty(t, got.Reason)
}

func TestEvaluate_KeywordsNeedWholeWords(t *testing.T) {
	// "buyer" and "agents" are not keyword tokens
	got := NewClassifier().Evaluate("our buyer talked with agents")
	require.False(t, got.ShouldTransfer)
}

func TestEvaluate_UnicodeTokens(t *testing.T) {
	got := NewClassifier().Evaluate("naïve question: urgent refund?")
	require.True(t, got.ShouldTransfer)
	require.Equal(t, "Multiple keywords: urgent, refund", got.Reason)
}

func TestCategorize(t *testing.T) {
	require.Equal(t, domain.CategorySales, Categorize("Can I get a DEMO"))
	require.Equal(t, domain.CategoryTechnical, Categorize("the app is not working"))
	require.Equal(t, domain.CategorySupport, Categorize("need support"))
	require.Equal(t, domain.CategoryGeneral, Categorize("hello"))
}

func TestUrgencyOf(t *testing.T) {
	require.Equal(t, domain.UrgencyUrgent, UrgencyOf("please respond ASAP"))
	require.Equal(t, domain.UrgencyHigh, UrgencyOf("I am disappointed"))
	require.Equal(t, domain.UrgencyNormal, UrgencyOf("thanks"))
}
