package domain

import "time"

type Category string

const (
	CategorySales     Category = "sales"
	CategoryTechnical Category = "technical"
	CategorySupport   Category = "support"
	CategoryGeneral   Category = "general"
)

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Handoff statuses. A freshly flagged conversation is always waiting.
const (
	StatusWaitingForAgent = "waiting_for_agent"
	StatusResolved        = "resolved"
)

// TriageResult is the outcome of classifying one inbound message.
type TriageResult struct {
	ShouldTransfer bool
	Reason         string
	Category       Category
	Urgency        Urgency
}

// FlaggedConversation records that a conversation needs a human agent.
type FlaggedConversation struct {
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
	UserMessage    string    `json:"user_message"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status"`
	Urgency        Urgency   `json:"urgency"`
	Category       Category  `json:"category"`
}
