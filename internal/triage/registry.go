package triage

import (
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"

	"support-agent/internal/domain"
)

// Registry holds the latest flag per conversation. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	flagged map[string]domain.FlaggedConversation
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		flagged: make(map[string]domain.FlaggedConversation),
		now:     time.Now,
	}
}

// Flag records that conversationID needs a human, replacing any earlier flag.
func (r *Registry) Flag(conversationID, userMessage string, result domain.TriageResult) domain.FlaggedConversation {
	fc := domain.FlaggedConversation{
		ConversationID: conversationID,
		Timestamp:      r.now().UTC(),
		UserMessage:    userMessage,
		Reason:         result.Reason,
		Status:         domain.StatusWaitingForAgent,
		Urgency:        result.Urgency,
		Category:       result.Category,
	}

	r.mu.Lock()
	r.flagged[conversationID] = fc
	r.mu.Unlock()
	return fc
}

func (r *Registry) Get(conversationID string) (domain.FlaggedConversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc, ok := r.flagged[conversationID]
	return fc, ok
}

// Pending lists conversations still waiting for an agent, oldest first.
func (r *Registry) Pending() []domain.FlaggedConversation {
	r.mu.RLock()
	all := make([]domain.FlaggedConversation, 0, len(r.flagged))
	for _, fc := range r.flagged {
		all = append(all, fc)
	}
	r.mu.RUnlock()

	pending := pie.Filter(all, func(fc domain.FlaggedConversation) bool {
		return fc.Status == domain.StatusWaitingForAgent
	})
	return pie.SortStableUsing(pending, func(a, b domain.FlaggedConversation) bool {
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ConversationID < b.ConversationID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// Resolve marks a flag as handled. It reports false if the conversation was never flagged.
func (r *Registry) Resolve(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	fc, ok := r.flagged[conversationID]
	if !ok {
		return false
	}
	fc.Status = domain.StatusResolved
	r.flagged[conversationID] = fc
	return true
}
