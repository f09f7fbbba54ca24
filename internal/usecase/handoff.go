package usecase

import (
	"context"
	"errors"
	"log/slog"

	"support-agent/internal/domain"
	"support-agent/internal/repository"
)

const handoffHistoryLimit = 20

// HandoffArchive is the durable copy of the handoff queue.
type HandoffArchive interface {
	GetHandoff(ctx context.Context, conversationID string) (domain.FlaggedConversation, error)
	HandoffHistory(ctx context.Context, conversationID string, limit int) ([]domain.FlaggedConversation, error)
	ResolveHandoff(ctx context.Context, conversationID string) error
}

// WithHandoffArchive makes the handoff operations consult a durable store as well as memory.
func WithHandoffArchive(a HandoffArchive) Option {
	return func(s *ChatService) {
		s.archive = a
	}
}

// HandoffDetails is the current flag for a conversation and, when archived, every earlier flag.
type HandoffDetails struct {
	Current domain.FlaggedConversation   `json:"current"`
	History []domain.FlaggedConversation `json:"history"`
}

func errFallbackDisabled() *Error {
	return newError(ErrorUnavailable, "human_fallback_disabled", nil)
}

func errHandoffNotFound(id string) *Error {
	return newError(ErrorNotFound, "handoff_not_found", errors.New("no handoff for conversation "+id))
}

// PendingHandoffs lists conversations waiting for an agent, oldest first.
func (s *ChatService) PendingHandoffs(_ context.Context) ([]domain.FlaggedConversation, error) {
	if s.queue == nil {
		return nil, errFallbackDisabled()
	}
	return s.queue.Pending(), nil
}

// Handoff returns the flag recorded for one conversation. The archive wins over memory when both have it.
func (s *ChatService) Handoff(ctx context.Context, conversationID string) (HandoffDetails, error) {
	if s.queue == nil {
		return HandoffDetails{}, errFallbackDisabled()
	}
	id := normalizeConversationID(conversationID)
	local, found := s.queue.Get(id)
	details := HandoffDetails{Current: local, History: []domain.FlaggedConversation{}}

	if s.archive == nil {
		if !found {
			return HandoffDetails{}, errHandoffNotFound(id)
		}
		return details, nil
	}

	current, err := s.archive.GetHandoff(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if !found {
			return HandoffDetails{}, errHandoffNotFound(id)
		}
	case err != nil:
		return HandoffDetails{}, newError(ErrorUnavailable, "handoff_archive_failed", err)
	default:
		details.Current = current
	}

	history, err := s.archive.HandoffHistory(ctx, id, handoffHistoryLimit)
	if err != nil {
		return HandoffDetails{}, newError(ErrorUnavailable, "handoff_archive_failed", err)
	}
	details.History = append(details.History, history...)
	return details, nil
}

// ResolveHandoff marks a conversation as handled by an agent in memory and in the archive.
func (s *ChatService) ResolveHandoff(ctx context.Context, conversationID string) error {
	if s.queue == nil {
		return errFallbackDisabled()
	}
	id := normalizeConversationID(conversationID)
	resolved := s.queue.Resolve(id)

	if s.archive != nil {
		err := s.archive.ResolveHandoff(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return newError(ErrorUnavailable, "handoff_archive_failed", err)
		default:
			resolved = true
		}
	}

	if !resolved {
		return errHandoffNotFound(id)
	}
	slog.Info("handoff resolved", "conversation_id", id)
	return nil
}
