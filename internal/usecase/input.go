package usecase

import (
	"strings"
	"unicode/utf8"

	"support-agent/internal/domain"
)

// MaxMessageLen bounds inbound messages accepted by the HTTP front-ends.
const MaxMessageLen = 2000

type ChatInput struct {
	Message        string
	ConversationID string
}

// ParseChatInput trims and validates a request from a front-end.
// An empty conversation id falls back to domain.DefaultConversationID.
func ParseChatInput(message, conversationID string) (ChatInput, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatInput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > MaxMessageLen {
		return ChatInput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	return ChatInput{
		Message:        message,
		ConversationID: normalizeConversationID(conversationID),
	}, nil
}

func normalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DefaultConversationID
	}
	return id
}
