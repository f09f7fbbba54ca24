package domain

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "USER"
	SpeakerAssistant Speaker = "CHATBOT"
)

// DefaultConversationID is used when the caller does not name a conversation.
const DefaultConversationID = "default"

// Turn is one message exchanged within a conversation.
type Turn struct {
	Speaker Speaker
	Text    string
}

func UserTurn(text string) Turn      { return Turn{Speaker: SpeakerUser, Text: text} }
func AssistantTurn(text string) Turn { return Turn{Speaker: SpeakerAssistant, Text: text} }

// Conversation is the bounded, ordered history for one conversation id.
type Conversation struct {
	ID    string
	Turns []Turn
}
