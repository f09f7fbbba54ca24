package domain

const (
	completionHistoryTurns = 6
	completionTemperature  = 0.3
	completionMaxTokens    = 200
)

// CompletionRequest is built fresh for every upstream call.
type CompletionRequest struct {
	Message     string
	History     []Turn
	Preamble    string
	Temperature float64
	MaxTokens   int
}

// NewCompletionRequest keeps only the most recent history turns.
func NewCompletionRequest(message string, history []Turn, preamble string) CompletionRequest {
	if len(history) > completionHistoryTurns {
		history = history[len(history)-completionHistoryTurns:]
	}
	h := make([]Turn, len(history))
	copy(h, history)
	return CompletionRequest{
		Message:     message,
		History:     h,
		Preamble:    preamble,
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	}
}
