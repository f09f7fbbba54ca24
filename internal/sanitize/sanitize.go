// Package sanitize turns raw model output into a reply that can be shown to a customer.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const (
	// RephrasePrompt is returned when the model produced nothing usable.
	RephrasePrompt = "I'm here to help! Could you please rephrase your question?"

	maxReplyRunes = 500
	ellipsis      = "..."
)

var rolePrefixes = []string{"Assistant:", "Customer:", "Human:", "AI:", "Bot:", "Chatbot:"}

// Reply cleans raw model output. It never fails.
func Reply(raw string) string {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return RephrasePrompt
	}

	reply = stripRolePrefix(reply)
	if reply == "" {
		return RephrasePrompt
	}

	if !strings.HasSuffix(reply, ".") && !strings.HasSuffix(reply, "!") &&
		!strings.HasSuffix(reply, "?") && !strings.HasSuffix(reply, ":") {
		reply += "."
	}

	if utf8.RuneCountInString(reply) > maxReplyRunes {
		reply = truncateAtWord(reply, maxReplyRunes) + ellipsis
	}
	return reply
}

func stripRolePrefix(s string) string {
	lower := strings.ToLower(s)
	for _, p := range rolePrefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// truncateAtWord cuts s to limit runes, then back to the last space if there is one.
func truncateAtWord(s string, limit int) string {
	cut := string([]rune(s)[:limit])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		return cut[:i]
	}
	return cut
}
