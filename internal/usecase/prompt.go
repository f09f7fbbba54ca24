package usecase

import (
	"strings"
)

// PromptConfig is the static company context embedded in every preamble.
type PromptConfig struct {
	CompanyName string
	ProductInfo string
}

// BuildPreamble renders the system preamble sent with every completion request.
func BuildPreamble(cfg PromptConfig) string {
	company := strings.TrimSpace(cfg.CompanyName)
	if company == "" {
		company = "our company"
	}
	return strings.Join([]string{
		"You are a helpful customer support assistant for " + company + ".",
		"",
		"INSTRUCTIONS:",
		"- Be friendly, professional, and concise",
		"- Provide clear, actionable answers",
		"- If you don't know something, say so and offer to connect with a human agent",
		"- Keep responses under 3 sentences when possible",
		"- Be specific and helpful",
		"",
		"COMPANY INFO:",
		strings.TrimSpace(cfg.ProductInfo),
		"",
		"Always prioritize being helpful and accurate over being verbose.",
	}, "\n")
}
