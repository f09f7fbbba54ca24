package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
)

func parseMap(t *testing.T, vars map[string]string) (*Config, error) {
	t.Helper()
	return parse(env.Options{Environment: vars})
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parseMap(t, map[string]string{})
	require.NoError(t, err)

	require.Equal(t, "https://api.cohere.ai/v1/chat", cfg.Cohere.URL)
	require.Equal(t, "command-r", cfg.Cohere.Model)
	require.Equal(t, 30*time.Second, cfg.Cohere.RequestTimeout)
	require.Equal(t, 3, cfg.Cohere.MaxAttempts)
	require.Equal(t, "Mshauri Tech", cfg.Company.Name)
	require.Equal(t, DefaultProductInfo, cfg.Company.ProductInfo)
	require.Equal(t, 5, cfg.Chat.MaxHistory)
	require.Equal(t, 10, cfg.Chat.MaxTurns())
	require.True(t, cfg.Chat.HumanFallback)
	require.Equal(t, 5*time.Second, cfg.Chat.NotifyTimeout)
	require.Equal(t, "bot.log", cfg.Log.File)
	require.Equal(t, ":8000", cfg.HTTP.Addr)
	require.False(t, cfg.UsesAWS())
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parseMap(t, map[string]string{
		"COHERE_API_KEY":      "  co-key  ",
		"COMPANY_NAME":        "Acme",
		"MAX_HISTORY":         "3",
		"HUMAN_FALLBACK":      "false",
		"REQUEST_TIMEOUT":     "5s",
		"PARAM_PREFIX":        "/support-agent/",
		"HANDOFF_TABLE":       "handoffs",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
		"KAFKA_HANDOFF_TOPIC": "support.handoffs",
	})
	require.NoError(t, err)

	require.Equal(t, "co-key", cfg.Cohere.APIKey)
	require.Equal(t, "Acme", cfg.Company.Name)
	require.Equal(t, 6, cfg.Chat.MaxTurns())
	require.False(t, cfg.Chat.HumanFallback)
	require.Equal(t, 5*time.Second, cfg.Cohere.RequestTimeout)
	require.Equal(t, "/support-agent", cfg.AWS.ParamPrefix)
	require.True(t, cfg.UsesAWS())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"history zero":        {"MAX_HISTORY": "0"},
		"history not int":     {"MAX_HISTORY": "five"},
		"attempts too high":   {"MAX_ATTEMPTS": "100"},
		"brokers no topic":    {"KAFKA_BROKERS": "k1:9092"},
		"telegram no chat":    {"TELEGRAM_LOG_TOKEN": "123:abc"},
		"bad level":           {"LOG_LEVEL": "verbose"},
		"bad sales email":     {"SALES_EMAIL": "not-an-email"},
		"bad url":             {"COHERE_API_URL": "::"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseMap(t, vars)
			require.Error(t, err)
		})
	}
}
