// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const DefaultProductInfo = `# Mshauri Tech Products & Services

- Mshauri Assistant: AI-powered customer support automation
- Mshauri Analytics: Customer interaction insights platform
- Mshauri Connect: Omnichannel communication system
- Support hours: Monday-Friday, 9 AM - 6 PM EAT
- Support email: support@mshauri.tech

Our solutions help businesses automate customer support, gain insights from customer interactions, and manage multi-channel communications efficiently.`

type Config struct {
	Cohere  Cohere
	Company Company
	Chat    Chat
	AWS     AWS
	Kafka   Kafka
	Log     Log
	HTTP    HTTP
}

type Cohere struct {
	// Used directly unless PARAM_PREFIX is set
	APIKey string `env:"COHERE_API_KEY"`
	URL    string `env:"COHERE_API_URL" envDefault:"https://api.cohere.ai/v1/chat" validate:"required,url"`
	Model  string `env:"COHERE_MODEL" envDefault:"command-r" validate:"required"`
	// Per-attempt timeout
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3" validate:"min=1,max=10"`
}

type Company struct {
	Name         string `env:"COMPANY_NAME" envDefault:"Mshauri Tech" validate:"required"`
	ProductInfo  string `env:"PRODUCT_INFO"`
	Phone        string `env:"CONTACT_PHONE" envDefault:"+1 (555) 123-4567"`
	SalesEmail   string `env:"SALES_EMAIL" envDefault:"sales@mshauritech.com" validate:"omitempty,email"`
	SupportEmail string `env:"SUPPORT_EMAIL" envDefault:"support@mshauritech.com" validate:"omitempty,email"`
	TechEmail    string `env:"TECH_EMAIL" envDefault:"tech@mshauritech.com" validate:"omitempty,email"`
	HelloEmail   string `env:"HELLO_EMAIL" envDefault:"hello@mshauritech.com" validate:"omitempty,email"`
}

type Chat struct {
	// Exchanges kept per conversation; each exchange is two turns
	MaxHistory    int  `env:"MAX_HISTORY" envDefault:"5" validate:"min=1,max=50"`
	HumanFallback bool `env:"HUMAN_FALLBACK" envDefault:"true"`
	// Budget for DynamoDB and Kafka handoff notifications
	NotifyTimeout time.Duration `env:"HANDOFF_NOTIFY_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

type AWS struct {
	// SSM prefix holding <prefix>/cohere-token
	ParamPrefix string `env:"PARAM_PREFIX"`
	// DynamoDB table receiving flagged conversations
	HandoffTable string `env:"HANDOFF_TABLE"`
}

type Kafka struct {
	Brokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	HandoffTopic string   `env:"KAFKA_HANDOFF_TOPIC" validate:"required_with=Brokers"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	File  string `env:"LOG_FILE" envDefault:"bot.log"`
	// Telegram chat receiving errors and handoff alerts
	TelegramToken  string `env:"TELEGRAM_LOG_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_LOG_CHAT_ID" validate:"required_with=TelegramToken"`
}

type HTTP struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8000" validate:"required"`
}

// MaxTurns converts MAX_HISTORY exchanges into stored turns.
func (c Chat) MaxTurns() int {
	return c.MaxHistory * 2
}

// UsesAWS reports whether any AWS-backed feature is configured.
func (c *Config) UsesAWS() bool {
	return c.AWS.ParamPrefix != "" || c.AWS.HandoffTable != ""
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to load .env file: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	var result Config
	if err := env.Parse(&result, opts); err != nil {
		return nil, oops.Errorf("failed to parse environment: %w", err)
	}

	result.Cohere.APIKey = strings.TrimSpace(result.Cohere.APIKey)
	result.AWS.ParamPrefix = strings.TrimRight(strings.TrimSpace(result.AWS.ParamPrefix), "/")
	if strings.TrimSpace(result.Company.ProductInfo) == "" {
		result.Company.ProductInfo = DefaultProductInfo
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
