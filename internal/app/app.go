// Package app wires the object graph shared by every binary.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/samber/do"
	"github.com/samber/oops"

	"support-agent/internal/config"
	"support-agent/internal/conversation"
	"support-agent/internal/integrations/cohere"
	"support-agent/internal/integrations/kafka"
	"support-agent/internal/integrations/paramstore"
	"support-agent/internal/metrics"
	"support-agent/internal/repository"
	"support-agent/internal/triage"
	"support-agent/internal/usecase"
)

// New registers every provider. Nothing is constructed until first invoked.
func New(ctx context.Context, cfg *config.Config) *do.Injector {
	di := do.New()

	do.ProvideValue(di, ctx)
	do.ProvideValue(di, cfg)

	if cfg.UsesAWS() {
		do.Provide(di, newAWSConfig)
	}
	do.Provide(di, newKeySource)
	do.Provide(di, newMetrics)
	do.Provide(di, newCompletionClient)
	do.Provide(di, newStore)
	do.Provide(di, newClassifier)
	do.Provide(di, newRegistry)
	do.Provide(di, newMessages)
	do.Provide(di, newHandoffRepository)
	do.Provide(di, newHandoffProducer)
	do.Provide(di, newChatService)

	return di
}

func newAWSConfig(di *do.Injector) (aws.Config, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, oops.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func newKeySource(di *do.Injector) (cohere.KeySource, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.AWS.ParamPrefix == "" {
		return cohere.StaticKey(cfg.Cohere.APIKey), nil
	}

	awsCfg, err := do.Invoke[aws.Config](di)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	src, err := paramstore.NewTokenSource(ps, cfg.AWS.ParamPrefix)
	if err != nil {
		return nil, err
	}
	slog.Info("completion api key read from parameter store", "parameter", src.Name())
	return src, nil
}

func newMetrics(_ *do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

func newCompletionClient(di *do.Injector) (*cohere.Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	keys, err := do.Invoke[cohere.KeySource](di)
	if err != nil {
		return nil, err
	}
	return cohere.NewClient(keys,
		cohere.WithURL(cfg.Cohere.URL),
		cohere.WithModel(cfg.Cohere.Model),
		cohere.WithMaxAttempts(cfg.Cohere.MaxAttempts),
		cohere.WithHTTPClient(&http.Client{Timeout: cfg.Cohere.RequestTimeout}),
		cohere.WithObserver(do.MustInvoke[*metrics.Metrics](di)),
	)
}

func newStore(di *do.Injector) (*conversation.Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return conversation.NewStore(cfg.Chat.MaxTurns()), nil
}

func newClassifier(_ *do.Injector) (*triage.Classifier, error) {
	return triage.NewClassifier(), nil
}

func newRegistry(_ *do.Injector) (*triage.Registry, error) {
	return triage.NewRegistry(), nil
}

func newMessages(di *do.Injector) (*triage.Messages, error) {
	c := do.MustInvoke[*config.Config](di).Company
	return triage.NewMessages(triage.Contacts{
		Phone:        c.Phone,
		SalesEmail:   c.SalesEmail,
		SupportEmail: c.SupportEmail,
		TechEmail:    c.TechEmail,
		HelloEmail:   c.HelloEmail,
	}), nil
}

func newHandoffRepository(di *do.Injector) (*repository.Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	awsCfg, err := do.Invoke[aws.Config](di)
	if err != nil {
		return nil, err
	}
	return repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.AWS.HandoffTable)
}

func newHandoffProducer(di *do.Injector) (*kafka.Producer, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.HandoffTopic)
}

func newChatService(di *do.Injector) (*usecase.ChatService, error) {
	cfg := do.MustInvoke[*config.Config](di)

	llm, err := do.Invoke[*cohere.Client](di)
	if err != nil {
		return nil, err
	}

	opts := []usecase.Option{
		usecase.WithRecorder(do.MustInvoke[*metrics.Metrics](di)),
		usecase.WithNotifyTimeout(cfg.Chat.NotifyTimeout),
	}
	if cfg.Chat.HumanFallback {
		opts = append(opts, usecase.WithHumanFallback(
			do.MustInvoke[*triage.Classifier](di),
			do.MustInvoke[*triage.Registry](di),
			do.MustInvoke[*triage.Messages](di),
		))

		handoffOpts, err := handoffOptions(di, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, handoffOpts...)
	}

	return usecase.NewChatService(
		do.MustInvoke[*conversation.Store](di),
		llm,
		usecase.PromptConfig{CompanyName: cfg.Company.Name, ProductInfo: cfg.Company.ProductInfo},
		opts...,
	)
}

// handoffOptions attaches the DynamoDB queue and the Kafka producer when they are configured.
func handoffOptions(di *do.Injector, cfg *config.Config) ([]usecase.Option, error) {
	var (
		opts      []usecase.Option
		notifiers []usecase.HandoffNotifier
	)
	if cfg.AWS.HandoffTable != "" {
		repo, err := do.Invoke[*repository.Client](di)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, repo)
		opts = append(opts, usecase.WithHandoffArchive(repo))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := do.Invoke[*kafka.Producer](di)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, producer)
	}
	return append(opts, usecase.WithNotifiers(notifiers...)), nil
}
