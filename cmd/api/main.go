package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/samber/do"

	"support-agent/handler"
	"support-agent/internal/app"
	"support-agent/internal/config"
	"support-agent/internal/logging"
	"support-agent/internal/usecase"
)

func main() {
	logging.Preinit()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Lambda ships stderr to CloudWatch, so no log file here.
	logCloser, err := logging.Init(logging.Options{
		Level:          cfg.Log.Level,
		Console:        true,
		TelegramToken:  cfg.Log.TelegramToken,
		TelegramChatID: cfg.Log.TelegramChatID,
	})
	if err != nil {
		slog.Error("failed to init logging", "err", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	di := app.New(context.Background(), cfg)
	defer di.Shutdown()

	chat, err := do.Invoke[*usecase.ChatService](di)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chat)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
