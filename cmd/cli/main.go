package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/do"

	"support-agent/internal/app"
	"support-agent/internal/config"
	"support-agent/internal/indicator"
	"support-agent/internal/logging"
	"support-agent/internal/usecase"
)

const typewriterDelay = 20 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error starting bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the conversation; logs only go to the file.
	logCloser, err := logging.Init(logging.Options{
		Level:          cfg.Log.Level,
		File:           cfg.Log.File,
		TelegramToken:  cfg.Log.TelegramToken,
		TelegramChatID: cfg.Log.TelegramChatID,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	di := app.New(ctx, cfg)
	defer di.Shutdown()

	chat, err := do.Invoke[*usecase.ChatService](di)
	if err != nil {
		return err
	}
	if ok, msg := chat.HealthCheck(ctx); !ok {
		return fmt.Errorf("%s", msg)
	}

	fmt.Println("🤖 Customer Support Bot Ready!")
	fmt.Println("Type 'quit' to exit")
	fmt.Println()

	typing := indicator.New(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "quit", "exit":
			fmt.Println("Bot: Goodbye! 👋")
			return nil
		case "":
			continue
		}

		reply := chatWithIndicator(ctx, chat, typing, input)
		fmt.Print("Bot: ")
		indicator.Typewrite(os.Stdout, reply, typewriterDelay)
	}
}

func chatWithIndicator(ctx context.Context, chat *usecase.ChatService, typing *indicator.Typing, input string) string {
	typing.Start()
	defer typing.Stop()
	return chat.Chat(ctx, input, "default")
}
