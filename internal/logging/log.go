// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// AlertKey marks records that should also reach the on-call chat.
const AlertKey = "telegram"

// Alert tags a record for the telegram handler.
func Alert() slog.Attr {
	return slog.Bool(AlertKey, true)
}

type Options struct {
	Level string
	// Console writes human-readable records to stderr. The CLI turns it off.
	Console        bool
	File           string
	TelegramToken  string
	TelegramChatID string
}

// Preinit installs a console logger used until configuration is loaded.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

// Init replaces the default logger. The returned closer flushes the log file.
func Init(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	router := slogmulti.Router()
	var closer io.Closer = nopCloser{}

	if opts.Console {
		router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
			AddSource: true,
			Level:     level,
		}))
	}

	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", path, err)
		}
		closer = f
		router = router.Add(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	if opts.TelegramToken != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     opts.TelegramToken,
				Username:  opts.TelegramChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			AlertFilter,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))
	return closer, nil
}

// AlertFilter passes errors and records carrying Alert.
func AlertFilter(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}
	tagged := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == AlertKey {
			tagged = true
			return false
		}
		return true
	})
	return tagged
}

// ParseLevel accepts slog level names; empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.Join(fmt.Errorf("logging: invalid level %q", s), err)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
