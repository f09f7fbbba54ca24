package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"

	"support-agent/internal/app"
	"support-agent/internal/config"
	"support-agent/internal/logging"
	"support-agent/internal/metrics"
	"support-agent/internal/usecase"
	"support-agent/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("web server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	logging.Preinit()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCloser, err := logging.Init(logging.Options{
		Level:          cfg.Log.Level,
		Console:        true,
		File:           cfg.Log.File,
		TelegramToken:  cfg.Log.TelegramToken,
		TelegramChatID: cfg.Log.TelegramChatID,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	di := app.New(ctx, cfg)
	defer func() {
		if err := di.Shutdown(); err != nil {
			slog.Warn("shutdown failed", "err", err)
		}
	}()

	chat, err := do.Invoke[*usecase.ChatService](di)
	if err != nil {
		return err
	}
	if ok, msg := chat.HealthCheck(ctx); !ok {
		slog.Warn("starting without a usable completion backend", "reason", msg)
	}

	server, err := web.New(chat, do.MustInvoke[*metrics.Metrics](di).Handler())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
