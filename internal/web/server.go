// Package web serves the browser demo and its JSON endpoints.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"support-agent/internal/domain"
	"support-agent/internal/usecase"
)

//go:embed static/index.html
var indexHTML string

type ChatUseCase interface {
	Chat(ctx context.Context, message, conversationID string) string
	ClearConversation(conversationID string)
	HealthCheck(ctx context.Context) (bool, string)
	PendingHandoffs(ctx context.Context) ([]domain.FlaggedConversation, error)
	Handoff(ctx context.Context, conversationID string) (usecase.HandoffDetails, error)
	ResolveHandoff(ctx context.Context, conversationID string) error
}

type chatRequest struct {
	Message        *string `json:"message"`
	ConversationID string  `json:"conversation_id"`
}

type Server struct {
	app  *fiber.App
	chat ChatUseCase
}

// New builds the app. A nil metrics handler leaves /metrics unrouted.
func New(chat ChatUseCase, metrics http.Handler) (*Server, error) {
	if chat == nil {
		return nil, errors.New("web: chat use case must not be nil")
	}
	s := &Server{chat: chat}

	s.app = fiber.New(fiber.Config{
		AppName:               "support-agent",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())

	s.app.Get("/", s.index)
	s.app.Post("/chat", s.handleChat)
	s.app.Get("/health", s.handleHealth)
	s.app.Post("/clear/:conversation_id", s.handleClear)
	s.app.Get("/handoffs", s.handlePendingHandoffs)
	s.app.Get("/handoffs/:conversation_id", s.handleHandoff)
	s.app.Post("/handoffs/:conversation_id/resolve", s.handleResolveHandoff)
	if metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
	s.app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Endpoint not found"})
	})

	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	slog.Info("web server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) index(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(indexHTML)
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil || req.Message == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}

	in, err := usecase.ParseChatInput(*req.Message, req.ConversationID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   inputErrorMessage(err),
		})
	}

	reply := s.chat.Chat(c.UserContext(), in.Message, in.ConversationID)
	slog.Info("chat request", "conversation_id", in.ConversationID, "message", preview(in.Message))

	return c.JSON(fiber.Map{
		"success":         true,
		"response":        reply,
		"conversation_id": in.ConversationID,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ok, msg := s.chat.HealthCheck(c.UserContext())
	return c.JSON(fiber.Map{"healthy": ok, "message": msg})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.chat.ClearConversation(c.Params("conversation_id"))
	return c.JSON(fiber.Map{"success": true, "message": "Conversation cleared"})
}

func (s *Server) handlePendingHandoffs(c *fiber.Ctx) error {
	pending, err := s.chat.PendingHandoffs(c.UserContext())
	if err != nil {
		return useCaseError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "handoffs": pending})
}

func (s *Server) handleHandoff(c *fiber.Ctx) error {
	details, err := s.chat.Handoff(c.UserContext(), c.Params("conversation_id"))
	if err != nil {
		return useCaseError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "handoff": details.Current, "history": details.History})
}

func (s *Server) handleResolveHandoff(c *fiber.Ctx) error {
	if err := s.chat.ResolveHandoff(c.UserContext(), c.Params("conversation_id")); err != nil {
		return useCaseError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Handoff resolved"})
}

func useCaseError(c *fiber.Ctx, err error) error {
	var uErr *usecase.Error
	if !errors.As(err, &uErr) {
		return err
	}
	status := fiber.StatusInternalServerError
	switch uErr.Code {
	case usecase.ErrorInvalidInput:
		status = fiber.StatusBadRequest
	case usecase.ErrorNotFound:
		status = fiber.StatusNotFound
	case usecase.ErrorUnavailable:
		status = fiber.StatusServiceUnavailable
	}
	if status >= fiber.StatusInternalServerError {
		slog.Warn("handoff request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": string(uErr.Code), "reason": uErr.Reason})
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	slog.Error("web request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func inputErrorMessage(err error) string {
	var uErr *usecase.Error
	if errors.As(err, &uErr) && uErr.Reason == "message_too_long" {
		return "Message is too long"
	}
	return "Message cannot be empty"
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
