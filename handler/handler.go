// Package handler adapts API Gateway proxy events to the chat service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"support-agent/internal/domain"
	"support-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Chat(ctx context.Context, message, conversationID string) string
	ClearConversation(conversationID string)
	HealthCheck(ctx context.Context) (bool, string)
	PendingHandoffs(ctx context.Context) ([]domain.FlaggedConversation, error)
	Handoff(ctx context.Context, conversationID string) (usecase.HandoffDetails, error)
	ResolveHandoff(ctx context.Context, conversationID string) error
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

type handoffsResponse struct {
	Handoffs []domain.FlaggedConversation `json:"handoffs"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	chat ChatUseCase
}

func NewHandler(chat ChatUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{chat: chat}, nil
}

// Handle routes one API Gateway request. Transport errors are encoded in the response, never returned.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)
	logger := slog.With("correlation_id", correlationID, "method", event.HTTPMethod, "path", event.Path)

	path := strings.TrimRight(event.Path, "/")
	switch {
	case event.HTTPMethod == http.MethodPost && path == "/chat":
		return h.handleChat(ctx, logger, correlationID, event.Body), nil
	case event.HTTPMethod == http.MethodGet && path == "/health":
		ok, msg := h.chat.HealthCheck(ctx)
		return jsonResponse(http.StatusOK, correlationID, healthResponse{Healthy: ok, Message: msg}), nil
	case event.HTTPMethod == http.MethodPost && strings.HasPrefix(path, "/clear/"):
		return h.handleClear(logger, correlationID, event), nil
	case event.HTTPMethod == http.MethodGet && path == "/handoffs":
		return h.handlePendingHandoffs(ctx, logger, correlationID), nil
	case event.HTTPMethod == http.MethodGet && strings.HasPrefix(path, "/handoffs/"):
		return h.handleHandoff(ctx, logger, correlationID, event), nil
	case event.HTTPMethod == http.MethodPost && strings.HasPrefix(path, "/handoffs/") && strings.HasSuffix(path, "/resolve"):
		return h.handleResolveHandoff(ctx, logger, correlationID, event), nil
	case event.HTTPMethod == http.MethodGet && path == "":
		return jsonResponse(http.StatusOK, correlationID, statusResponse{
			Status:  "online",
			Message: "Customer Support Bot API is running. Use /chat endpoint to interact.",
		}), nil
	default:
		return jsonResponse(http.StatusNotFound, correlationID, errorResponse{
			Error:   "NOT_FOUND",
			Message: "Endpoint not found",
		}), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, logger *slog.Logger, correlationID, body string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		logger.Warn("invalid chat body", "error", err)
		return errorFor(correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err})
	}

	in, err := usecase.ParseChatInput(req.Message, req.ConversationID)
	if err != nil {
		logger.Info("rejected chat request", "error", err)
		return errorFor(correlationID, err)
	}

	reply := h.chat.Chat(ctx, in.Message, in.ConversationID)
	logger.Info("chat handled", "conversation_id", in.ConversationID)

	return jsonResponse(http.StatusOK, correlationID, chatResponse{
		Response:       reply,
		ConversationID: in.ConversationID,
	})
}

func (h *Handler) handleClear(logger *slog.Logger, correlationID string, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	id := strings.TrimSpace(event.PathParameters["conversation_id"])
	if id == "" {
		id = strings.TrimSpace(strings.TrimPrefix(strings.TrimRight(event.Path, "/"), "/clear/"))
	}
	if id == "" || strings.Contains(id, "/") {
		return errorFor(correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_conversation_id"})
	}

	h.chat.ClearConversation(id)
	logger.Info("conversation cleared", "conversation_id", id)
	return jsonResponse(http.StatusOK, correlationID, statusResponse{Status: "cleared", Message: "Conversation cleared"})
}

func (h *Handler) handlePendingHandoffs(ctx context.Context, logger *slog.Logger, correlationID string) events.APIGatewayProxyResponse {
	pending, err := h.chat.PendingHandoffs(ctx)
	if err != nil {
		logger.Warn("list handoffs failed", "error", err)
		return errorFor(correlationID, err)
	}
	return jsonResponse(http.StatusOK, correlationID, handoffsResponse{Handoffs: pending})
}

func (h *Handler) handleHandoff(ctx context.Context, logger *slog.Logger, correlationID string, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	id, ok := handoffID(event, "")
	if !ok {
		return errorFor(correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_conversation_id"})
	}
	details, err := h.chat.Handoff(ctx, id)
	if err != nil {
		logger.Info("handoff lookup failed", "conversation_id", id, "error", err)
		return errorFor(correlationID, err)
	}
	return jsonResponse(http.StatusOK, correlationID, details)
}

func (h *Handler) handleResolveHandoff(ctx context.Context, logger *slog.Logger, correlationID string, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	id, ok := handoffID(event, "/resolve")
	if !ok {
		return errorFor(correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_conversation_id"})
	}
	if err := h.chat.ResolveHandoff(ctx, id); err != nil {
		logger.Info("resolve handoff failed", "conversation_id", id, "error", err)
		return errorFor(correlationID, err)
	}
	logger.Info("handoff resolved", "conversation_id", id)
	return jsonResponse(http.StatusOK, correlationID, statusResponse{Status: "resolved", Message: "Handoff resolved"})
}

// handoffID reads the id from the path parameters, else from /handoffs/{id}<suffix>.
func handoffID(event events.APIGatewayProxyRequest, suffix string) (string, bool) {
	id := strings.TrimSpace(event.PathParameters["conversation_id"])
	if id == "" {
		rest := strings.TrimPrefix(strings.TrimRight(event.Path, "/"), "/handoffs/")
		id = strings.TrimSpace(strings.TrimSuffix(rest, suffix))
	}
	return id, id != "" && !strings.Contains(id, "/")
}

func errorFor(correlationID string, err error) events.APIGatewayProxyResponse {
	var uErr *usecase.Error
	if !errors.As(err, &uErr) {
		return jsonResponse(http.StatusInternalServerError, correlationID, errorResponse{Error: string(usecase.ErrorInternal)})
	}
	return jsonResponse(statusFor(uErr.Code), correlationID, errorResponse{Error: string(uErr.Code), Message: uErr.Reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, correlationID string, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
