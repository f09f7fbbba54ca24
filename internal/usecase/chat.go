package usecase

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"support-agent/internal/conversation"
	"support-agent/internal/domain"
	"support-agent/internal/integrations/cohere"
	"support-agent/internal/logging"
	"support-agent/internal/sanitize"
)

// Replies returned when the completion client fails. Callers only ever see strings.
const (
	ReplyAuth        = "Authentication error. Please check your API key."
	ReplyRateLimited = "I wasn't able to process your request. Please try again later."
	ReplyUpstream    = "I'm having trouble connecting right now. Please try again."
	ReplyTimeout     = "The request took too long. Please try again."
	ReplyNetwork     = "Connection error. Please try again."
	ReplyMalformed   = "I couldn't process that request. Could you try rephrasing?"
	ReplyUnexpected  = "An unexpected error occurred. Please try again."
	ReplyGeneric     = "I'm sorry, I experienced a technical issue. Please try again."
)

// Reply paths reported to the Recorder.
const (
	PathModel    = "model"
	PathFailure  = "failure"
	PathTransfer = "transfer"
	PathError    = "error"
)

const defaultNotifyTimeout = 5 * time.Second

type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
	HealthCheck(ctx context.Context) error
}

type ConversationStore interface {
	Begin(id string) *conversation.Session
	GetOrCreate(id string) domain.Conversation
	Clear(id string)
}

type Triager interface {
	Evaluate(message string) domain.TriageResult
}

// HandoffQueue keeps the latest flag per conversation for human agents.
type HandoffQueue interface {
	Flag(conversationID, userMessage string, result domain.TriageResult) domain.FlaggedConversation
	Get(conversationID string) (domain.FlaggedConversation, bool)
	Pending() []domain.FlaggedConversation
	Resolve(conversationID string) bool
}

type TransferMessages interface {
	Transfer(category domain.Category) string
}

// HandoffNotifier is told about every flagged conversation. Errors are logged only.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, fc domain.FlaggedConversation) error
}

type Recorder interface {
	ObserveReply(path string)
	ObserveHandoff(category domain.Category, urgency domain.Urgency)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReply(string)                             {}
func (nopRecorder) ObserveHandoff(domain.Category, domain.Urgency) {}

// ChatService answers one message at a time for any number of conversations.
type ChatService struct {
	store    ConversationStore
	llm      Completer
	preamble string

	triager   Triager
	queue     HandoffQueue
	archive   HandoffArchive
	messages  TransferMessages
	notifiers []HandoffNotifier
	recorder  Recorder

	notifyTimeout time.Duration
}

type Option func(*ChatService)

// WithHumanFallback enables triage; without it every message goes to the model.
func WithHumanFallback(t Triager, q HandoffQueue, m TransferMessages) Option {
	return func(s *ChatService) {
		s.triager = t
		s.queue = q
		s.messages = m
	}
}

func WithNotifiers(n ...HandoffNotifier) Option {
	return func(s *ChatService) {
		for _, notifier := range n {
			if notifier != nil {
				s.notifiers = append(s.notifiers, notifier)
			}
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *ChatService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *ChatService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func NewChatService(store ConversationStore, llm Completer, prompt PromptConfig, opts ...Option) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	s := &ChatService{
		store:         store,
		llm:           llm,
		preamble:      BuildPreamble(prompt),
		recorder:      nopRecorder{},
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.triager != nil && (s.queue == nil || s.messages == nil) {
		return nil, errors.New("usecase: human fallback needs a handoff queue and transfer messages")
	}
	return s, nil
}

// Chat returns the reply for message. It never fails; every problem becomes a user-facing string.
func (s *ChatService) Chat(ctx context.Context, message, conversationID string) (reply string) {
	id := normalizeConversationID(conversationID)
	path := PathError

	defer func() {
		if r := recover(); r != nil {
			slog.Error("chat panicked",
				"conversation_id", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply = ReplyGeneric
			path = PathError
		}
		s.recorder.ObserveReply(path)
	}()

	if strings.TrimSpace(message) == "" {
		path = PathModel
		return sanitize.RephrasePrompt
	}

	if s.triager != nil {
		result := s.triager.Evaluate(message)
		if result.ShouldTransfer {
			path = PathTransfer
			return s.transfer(ctx, id, message, result)
		}
	}

	reply, path = s.answer(ctx, id, message)
	return reply
}

// transfer flags the conversation and answers with a canned message. History is left untouched.
func (s *ChatService) transfer(ctx context.Context, id, message string, result domain.TriageResult) string {
	fc := s.queue.Flag(id, message, result)

	slog.Info("human agent needed",
		"conversation_id", id,
		"reason", fc.Reason,
		"category", fc.Category,
		"urgency", fc.Urgency,
		logging.Alert(),
	)
	s.recorder.ObserveHandoff(fc.Category, fc.Urgency)
	s.notify(ctx, fc)

	return s.messages.Transfer(result.Category)
}

func (s *ChatService) notify(ctx context.Context, fc domain.FlaggedConversation) {
	if len(s.notifiers) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	var g errgroup.Group
	for _, n := range s.notifiers {
		g.Go(func() error {
			if err := n.NotifyHandoff(nctx, fc); err != nil {
				slog.Warn("handoff notification failed",
					"conversation_id", fc.ConversationID,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// answer runs one model turn while holding the conversation's session.
func (s *ChatService) answer(ctx context.Context, id, message string) (string, string) {
	sess := s.store.Begin(id)
	defer sess.Done()

	req := domain.NewCompletionRequest(message, sess.History(0), s.preamble)
	raw, err := s.llm.Complete(ctx, req)
	if err != nil {
		reply, ok := replyForError(err)
		if !ok {
			slog.Error("completion failed", "conversation_id", id, "error", err)
			return ReplyGeneric, PathError
		}
		sess.Append(domain.UserTurn(message), domain.AssistantTurn(reply))
		return reply, PathFailure
	}

	reply := sanitize.Reply(raw)
	sess.Append(domain.UserTurn(message), domain.AssistantTurn(reply))
	return reply, PathModel
}

// replyForError maps a completion failure to its fixed reply. It reports false for foreign errors.
func replyForError(err error) (string, bool) {
	var cErr *cohere.Error
	if !errors.As(err, &cErr) {
		return "", false
	}

	slog.Warn("completion failed",
		"kind", cErr.Kind,
		"attempts", cErr.Attempts,
		"error", cErr.Err,
	)

	switch cErr.Kind {
	case cohere.KindAuth:
		return ReplyAuth, true
	case cohere.KindRateLimited:
		return ReplyRateLimited, true
	case cohere.KindUpstream:
		return ReplyUpstream, true
	case cohere.KindTimeout:
		return ReplyTimeout, true
	case cohere.KindNetwork:
		return ReplyNetwork, true
	case cohere.KindMalformed:
		return ReplyMalformed, true
	default:
		return ReplyUnexpected, true
	}
}

// ClearConversation resets the history of one conversation.
func (s *ChatService) ClearConversation(conversationID string) {
	s.store.Clear(normalizeConversationID(conversationID))
}

// Conversation returns a snapshot of the stored history.
func (s *ChatService) Conversation(conversationID string) domain.Conversation {
	return s.store.GetOrCreate(normalizeConversationID(conversationID))
}

// HealthCheck reports whether the completion backend is configured.
func (s *ChatService) HealthCheck(ctx context.Context) (bool, string) {
	if err := s.llm.HealthCheck(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		return false, "Completion API is not configured: " + err.Error()
	}
	return true, "Bot is healthy and ready"
}
