// Package kafka publishes handoff events for downstream agent tooling.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"support-agent/internal/domain"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// handoffEvent is the message value published for every flagged conversation.
type handoffEvent struct {
	Type string `json:"type"`
	domain.FlaggedConversation
}

// Producer sends handoff events keyed by conversation id.
type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka: topic must not be empty")
	}
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}, topic), nil
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// NotifyHandoff publishes fc. Hash balancing keeps one conversation on one partition.
func (p *Producer) NotifyHandoff(ctx context.Context, fc domain.FlaggedConversation) error {
	data, err := json.Marshal(handoffEvent{Type: "handoff_requested", FlaggedConversation: fc})
	if err != nil {
		return fmt.Errorf("kafka: marshal handoff: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fc.ConversationID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "category", Value: []byte(fc.Category)},
			{Key: "urgency", Value: []byte(fc.Urgency)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write handoff to %s: %w", p.topic, err)
	}

	slog.Debug("published handoff", "topic", p.topic, "conversation_id", fc.ConversationID)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Shutdown lets the injector close the writer on exit.
func (p *Producer) Shutdown() error {
	return p.Close()
}
