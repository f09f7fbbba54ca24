package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(nil, "handoffs")
	require.ErrorContains(t, err, "broker")

	_, err = NewProducer([]string{"localhost:9092"}, " ")
	require.ErrorContains(t, err, "topic")

	p, err := NewProducer([]string{"localhost:9092"}, "handoffs")
	require.NoError(t, err)
	require.Equal(t, "handoffs", p.topic)
}

func TestNotifyHandoff_PublishesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "handoffs")

	fc := domain.FlaggedConversation{
		ConversationID: "c7",
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UserMessage:    "my order is broken, urgent",
		Reason:         "Multiple keywords: broken, urgent",
		Status:         domain.StatusWaitingForAgent,
		Urgency:        domain.UrgencyUrgent,
		Category:       domain.CategoryTechnical,
	}
	require.NoError(t, p.NotifyHandoff(context.Background(), fc))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "c7", string(msg.Key))
	require.Equal(t, []kafka.Header{
		{Key: "category", Value: []byte("technical")},
		{Key: "urgency", Value: []byte("urgent")},
	}, msg.Headers)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, "handoff_requested", got["type"])
	require.Equal(t, "c7", got["conversation_id"])
	require.Equal(t, "waiting_for_agent", got["status"])
	require.Equal(t, "2026-01-02T03:04:05Z", got["timestamp"])
}

func TestNotifyHandoff_WriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("leader not available")}, "handoffs")
	err := p.NotifyHandoff(context.Background(), domain.FlaggedConversation{ConversationID: "c1"})
	require.ErrorContains(t, err, "leader not available")
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, "t").Close())
	require.True(t, w.closed)
}
