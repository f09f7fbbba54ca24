// Package repository persists flagged conversations to DynamoDB so human agents can pick them up.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"support-agent/internal/domain"
)

const (
	skHandoff     = "HANDOFF#"
	skPrefixEvent = "EVT#"
	ttlDuration   = 30 * 24 * time.Hour
)

// ErrNotFound is returned when a conversation has never been flagged.
var ErrNotFound = errors.New("repository: handoff not found")

// dynamodbAPI is the subset of *dynamodb.Client used here.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Client stores one current handoff record per conversation plus an append-only event per flag.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

func eventSK(ts time.Time) string {
	return skPrefixEvent + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// SaveHandoff overwrites the current record and appends an event in one transaction.
func (c *Client) SaveHandoff(ctx context.Context, fc domain.FlaggedConversation) error {
	if strings.TrimSpace(fc.ConversationID) == "" {
		return errors.New("repository: SaveHandoff: conversation id is required")
	}
	ts := fc.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	ttl := c.ttlValue()

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      handoffItem(fc, skHandoff, ts, ttl),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                handoffItem(fc, eventSK(ts), ts, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveHandoff: %w", err)
	}
	return nil
}

// NotifyHandoff lets the repository act as a handoff notifier.
func (c *Client) NotifyHandoff(ctx context.Context, fc domain.FlaggedConversation) error {
	return c.SaveHandoff(ctx, fc)
}

// GetHandoff returns the current record for a conversation or ErrNotFound.
func (c *Client) GetHandoff(ctx context.Context, conversationID string) (domain.FlaggedConversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skHandoff},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.FlaggedConversation{}, fmt.Errorf("repository: GetHandoff get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.FlaggedConversation{}, ErrNotFound
	}
	fc, err := itemToHandoff(out.Item)
	if err != nil {
		return domain.FlaggedConversation{}, fmt.Errorf("repository: GetHandoff decode: %w", err)
	}
	return fc, nil
}

// HandoffHistory returns up to limit flag events for a conversation, oldest first.
func (c *Client) HandoffHistory(ctx context.Context, conversationID string, limit int) ([]domain.FlaggedConversation, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEvent},
		},
		// newest first so the limit keeps the most recent events
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: HandoffHistory query: %w", err)
	}

	events := make([]domain.FlaggedConversation, 0, len(out.Items))
	for _, item := range out.Items {
		fc, err := itemToHandoff(item)
		if err != nil {
			return nil, fmt.Errorf("repository: HandoffHistory unmarshal: %w", err)
		}
		events = append(events, fc)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// ResolveHandoff marks the current record resolved. It fails with ErrNotFound if nothing was flagged.
func (c *Client) ResolveHandoff(ctx context.Context, conversationID string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skHandoff},
		},
		UpdateExpression:         aws.String("SET #status = :status, resolvedAt = :at"),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: domain.StatusResolved},
			":at":     &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return fmt.Errorf("repository: ResolveHandoff: %w", err)
	}
	return nil
}

func handoffItem(fc domain.FlaggedConversation, sk string, ts time.Time, ttl int64) map[string]types.AttributeValue {
	status := fc.Status
	if status == "" {
		status = domain.StatusWaitingForAgent
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(fc.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: sk},
		"conversationId": &types.AttributeValueMemberS{Value: fc.ConversationID},
		"timestamp":      &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
		"userMessage":    &types.AttributeValueMemberS{Value: fc.UserMessage},
		"reason":         &types.AttributeValueMemberS{Value: fc.Reason},
		"status":         &types.AttributeValueMemberS{Value: status},
		"urgency":        &types.AttributeValueMemberS{Value: string(fc.Urgency)},
		"category":       &types.AttributeValueMemberS{Value: string(fc.Category)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func itemToHandoff(item map[string]types.AttributeValue) (domain.FlaggedConversation, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.FlaggedConversation{}, err
	}
	rawTS, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.FlaggedConversation{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return domain.FlaggedConversation{}, fmt.Errorf("repository: parse timestamp: %w", err)
	}
	msg, _ := strAttr(item, "userMessage")
	reason, _ := strAttr(item, "reason")
	status, _ := strAttr(item, "status")
	urgency, _ := strAttr(item, "urgency")
	category, _ := strAttr(item, "category")

	return domain.FlaggedConversation{
		ConversationID: id,
		Timestamp:      ts,
		UserMessage:    msg,
		Reason:         reason,
		Status:         status,
		Urgency:        domain.Urgency(urgency),
		Category:       domain.Category(category),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
