package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"service-desk-bot/internal/domain"
)

const (
	skState     = "STATE#"
	skMeta      = "META#"
	convPrefix  = "CONV#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding conversation and user state.
// Both scopes share the table: PK is the state key (CONV#<id> or USER#<id>)
// and SK tells the state document apart from the conversation metadata.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// stateItem is the stored form of a state document. Values stay JSON text so
// the document round-trips without knowing its schema.
type stateItem struct {
	PK        string            `dynamodbav:"PK"`
	SK        string            `dynamodbav:"SK"`
	Document  map[string]string `dynamodbav:"document"`
	UpdatedAt string            `dynamodbav:"updatedAt"`
	TTL       int64             `dynamodbav:"ttl,omitempty"`
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return convPrefix + conversationID
}

// ttlValue returns a Unix timestamp 30 days after now.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

func (c *Client) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Load returns the state document stored under key, or nil when none exists.
func (c *Client) Load(ctx context.Context, key string) (domain.StateDocument, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(key, skState),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("repository: Load unmarshal: %w", err)
	}
	doc := make(domain.StateDocument, len(item.Document))
	for k, v := range item.Document {
		doc[k] = []byte(v)
	}
	return doc, nil
}

// Save replaces the state document stored under key. Conversation
// documents expire 30 days after their last write; user documents do not.
func (c *Client) Save(ctx context.Context, key string, doc domain.StateDocument) error {
	item, err := c.stateItem(key, doc)
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func (c *Client) stateItem(key string, doc domain.StateDocument) (map[string]types.AttributeValue, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("state key is required")
	}
	item := stateItem{
		PK:        key,
		SK:        skState,
		Document:  make(map[string]string, len(doc)),
		UpdatedAt: c.now().UTC().Format(time.RFC3339),
	}
	for k, v := range doc {
		item.Document[k] = string(v)
	}
	if strings.HasPrefix(key, convPrefix) {
		item.TTL = c.ttlValue()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal state item: %w", err)
	}
	return av, nil
}

// GetConversationTurnCount returns the persisted turn count for a conversation.
func (c *Client) GetConversationTurnCount(ctx context.Context, conversationID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(convPK(conversationID), skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	var meta domain.ConversationMeta
	if err := attributevalue.UnmarshalMap(out.Item, &meta); err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount decode turns: %w", err)
	}
	return meta.Turns, nil
}

// UpsertMeta writes or replaces the conversation metadata record.
func (c *Client) UpsertMeta(ctx context.Context, meta domain.ConversationMeta) error {
	item, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return fmt.Errorf("repository: UpsertMeta marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: UpsertMeta: %w", err)
	}
	return nil
}

// SaveTurn writes the conversation state document and the updated metadata
// in one transaction.
func (c *Client) SaveTurn(ctx context.Context, doc domain.StateDocument, meta domain.ConversationMeta) error {
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}
	stateAV, err := c.stateItem(meta.PK, doc)
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	metaAV, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return fmt.Errorf("repository: SaveTurn marshal meta: %w", err)
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(c.tableName), Item: stateAV}},
			{Put: &types.Put{TableName: aws.String(c.tableName), Item: metaAV}},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// RecordTurn increments the turn counter of a conversation.
func (c *Client) RecordTurn(ctx context.Context, conversationID string) error {
	turns, err := c.GetConversationTurnCount(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	if err := c.UpsertMeta(ctx, c.NewConversationMeta(conversationID, turns+1)); err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	return nil
}

// NewConversationMeta constructs a ConversationMeta record.
func (c *Client) NewConversationMeta(conversationID string, turns int) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		LastActivity:   c.now().UTC().Format(time.RFC3339),
		Turns:          turns,
		TTL:            c.ttlValue(),
	}
}
