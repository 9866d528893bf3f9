// Package ticketservice is the mock ticket microservice: a small HTTP API
// over a DynamoDB table of support tickets.
package ticketservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"service-desk-bot/internal/domain"
)

// UserIndex is the global secondary index keyed by userId.
const UserIndex = "userId-index"

type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RequestError is a caller mistake reported with its HTTP status.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(msg string) error {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

// Store keeps tickets in a table whose partition key is the ticket id.
type Store struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewStore(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("ticketservice: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("ticketservice: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName, now: time.Now}, nil
}

// QueryByStatusAndUser lists the tickets of userID in status.
func (s *Store) QueryByStatusAndUser(ctx context.Context, userID string, status domain.TicketStatus) ([]domain.SupportTicket, error) {
	if userID == "" {
		return nil, badRequest("User id is required")
	}
	statusAV, err := attributevalue.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("ticketservice: marshal status: %w", err)
	}
	return s.queryUser(ctx, userID, func(in *dynamodb.QueryInput) {
		in.FilterExpression = aws.String("#status = :status")
		in.ExpressionAttributeNames = map[string]string{"#status": "status"}
		in.ExpressionAttributeValues[":status"] = statusAV
	})
}

// LastByUser returns the most recently updated ticket of userID as a list
// of at most one element.
func (s *Store) LastByUser(ctx context.Context, userID string) ([]domain.SupportTicket, error) {
	if userID == "" {
		return nil, badRequest("User id is required")
	}
	tickets, err := s.queryUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return []domain.SupportTicket{}, nil
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].LastUpdate.After(tickets[j].LastUpdate)
	})
	return tickets[:1], nil
}

// GetByIDAndUser returns ticket id when it belongs to userID. A missing or
// foreign ticket yields nil.
func (s *Store) GetByIDAndUser(ctx context.Context, id, userID string) (*domain.SupportTicket, error) {
	if userID == "" {
		return nil, badRequest("User id is required")
	}
	if id == "" {
		return nil, badRequest("Ticket id is required")
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return nil, fmt.Errorf("ticketservice: get ticket %s: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	var t domain.SupportTicket
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, fmt.Errorf("ticketservice: decode ticket %s: %w", id, err)
	}
	if t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

// Create stores t. Missing dates are set to now.
func (s *Store) Create(ctx context.Context, t domain.SupportTicket) (domain.SupportTicket, error) {
	if t.ID == "" {
		return domain.SupportTicket{}, badRequest("Ticket id is required")
	}
	if t.UserID == "" {
		return domain.SupportTicket{}, badRequest("User id is required")
	}
	now := s.now().UTC()
	if t.OpenDate.IsZero() {
		t.OpenDate = now
	}
	if t.LastUpdate.IsZero() {
		t.LastUpdate = now
	}
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return domain.SupportTicket{}, fmt.Errorf("ticketservice: marshal ticket: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return domain.SupportTicket{}, &RequestError{Status: http.StatusConflict, Message: "Ticket " + t.ID + " already exists"}
		}
		return domain.SupportTicket{}, fmt.Errorf("ticketservice: put ticket: %w", err)
	}
	return t, nil
}

func (s *Store) queryUser(ctx context.Context, userID string, customize func(*dynamodb.QueryInput)) ([]domain.SupportTicket, error) {
	var (
		tickets []domain.SupportTicket
		start   map[string]types.AttributeValue
	)
	for {
		in := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(UserIndex),
			KeyConditionExpression: aws.String("userId = :userId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":userId": &types.AttributeValueMemberS{Value: userID},
			},
			ExclusiveStartKey: start,
		}
		if customize != nil {
			customize(in)
		}
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("ticketservice: query tickets of %s: %w", userID, err)
		}
		var page []domain.SupportTicket
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("ticketservice: decode tickets: %w", err)
		}
		tickets = append(tickets, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	if tickets == nil {
		tickets = []domain.SupportTicket{}
	}
	return tickets, nil
}
