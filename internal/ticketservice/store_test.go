package ticketservice

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/domain"
)

// fakeDynamo is an in-memory table keyed by id. Query honours the userId
// key condition and the optional status filter.
type fakeDynamo struct {
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queryErr error
	queries  []*dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	if _, exists := f.items[id]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	userID := in.ExpressionAttributeValues[":userId"].(*types.AttributeValueMemberS).Value
	var status string
	if in.FilterExpression != nil {
		status = in.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberN).Value
	}

	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	after := ""
	if in.ExclusiveStartKey != nil {
		after = in.ExclusiveStartKey["id"].(*types.AttributeValueMemberS).Value
	}
	out := &dynamodb.QueryOutput{}
	for _, id := range ids {
		if id <= after {
			continue
		}
		item := f.items[id]
		if item["userId"].(*types.AttributeValueMemberS).Value != userID {
			continue
		}
		if status != "" && item["status"].(*types.AttributeValueMemberN).Value != status {
			continue
		}
		out.Items = append(out.Items, item)
		if f.pageSize > 0 && len(out.Items) == f.pageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
			break
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func mustNewStore(t *testing.T, db *fakeDynamo) *Store {
	t.Helper()
	s, err := NewStore(db, "tickets")
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func seed(t *testing.T, db *fakeDynamo, tickets ...domain.SupportTicket) {
	t.Helper()
	for _, tk := range tickets {
		item, err := attributevalue.MarshalMap(tk)
		require.NoError(t, err)
		db.items[tk.ID] = item
	}
}

func ticket(id, user string, status domain.TicketStatus, updated time.Time) domain.SupportTicket {
	return domain.SupportTicket{ID: id, UserID: user, Status: status, Description: "vpn", OpenDate: updated, LastUpdate: updated}
}

func requireRequestError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, status, reqErr.Status)
	require.Equal(t, msg, reqErr.Message)
}

func TestNewStore_Validates(t *testing.T) {
	_, err := NewStore(nil, "t")
	require.Error(t, err)
	_, err = NewStore(newFakeDynamo(), " ")
	require.Error(t, err)
}

func TestQueryByStatusAndUser(t *testing.T) {
	db := newFakeDynamo()
	seed(t, db,
		ticket("100001", "ana", domain.TicketStatusOpen, fixedNow),
		ticket("100002", "ana", domain.TicketStatusClosed, fixedNow),
		ticket("100003", "bia", domain.TicketStatusOpen, fixedNow),
		ticket("100004", "ana", domain.TicketStatusOpen, fixedNow),
	)
	db.pageSize = 1
	s := mustNewStore(t, db)

	got, err := s.QueryByStatusAndUser(context.Background(), "ana", domain.TicketStatusOpen)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "100001", got[0].ID)
	require.Equal(t, "100004", got[1].ID)
	require.Len(t, db.queries, 3)
	require.Equal(t, UserIndex, *db.queries[0].IndexName)
	require.Equal(t, "status", db.queries[0].ExpressionAttributeNames["#status"])
}

func TestQueryByStatusAndUser_EmptyIsNotNil(t *testing.T) {
	s := mustNewStore(t, newFakeDynamo())
	got, err := s.QueryByStatusAndUser(context.Background(), "ana", domain.TicketStatusOpen)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestQueryByStatusAndUser_RequiresUser(t *testing.T) {
	s := mustNewStore(t, newFakeDynamo())
	_, err := s.QueryByStatusAndUser(context.Background(), "", domain.TicketStatusOpen)
	requireRequestError(t, err, http.StatusBadRequest, "User id is required")
}

func TestQuery_WrapsBackendError(t *testing.T) {
	db := newFakeDynamo()
	db.queryErr = errors.New("throttled")
	s := mustNewStore(t, db)

	_, err := s.LastByUser(context.Background(), "ana")
	require.ErrorContains(t, err, "throttled")
	var reqErr *RequestError
	require.False(t, errors.As(err, &reqErr))
}

func TestLastByUser_NewestFirst(t *testing.T) {
	db := newFakeDynamo()
	seed(t, db,
		ticket("100001", "ana", domain.TicketStatusClosed, fixedNow.Add(-48*time.Hour)),
		ticket("100002", "ana", domain.TicketStatusOpen, fixedNow.Add(-time.Hour)),
		ticket("100003", "ana", domain.TicketStatusOpen, fixedNow.Add(-24*time.Hour)),
	)
	s := mustNewStore(t, db)

	got, err := s.LastByUser(context.Background(), "ana")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "100002", got[0].ID)

	none, err := s.LastByUser(context.Background(), "bia")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestGetByIDAndUser(t *testing.T) {
	db := newFakeDynamo()
	seed(t, db, ticket("100001", "ana", domain.TicketStatusOpen, fixedNow))
	s := mustNewStore(t, db)
	ctx := context.Background()

	got, err := s.GetByIDAndUser(ctx, "100001", "ana")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "vpn", got.Description)
	require.True(t, fixedNow.Equal(got.LastUpdate))

	foreign, err := s.GetByIDAndUser(ctx, "100001", "bia")
	require.NoError(t, err)
	require.Nil(t, foreign)

	missing, err := s.GetByIDAndUser(ctx, "999999", "ana")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = s.GetByIDAndUser(ctx, "", "ana")
	requireRequestError(t, err, http.StatusBadRequest, "Ticket id is required")
	_, err = s.GetByIDAndUser(ctx, "100001", "")
	requireRequestError(t, err, http.StatusBadRequest, "User id is required")
}

func TestCreate(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()

	created, err := s.Create(ctx, domain.SupportTicket{ID: "100001", UserID: "ana", Description: "impressora"})
	require.NoError(t, err)
	require.True(t, fixedNow.Equal(created.OpenDate))
	require.True(t, fixedNow.Equal(created.LastUpdate))
	require.Contains(t, db.items, "100001")

	_, err = s.Create(ctx, domain.SupportTicket{ID: "100001", UserID: "ana"})
	requireRequestError(t, err, http.StatusConflict, "Ticket 100001 already exists")

	_, err = s.Create(ctx, domain.SupportTicket{UserID: "ana"})
	requireRequestError(t, err, http.StatusBadRequest, "Ticket id is required")
}
