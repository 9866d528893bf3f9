// Package ticketapi is the client of the ticket microservice.
package ticketapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

const (
	functionKeyHeader = "x-functions-key"
	ticketIDDigits    = 6
)

// Client calls the ticket microservice. Non-2xx answers surface as
// *httpclient.StatusError carrying the service's error message.
type Client struct {
	http    *httpclient.Client
	baseURL string
	key     func(ctx context.Context) (string, error)
	now     func() time.Time
	newID   func() (string, error)
}

// NewClient creates a Client. key resolves the function key lazily.
func NewClient(hc *httpclient.Client, baseURL string, key func(ctx context.Context) (string, error)) (*Client, error) {
	if hc == nil {
		return nil, errors.New("ticketapi: http client must not be nil")
	}
	if key == nil {
		return nil, errors.New("ticketapi: key source must not be nil")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ticketapi: base url must not be empty")
	}
	return &Client{http: hc, baseURL: baseURL, key: key, now: time.Now, newID: newTicketID}, nil
}

// Open creates an open ticket for userID and returns its id.
func (c *Client) Open(ctx context.Context, description, userID string) (string, error) {
	id, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("ticketapi: generate ticket id: %w", err)
	}
	now := c.now().UTC()
	ticket := domain.SupportTicket{
		ID:          id,
		UserID:      userID,
		OpenDate:    now,
		Status:      domain.TicketStatusOpen,
		Description: description,
		LastUpdate:  now,
	}
	if err := c.do(ctx, http.MethodPost, "/ticket", nil, ticket, nil); err != nil {
		return "", fmt.Errorf("ticketapi: open ticket: %w", err)
	}
	return id, nil
}

// QueryByStatusAndUser lists the tickets of userID in status.
func (c *Client) QueryByStatusAndUser(ctx context.Context, userID string, status domain.TicketStatus) ([]domain.SupportTicket, error) {
	q := url.Values{"userId": {userID}, "status": {strconv.Itoa(int(status))}}
	var tickets []domain.SupportTicket
	if err := c.do(ctx, http.MethodGet, "/ticket", q, nil, &tickets); err != nil {
		return nil, fmt.Errorf("ticketapi: query tickets: %w", err)
	}
	return tickets, nil
}

// GetByIDAndUser returns ticket id when it belongs to userID, nil otherwise.
func (c *Client) GetByIDAndUser(ctx context.Context, id, userID string) (*domain.SupportTicket, error) {
	var ticket domain.SupportTicket
	if err := c.do(ctx, http.MethodGet, "/ticket/"+url.PathEscape(id), url.Values{"userId": {userID}}, nil, &ticket); err != nil {
		return nil, fmt.Errorf("ticketapi: get ticket %s: %w", id, err)
	}
	if ticket.ID == "" {
		return nil, nil
	}
	return &ticket, nil
}

// GetLastByUser returns the most recently updated ticket of userID, or nil.
func (c *Client) GetLastByUser(ctx context.Context, userID string) (*domain.SupportTicket, error) {
	var tickets []domain.SupportTicket
	if err := c.do(ctx, http.MethodGet, "/ticket/last", url.Values{"userId": {userID}}, nil, &tickets); err != nil {
		return nil, fmt.Errorf("ticketapi: get last ticket: %w", err)
	}
	if len(tickets) == 0 {
		return nil, nil
	}
	return &tickets[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	key, err := c.key(ctx)
	if err != nil {
		return fmt.Errorf("resolve function key: %w", err)
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	_, err = c.http.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     u,
		Headers: map[string]string{functionKeyHeader: key},
		Body:    body,
	}, out)
	return err
}

// newTicketID returns a random numeric id of ticketIDDigits digits.
func newTicketID() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < ticketIDDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", ticketIDDigits, n.Int64()), nil
}
