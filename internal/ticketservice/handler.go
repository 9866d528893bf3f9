package ticketservice

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"service-desk-bot/internal/domain"
)

const functionKeyHeader = "x-functions-key"

// Tickets is the storage the handler serves.
type Tickets interface {
	QueryByStatusAndUser(ctx context.Context, userID string, status domain.TicketStatus) ([]domain.SupportTicket, error)
	LastByUser(ctx context.Context, userID string) ([]domain.SupportTicket, error)
	GetByIDAndUser(ctx context.Context, id, userID string) (*domain.SupportTicket, error)
	Create(ctx context.Context, t domain.SupportTicket) (domain.SupportTicket, error)
}

type Handler struct {
	tickets Tickets
	key     string
	logger  *slog.Logger
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewHandler(tickets Tickets, functionKey string, logger *slog.Logger) (*Handler, error) {
	if tickets == nil {
		return nil, errors.New("ticketservice: tickets must not be nil")
	}
	if strings.TrimSpace(functionKey) == "" {
		return nil, errors.New("ticketservice: function key must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tickets: tickets, key: functionKey, logger: logger}, nil
}

// Handle serves:
//
//	GET  /ticket?userId=&status=
//	GET  /ticket/last?userId=
//	GET  /ticket/{id}?userId=
//	POST /ticket
//
// Any path prefix before /ticket is ignored.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !h.authorized(req.Headers) {
		return h.fail(ctx, req, &RequestError{Status: http.StatusUnauthorized, Message: "Unauthorized"}), nil
	}

	rest, ok := ticketPath(req.Path)
	if !ok {
		return h.fail(ctx, req, &RequestError{Status: http.StatusNotFound, Message: "Not found"}), nil
	}
	userID := req.QueryStringParameters["userId"]

	var (
		out any
		err error
	)
	switch {
	case req.HTTPMethod == http.MethodGet && rest == "":
		var status domain.TicketStatus
		status, err = parseStatus(req.QueryStringParameters["status"])
		if err == nil {
			out, err = h.tickets.QueryByStatusAndUser(ctx, userID, status)
		}
	case req.HTTPMethod == http.MethodGet && rest == "last":
		out, err = h.tickets.LastByUser(ctx, userID)
	case req.HTTPMethod == http.MethodGet && !strings.Contains(rest, "/"):
		var t *domain.SupportTicket
		t, err = h.tickets.GetByIDAndUser(ctx, rest, userID)
		if t == nil {
			out = struct{}{}
		} else {
			out = t
		}
	case req.HTTPMethod == http.MethodPost && rest == "":
		var t domain.SupportTicket
		if uerr := json.Unmarshal([]byte(req.Body), &t); uerr != nil {
			err = badRequest("Invalid ticket body")
		} else {
			out, err = h.tickets.Create(ctx, t)
		}
	default:
		err = &RequestError{Status: http.StatusNotFound, Message: "Not found"}
	}
	if err != nil {
		return h.fail(ctx, req, err), nil
	}
	return respond(http.StatusOK, out), nil
}

func (h *Handler) authorized(headers map[string]string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, functionKeyHeader) {
			return subtle.ConstantTimeCompare([]byte(v), []byte(h.key)) == 1
		}
	}
	return false
}

func (h *Handler) fail(ctx context.Context, req events.APIGatewayProxyRequest, err error) events.APIGatewayProxyResponse {
	status := http.StatusInternalServerError
	message := "Internal error"
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status, message = reqErr.Status, reqErr.Message
		h.logger.WarnContext(ctx, "ticket request rejected", "method", req.HTTPMethod, "path", req.Path, "status", status, "error", message)
	} else {
		h.logger.ErrorContext(ctx, "ticket request failed", "method", req.HTTPMethod, "path", req.Path, "error", err)
	}
	return respond(status, errorResponse{Success: false, Error: message})
}

// ticketPath returns what follows the /ticket segment of p.
func ticketPath(p string) (string, bool) {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		if s == "ticket" {
			return strings.Join(segments[i+1:], "/"), true
		}
	}
	return "", false
}

func parseStatus(raw string) (domain.TicketStatus, error) {
	if raw == "" {
		return 0, badRequest("Status is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("Status must be a number")
	}
	return domain.TicketStatus(n), nil
}

func respond(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"Internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
