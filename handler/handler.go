// Package handler adapts API Gateway proxy events to the turn service.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type TurnUseCase interface {
	Handle(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type Handler struct {
	turns  TurnUseCase
	logger *slog.Logger
}

type turnResponse struct {
	Activities []domain.Activity `json:"activities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(turns TurnUseCase) (*Handler, error) {
	if turns == nil {
		return nil, errors.New("handler: turn use case must not be nil")
	}
	return &Handler{turns: turns, logger: slog.Default()}, nil
}

// Handle decodes one inbound activity, runs the turn and returns the bot's
// replies.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			logger.WarnContext(ctx, "invalid base64 body", "error", err)
			return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidActivity, correlationID), nil
		}
		body = string(raw)
	}

	var activity domain.Activity
	if err := json.Unmarshal([]byte(body), &activity); err != nil {
		logger.WarnContext(ctx, "invalid activity body", "error", err)
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidActivity, correlationID), nil
	}

	out, err := h.turns.Handle(ctx, usecase.TurnInput{Activity: activity})
	if err != nil {
		status, code := mapError(err)
		logger.ErrorContext(ctx, "turn failed",
			"status", status,
			"code", code,
			"conversation_id", activity.Conversation.ID,
			"error", err,
		)
		return errorJSON(status, code, correlationID), nil
	}

	activities := out.Activities
	if activities == nil {
		activities = []domain.Activity{}
	}
	logger.InfoContext(ctx, "turn handled",
		"conversation_id", activity.Conversation.ID,
		"activity_type", activity.Type,
		"replies", len(activities),
	)
	return jsonResponse(http.StatusOK, turnResponse{Activities: activities}, correlationID), nil
}

func mapError(err error) (int, usecase.ErrorCode) {
	code := usecase.CodeOf(err)
	if code == usecase.ErrorInvalidActivity {
		return http.StatusBadRequest, code
	}
	return http.StatusInternalServerError, usecase.ErrorInternal
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func errorJSON(status int, code usecase.ErrorCode, correlationID string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: string(code)}, correlationID)
}

func jsonResponse(status int, v any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
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
