// Package telemetry records named business events of a conversation.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// Event names tracked by the bot.
const (
	Cancel                 = "CANCEL"
	ConversationStarted    = "CONVERSATION_STARTED"
	AccountPassword        = "ACCOUNT_PASSWORD"
	InfoPasswordExpiration = "INFO_PASSWORD_EXPIRATION"
	InfoAndResetPassword   = "INFO_AND_RESET_PASSWORD"
	InfoChangePassword     = "INFO_CHANGE_PASSWORD"
	InfoAccountLocked      = "INFO_ACCOUNT_LOCKED"
	LoginStart             = "LOGIN_START"
	LoginSuccess           = "LOGIN_SUCCESS"
	LoginFailure           = "LOGIN_FAILURE"
	SupportTicketStart     = "SUPPORT_TICKET_START"
	NoSimilarSolutionFound = "NO_SIMILAR_SOLUTION_FOUND"
	ShowSimilarSolutions   = "SHOW_SIMILAR_SOLUTIONS"
	PasswordResetStart     = "PASSWORD_RESET_START"
	ContinueCreatingTicket = "CONTINUE_CREATING_TICKET"
	StopTicketCreation     = "STOP_TICKET_CREATION"
	QueryTickets           = "QUERY_TICKETS"
	UnhandledError         = "UNHANDLED_ERROR"
)

// Event is one tracked occurrence.
type Event struct {
	Name           string
	ConversationID string
	ActivityID     string
	Properties     map[string]string
}

// Tracker receives events. Implementations must not fail the turn.
type Tracker interface {
	Track(ctx context.Context, e Event)
}

// LogTracker writes events as structured log lines.
type LogTracker struct {
	logger *slog.Logger
}

func NewLogTracker(logger *slog.Logger) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{logger: logger}
}

func (t *LogTracker) Track(ctx context.Context, e Event) {
	attrs := []any{
		"event", e.Name,
		"conversation_id", e.ConversationID,
		"activity_id", e.ActivityID,
	}
	for k, v := range e.Properties {
		attrs = append(attrs, k, v)
	}
	t.logger.InfoContext(ctx, "telemetry event", attrs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Names returns the names of the recorded events in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
