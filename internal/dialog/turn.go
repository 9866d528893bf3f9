package dialog

import (
	"log/slog"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/state"
)

// TurnContext carries everything scoped to one inbound activity. Replies are
// buffered and returned to the channel when the turn ends.
type TurnContext struct {
	Activity     domain.Activity
	Conversation *state.Bag
	User         *state.Bag
	Logger       *slog.Logger

	replies []domain.Activity
}

// NewTurnContext builds a TurnContext whose logger is tagged with the
// conversation and activity ids.
func NewTurnContext(activity domain.Activity, conversation, user *state.Bag, logger *slog.Logger) *TurnContext {
	if logger == nil {
		logger = slog.Default()
	}
	if conversation == nil {
		conversation = state.NewMemoryBag()
	}
	if user == nil {
		user = state.NewMemoryBag()
	}
	return &TurnContext{
		Activity:     activity,
		Conversation: conversation,
		User:         user,
		Logger: logger.With(
			"conversation_id", activity.Conversation.ID,
			"activity_id", activity.ID,
		),
	}
}

func (t *TurnContext) ConversationID() string {
	return t.Activity.Conversation.ID
}

func (t *TurnContext) ActivityID() string {
	return t.Activity.ID
}

// Send queues outbound activities addressed back to the sender.
func (t *TurnContext) Send(activities ...domain.Activity) {
	for _, a := range activities {
		if a.Type == "" {
			a.Type = domain.ActivityMessage
		}
		a.ChannelID = t.Activity.ChannelID
		a.Conversation = t.Activity.Conversation
		a.From = t.Activity.Recipient
		a.Recipient = t.Activity.From
		a.ReplyToID = t.Activity.ID
		if a.Locale == "" {
			a.Locale = t.Activity.Locale
		}
		t.replies = append(t.replies, a)
	}
}

// SendText queues a plain text reply.
func (t *TurnContext) SendText(text string) {
	t.Send(domain.TextMessage(text))
}

// Responded reports whether anything was sent during the turn.
func (t *TurnContext) Responded() bool {
	return len(t.replies) > 0
}

// Replies returns the activities sent during the turn.
func (t *TurnContext) Replies() []domain.Activity {
	out := make([]domain.Activity, len(t.replies))
	copy(out, t.replies)
	return out
}
