package domain

import "encoding/json"

// ActivityType mirrors the Bot Framework activity types the bot understands.
type ActivityType string

const (
	ActivityMessage            ActivityType = "message"
	ActivityConversationUpdate ActivityType = "conversationUpdate"
	ActivityEvent              ActivityType = "event"
	ActivityInvoke             ActivityType = "invoke"
)

// AdaptiveCardContentType is the attachment content type for adaptive cards.
const AdaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// ChannelAccount identifies a participant in a conversation.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Attachment is a rich payload (card) sent along with a message.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     any    `json:"content"`
}

// Activity is the inbound and outbound unit of conversation.
type Activity struct {
	Type             ActivityType        `json:"type"`
	ID               string              `json:"id,omitempty"`
	ChannelID        string              `json:"channelId,omitempty"`
	Conversation     ConversationAccount `json:"conversation"`
	From             ChannelAccount      `json:"from"`
	Recipient        ChannelAccount      `json:"recipient"`
	Text             string              `json:"text,omitempty"`
	Locale           string              `json:"locale,omitempty"`
	MembersAdded     []ChannelAccount    `json:"membersAdded,omitempty"`
	AttachmentLayout string              `json:"attachmentLayout,omitempty"`
	Attachments      []Attachment        `json:"attachments,omitempty"`
	Name             string              `json:"name,omitempty"`
	Value            json.RawMessage     `json:"value,omitempty"`
	ReplyToID        string              `json:"replyToId,omitempty"`
}

// IsMessage reports whether the activity carries user text.
func (a Activity) IsMessage() bool {
	return a.Type == ActivityMessage
}

// TextMessage builds an outbound message activity.
func TextMessage(text string) Activity {
	return Activity{Type: ActivityMessage, Text: text}
}

// Carousel builds an outbound message with horizontally laid out attachments.
func Carousel(attachments []Attachment) Activity {
	return Activity{Type: ActivityMessage, AttachmentLayout: "carousel", Attachments: attachments}
}
