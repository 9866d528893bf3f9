package domain

import "encoding/json"

// ConversationMeta stores aggregate conversation state next to the
// persisted state document.
type ConversationMeta struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	ConversationID string `dynamodbav:"conversationId"`
	LastActivity   string `dynamodbav:"lastActivity"`
	Turns          int    `dynamodbav:"turns"`
	TTL            int64  `dynamodbav:"ttl"`
}

// StateDocument is one persisted state scope (a conversation or a user):
// a flat bag of JSON values keyed by property name.
type StateDocument map[string]json.RawMessage

// Clone returns a deep copy of the document.
func (d StateDocument) Clone() StateDocument {
	out := make(StateDocument, len(d))
	for k, v := range d {
		buf := make(json.RawMessage, len(v))
		copy(buf, v)
		out[k] = buf
	}
	return out
}
