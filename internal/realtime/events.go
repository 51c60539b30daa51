package realtime

import "encoding/json"

// Server-to-client event types.
const (
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventUserTyping     = "user_typing"
	EventMessageRead    = "message_read"
	EventError          = "error"
)

// Client-to-server command types.
const (
	CommandSendMessage = "send_message"
	CommandTyping      = "typing"
	CommandMarkRead    = "mark_read"
)

// Event is the server-to-client envelope.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Command is the client-to-server envelope. Fields are a union across all
// command types; the handler validates per type.
type Command struct {
	Type        string `json:"type"`
	OtherUserID int64  `json:"otherUserId,omitempty"`
	Body        string `json:"body,omitempty"`
	MessageID   int64  `json:"messageId,omitempty"`
}

// Encode marshals an event for the wire.
func Encode(eventType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Payload: payload})
}
