package models

import "time"

// Conversation is the canonical record for a pair of users. The pair is
// stored with the lower user id first so that (A,B) and (B,A) always hit the
// same row; the composite unique index is what closes the concurrent-create
// race in services.GetOrCreateConversation.
type Conversation struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserLowID  int64     `gorm:"uniqueIndex:idx_conversation_pair;not null" json:"userLowId"`
	UserHighID int64     `gorm:"uniqueIndex:idx_conversation_pair;not null" json:"userHighId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Participants reports the two members in canonical order.
func (c *Conversation) Participants() (int64, int64) {
	return c.UserLowID, c.UserHighID
}

// HasParticipant reports whether userID is one of the two members.
func (c *Conversation) HasParticipant(userID int64) bool {
	return userID == c.UserLowID || userID == c.UserHighID
}

// Other returns the member that is not userID. Callers must have verified
// membership first.
func (c *Conversation) Other(userID int64) int64 {
	if userID == c.UserLowID {
		return c.UserHighID
	}
	return c.UserLowID
}

// Message is a direct message within a conversation. The autoincrement id is
// the ordering key; CreatedAt is informational only so clock skew between
// writers can never reorder history.
type Message struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64      `gorm:"index;not null" json:"conversationId"`
	SenderID       int64      `gorm:"index;not null" json:"senderId"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	IsRead         bool       `gorm:"default:false" json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`

	// Denormalized at query time, never stored
	SenderUsername string `gorm:"-" json:"senderUsername,omitempty"`
	SenderImage    string `gorm:"-" json:"senderImage,omitempty"`
}

// ConversationSummary is the derived per-user view returned by the
// conversation list endpoint. It is recomputed on every request.
type ConversationSummary struct {
	ConversationID int64     `json:"conversationId"`
	OtherUserID    int64     `json:"otherUserId"`
	OtherUsername  string    `json:"otherUsername"`
	OtherName      string    `json:"otherName"`
	OtherImage     string    `json:"otherImage"`
	LastMessage    *Message  `json:"lastMessage,omitempty"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	UnreadCount    int64     `json:"unreadCount"`
}
