package services

import (
	"errors"
	"sort"
	"time"

	"github.com/mir-codes/PhoSocial/internal/database"
	"github.com/mir-codes/PhoSocial/internal/models"
	"github.com/mir-codes/PhoSocial/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Pagination bounds for message history. Oversized page sizes are clamped,
// not rejected, so old clients keep working.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// GetOrCreateConversation resolves the single conversation row for a pair of
// users, creating it on first use. The pair is canonicalized (lower id first)
// before both the lookup and the insert, and the insert goes through
// ON CONFLICT DO NOTHING on the pair's unique index: two concurrent callers
// with swapped argument order converge on the same row, the loser re-reads
// the winner's id instead of failing.
func GetOrCreateConversation(userA, userB int64) (int64, error) {
	if userA <= 0 || userB <= 0 {
		return 0, ErrInvalidArgument
	}
	if userA == userB {
		return 0, ErrInvalidArgument
	}

	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	var conv models.Conversation
	err := database.DB.Where("user_low_id = ? AND user_high_id = ?", low, high).First(&conv).Error
	if err == nil {
		return conv.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	conv = models.Conversation{UserLowID: low, UserHighID: high}
	res := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
		DoNothing: true,
	}).Create(&conv)
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		// Lost the race; the winner's row exists now.
		if err := database.DB.Where("user_low_id = ? AND user_high_id = ?", low, high).First(&conv).Error; err != nil {
			return 0, err
		}
	}

	return conv.ID, nil
}

// GetConversation loads a conversation by id.
func GetConversation(conversationID int64) (*models.Conversation, error) {
	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// GetMessage loads a single message by id.
func GetMessage(messageID int64) (*models.Message, error) {
	var msg models.Message
	if err := database.DB.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// SendMessage persists a message from senderID into the conversation. The
// body is sanitized before it touches storage. The returned record carries
// the sender's display fields joined at read time.
func SendMessage(conversationID, senderID int64, body string) (*models.Message, error) {
	conv, err := GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	clean, err := utils.SanitizeMessageBody(body)
	if err != nil {
		return nil, ErrInvalidArgument
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           clean,
		CreatedAt:      time.Now(),
	}
	if err := database.DB.Create(&msg).Error; err != nil {
		return nil, err
	}

	if err := annotateMessages(conv, []*models.Message{&msg}); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessagesPaged returns one page of history, newest first (ordered by id,
// not timestamp). Offset-based: page boundaries may drift under concurrent
// inserts, which callers are expected to tolerate.
func GetMessagesPaged(conversationID, requesterID int64, offset, pageSize int) ([]models.Message, error) {
	conv, err := GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	if offset < 0 {
		return nil, ErrInvalidArgument
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var messages []models.Message
	err = database.DB.
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.Message, len(messages))
	for i := range messages {
		ptrs[i] = &messages[i]
	}
	if err := annotateMessages(conv, ptrs); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flags one message as read. Only the non-sender participant may do
// so; marking an already-read message is a successful no-op.
func MarkRead(messageID, readerID int64) error {
	var msg models.Message
	if err := database.DB.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	conv, err := GetConversation(msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) || msg.SenderID == readerID {
		return ErrNotParticipant
	}

	if msg.IsRead {
		return nil
	}

	now := time.Now()
	return database.DB.Model(&models.Message{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
}

// MarkAllRead flags every unread message addressed to readerID in the
// conversation as read, in a single update.
func MarkAllRead(conversationID, readerID int64) error {
	conv, err := GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return ErrNotParticipant
	}

	now := time.Now()
	return database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
}

// GetConversationList builds the per-user conversation overview: other
// participant, last message preview and unread count, ordered by last
// activity. The counts are recomputed on every call; nothing here maintains
// a denormalized counter that could drift.
func GetConversationList(userID int64) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := database.DB.
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		otherID := conv.Other(userID)

		var other models.User
		if err := database.DB.First(&other, "id = ?", otherID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		summary := models.ConversationSummary{
			ConversationID: conv.ID,
			OtherUserID:    otherID,
			OtherUsername:  other.Username,
			OtherName:      other.Name,
			OtherImage:     other.Image,
			LastActivityAt: conv.CreatedAt,
		}

		var last models.Message
		err := database.DB.
			Where("conversation_id = ?", conv.ID).
			Order("id DESC").
			First(&last).Error
		if err == nil {
			if err := annotateMessages(conv, []*models.Message{&last}); err != nil {
				return nil, err
			}
			summary.LastMessage = &last
			summary.LastActivityAt = last.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var unread int64
		err = database.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id = ? AND is_read = ?", conv.ID, otherID, false).
			Count(&unread).Error
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		// Conversations with messages come before empty ones.
		if (a.LastMessage != nil) != (b.LastMessage != nil) {
			return a.LastMessage != nil
		}
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		return a.ConversationID > b.ConversationID
	})

	return summaries, nil
}

// UnreadTotal counts unread messages addressed to userID across all of their
// conversations. Used for the topbar badge.
func UnreadTotal(userID int64) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.user_low_id = ? OR conversations.user_high_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// annotateMessages fills the read-time sender display fields. A conversation
// only ever has two members, so the lookup is bounded.
func annotateMessages(conv *models.Conversation, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	var users []models.User
	low, high := conv.Participants()
	if err := database.DB.Find(&users, "id IN ?", []int64{low, high}).Error; err != nil {
		return err
	}

	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, m := range messages {
		if u, ok := byID[m.SenderID]; ok {
			m.SenderUsername = u.Username
			m.SenderImage = u.Image
		}
	}
	return nil
}
