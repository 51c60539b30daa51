package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/internal/database"
	"github.com/mir-codes/PhoSocial/internal/models"
	"github.com/mir-codes/PhoSocial/internal/realtime"
	"github.com/mir-codes/PhoSocial/internal/services"
	apperrors "github.com/mir-codes/PhoSocial/pkg/errors"
	"github.com/mir-codes/PhoSocial/pkg/logger"
)

// ChatHandler serves the chat REST surface. The realtime registry is an
// injected dependency so the same instance backs both the HTTP send path and
// the websocket channel.
type ChatHandler struct {
	registry *realtime.Registry
}

func NewChatHandler(registry *realtime.Registry) *ChatHandler {
	return &ChatHandler{registry: registry}
}

// GetOrCreateConversation resolves the conversation with another user,
// creating it on first contact.
// POST /api/chat/conversations/with/:otherUserId
func (h *ChatHandler) GetOrCreateConversation(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	otherID, err := strconv.ParseInt(c.Param("otherUserId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	convID, err := services.GetOrCreateConversation(userID, otherID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": convID})
}

// GetConversations returns the caller's conversation list, most recent
// activity first.
// GET /api/chat/conversations
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	summaries, err := services.GetConversationList(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages returns one page of history, newest first.
// GET /api/chat/messages/:conversationId?offset=&pageSize=
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	convID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	messages, err := services.GetMessagesPaged(convID, userID, offset, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage persists a message over plain HTTP and pushes it to any open
// delivery channels, mirroring the websocket send path.
// POST /api/chat/messages/:conversationId
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	convID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !allowSend(userID) {
		appErr := apperrors.TooManyRequests("Sending too fast")
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	msg, err := services.SendMessage(convID, userID, req.Body)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	conv, err := services.GetConversation(convID)
	if err == nil {
		h.broadcastMessage(conv.Other(userID), msg)
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead flags a single message as read.
// PUT /api/chat/messages/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	msgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	if err := services.MarkRead(msgID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// MarkConversationRead flags everything addressed to the caller in one
// conversation as read.
// PUT /api/chat/conversations/:conversationId/read
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	convID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}

	if err := services.MarkAllRead(convID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UnreadCount returns the caller's total unread messages for the topbar badge.
// GET /api/chat/unread-count
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	count, err := services.UnreadTotal(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// broadcastMessage pushes the persisted message to the recipient and acks
// the sender's own connections. Push is best-effort: the message is already
// durable, an offline recipient catches up via history.
func (h *ChatHandler) broadcastMessage(recipientID int64, msg *models.Message) {
	if h.registry == nil {
		return
	}

	if payload, err := realtime.Encode(realtime.EventReceiveMessage, msg); err == nil {
		h.registry.Push(recipientID, payload)
	}
	if payload, err := realtime.Encode(realtime.EventMessageSent, msg); err == nil {
		h.registry.Push(msg.SenderID, payload)
	}
}

// allowSend applies the per-user Redis send counter. Fails open when Redis
// is down so messaging keeps working without it.
func allowSend(userID int64) bool {
	if database.Redis == nil {
		return true
	}
	ok, err := database.CheckRateLimit(userID, "send_message", 30, time.Minute)
	if err != nil {
		return true
	}
	return ok
}

// mapServiceError translates a domain sentinel into the AppError the HTTP
// boundary responds with.
func mapServiceError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return apperrors.BadRequest("Invalid request")
	case errors.Is(err, services.ErrNotParticipant):
		return apperrors.Forbidden("Not a participant of this conversation")
	case errors.Is(err, services.ErrNotFound):
		return apperrors.NotFound("Not found")
	default:
		return apperrors.Internal("Internal server error")
	}
}

func respondServiceError(c *gin.Context, err error) {
	appErr := mapServiceError(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("chat request failed")
	}
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
