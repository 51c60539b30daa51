package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mir-codes/PhoSocial/internal/realtime"
	"github.com/mir-codes/PhoSocial/internal/services"
	"github.com/mir-codes/PhoSocial/pkg/logger"
	"github.com/mir-codes/PhoSocial/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Minimum interval between typing events per sender, to prevent spam
const typingThrottleDuration = 3 * time.Second

// typingThrottle tracks the last typing emit per user.
type typingThrottle struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	interval time.Duration
}

func newTypingThrottle(interval time.Duration) *typingThrottle {
	t := &typingThrottle{
		last:     make(map[int64]time.Time),
		interval: interval,
	}

	// Drop idle senders every minute so the map stays bounded
	go func() {
		for {
			time.Sleep(time.Minute)
			t.prune()
		}
	}()

	return t
}

// prune removes entries whose throttle window has already expired.
func (t *typingThrottle) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, last := range t.last {
		if time.Since(last) > t.interval {
			delete(t.last, id)
		}
	}
}

func (t *typingThrottle) allow(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[userID]; ok && time.Since(last) < t.interval {
		return false
	}
	t.last[userID] = time.Now()
	return true
}

// WSHandler owns the delivery channel endpoint: websocket handshake,
// per-connection read loop and command dispatch.
type WSHandler struct {
	registry *realtime.Registry
	typing   *typingThrottle
}

func NewWSHandler(registry *realtime.Registry) *WSHandler {
	return &WSHandler{
		registry: registry,
		typing:   newTypingThrottle(typingThrottleDuration),
	}
}

// Serve authenticates and upgrades the connection, then pumps client
// commands until the channel closes. Authentication failure rejects before
// the upgrade, so a connection that never authenticates never registers.
// GET /ws?token=JWT
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	claims, err := utils.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(claims.UserID, ws)
	h.registry.Add(conn)
	logger.Info().Int64("user_id", conn.UserID).Str("session", conn.ID).Msg("channel open")

	defer func() {
		h.registry.Remove(conn)
		conn.Close(websocket.CloseNormalClosure, "")
		logger.Info().Int64("user_id", conn.UserID).Str("session", conn.ID).Msg("channel closed")
	}()

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(conn, payload)
	}
}

func (h *WSHandler) dispatch(conn *realtime.Connection, payload []byte) {
	var cmd realtime.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		h.sendError(conn, "malformed command")
		return
	}

	switch cmd.Type {
	case realtime.CommandSendMessage:
		h.handleSend(conn, cmd)
	case realtime.CommandTyping:
		h.handleTyping(conn, cmd)
	case realtime.CommandMarkRead:
		h.handleMarkRead(conn, cmd)
	default:
		h.sendError(conn, "unknown command type")
	}
}

// handleSend resolves the conversation, persists the message and fans it out:
// receive_message to every connection of the recipient, message_sent ack to
// every connection of the sender. The ack is only emitted after the row is
// committed; a failed write produces an error event, never a fabricated ack.
func (h *WSHandler) handleSend(conn *realtime.Connection, cmd realtime.Command) {
	if !allowSend(conn.UserID) {
		h.sendError(conn, "sending too fast")
		return
	}

	convID, err := services.GetOrCreateConversation(conn.UserID, cmd.OtherUserID)
	if err != nil {
		h.sendServiceError(conn, err)
		return
	}

	msg, err := services.SendMessage(convID, conn.UserID, cmd.Body)
	if err != nil {
		h.sendServiceError(conn, err)
		return
	}

	if payload, err := realtime.Encode(realtime.EventReceiveMessage, msg); err == nil {
		h.registry.Push(cmd.OtherUserID, payload)
	}
	if payload, err := realtime.Encode(realtime.EventMessageSent, msg); err == nil {
		h.registry.Push(conn.UserID, payload)
	}
}

// handleTyping pushes a fire-and-forget typing signal. Not persisted, not
// acknowledged, throttled per sender.
func (h *WSHandler) handleTyping(conn *realtime.Connection, cmd realtime.Command) {
	if cmd.OtherUserID <= 0 || cmd.OtherUserID == conn.UserID {
		return
	}
	if !h.typing.allow(conn.UserID) {
		return
	}

	payload, err := realtime.Encode(realtime.EventUserTyping, gin.H{"userId": conn.UserID})
	if err != nil {
		return
	}
	h.registry.Push(cmd.OtherUserID, payload)
}

// handleMarkRead marks the message read and notifies the original sender
// with a read receipt.
func (h *WSHandler) handleMarkRead(conn *realtime.Connection, cmd realtime.Command) {
	if err := services.MarkRead(cmd.MessageID, conn.UserID); err != nil {
		h.sendServiceError(conn, err)
		return
	}

	msg, err := services.GetMessage(cmd.MessageID)
	if err != nil {
		return
	}

	payload, err := realtime.Encode(realtime.EventMessageRead, gin.H{
		"messageId": cmd.MessageID,
		"readerId":  conn.UserID,
	})
	if err != nil {
		return
	}
	h.registry.Push(msg.SenderID, payload)
}

func (h *WSHandler) sendServiceError(conn *realtime.Connection, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		h.sendError(conn, "invalid request")
	case errors.Is(err, services.ErrNotParticipant):
		h.sendError(conn, "not a participant of this conversation")
	case errors.Is(err, services.ErrNotFound):
		h.sendError(conn, "not found")
	default:
		logger.Error().Err(err).Int64("user_id", conn.UserID).Msg("channel command failed")
		h.sendError(conn, "internal error")
	}
}

func (h *WSHandler) sendError(conn *realtime.Connection, msg string) {
	payload, err := realtime.Encode(realtime.EventError, gin.H{"error": msg})
	if err != nil {
		return
	}
	// Push failures here are fine: the client is gone or slow, nothing to do.
	_ = conn.Send(payload)
}
