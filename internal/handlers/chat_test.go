package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/internal/database"
	"github.com/mir-codes/PhoSocial/internal/models"
	"github.com/mir-codes/PhoSocial/internal/realtime"
	"github.com/mir-codes/PhoSocial/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB initializes an in-memory SQLite DB for testing
func SetupTestDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	database.DB = db
	require.NoError(t, database.DB.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))

	database.DB.Exec("DELETE FROM messages")
	database.DB.Exec("DELETE FROM conversations")
	database.DB.Exec("DELETE FROM users")
	database.DB.Exec("DELETE FROM sqlite_sequence")
}

func seedChatUsers(t *testing.T) {
	t.Helper()
	require.NoError(t, database.DB.Create(&models.User{ID: 1, Username: "alice", Name: "Alice"}).Error)
	require.NoError(t, database.DB.Create(&models.User{ID: 2, Username: "bob", Name: "Bob"}).Error)
}

func testContext(t *testing.T, userID int64, method, target string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set("userId", userID)
	return w, c
}

func TestGetOrCreateConversationHandler(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	w, c := testContext(t, 1, "POST", "/api/chat/conversations/with/2", nil)
	c.Params = gin.Params{{Key: "otherUserId", Value: "2"}}
	h.GetOrCreateConversation(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ConversationID int64 `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.ConversationID > 0)

	// Same pair from the other side resolves to the same conversation.
	w2, c2 := testContext(t, 2, "POST", "/api/chat/conversations/with/1", nil)
	c2.Params = gin.Params{{Key: "otherUserId", Value: "1"}}
	h.GetOrCreateConversation(c2)

	assert.Equal(t, http.StatusOK, w2.Code)
	var resp2 struct {
		ConversationID int64 `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.ConversationID, resp2.ConversationID)
}

func TestGetOrCreateConversationHandler_Self(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	w, c := testContext(t, 1, "POST", "/api/chat/conversations/with/1", nil)
	c.Params = gin.Params{{Key: "otherUserId", Value: "1"}}
	h.GetOrCreateConversation(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendAndFetchMessages(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	convID, err := services.GetOrCreateConversation(1, 2)
	require.NoError(t, err)

	w, c := testContext(t, 1, "POST", "/api/chat/messages/1", gin.H{"body": "hello bob"})
	c.Params = gin.Params{{Key: "conversationId", Value: "1"}}
	h.SendMessage(c)
	require.Equal(t, http.StatusOK, w.Code)

	var sendResp struct {
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sendResp))
	assert.Equal(t, "hello bob", sendResp.Message.Body)
	assert.Equal(t, "alice", sendResp.Message.SenderUsername)

	w2, c2 := testContext(t, 2, "GET", "/api/chat/messages/1?offset=0&pageSize=20", nil)
	c2.Params = gin.Params{{Key: "conversationId", Value: "1"}}
	h.GetMessages(c2)
	require.Equal(t, http.StatusOK, w2.Code)

	var fetchResp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &fetchResp))
	require.Len(t, fetchResp.Messages, 1)
	assert.Equal(t, sendResp.Message.ID, fetchResp.Messages[0].ID)
	assert.Equal(t, convID, fetchResp.Messages[0].ConversationID)
}

func TestMarkReadHandler_SenderForbidden(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	convID, err := services.GetOrCreateConversation(1, 2)
	require.NoError(t, err)
	msg, err := services.SendMessage(convID, 1, "only bob may read this")
	require.NoError(t, err)

	w, c := testContext(t, 1, "PUT", "/api/chat/messages/1/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.MarkRead(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var stored models.Message
	require.NoError(t, database.DB.First(&stored, "id = ?", msg.ID).Error)
	assert.False(t, stored.IsRead)
}

func TestMarkReadHandler_NotFound(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	w, c := testContext(t, 2, "PUT", "/api/chat/messages/999/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	h.MarkRead(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// A message sent while the recipient has no open channel persists anyway;
// the recipient finds it via the list endpoint with unread=1 once they are
// back.
func TestSendWhileRecipientOffline(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)

	// Empty registry: nobody is connected, pushes go nowhere.
	registry := realtime.NewRegistry()
	h := NewChatHandler(registry)

	convID, err := services.GetOrCreateConversation(1, 2)
	require.NoError(t, err)

	w, c := testContext(t, 1, "POST", "/api/chat/messages/1", gin.H{"body": "missed you"})
	c.Params = gin.Params{{Key: "conversationId", Value: "1"}}
	h.SendMessage(c)
	require.Equal(t, http.StatusOK, w.Code)

	w2, c2 := testContext(t, 2, "GET", "/api/chat/conversations", nil)
	h.GetConversations(c2)
	require.Equal(t, http.StatusOK, w2.Code)

	var listResp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &listResp))
	require.Len(t, listResp.Conversations, 1)
	assert.Equal(t, convID, listResp.Conversations[0].ConversationID)
	assert.Equal(t, int64(1), listResp.Conversations[0].UnreadCount)
	require.NotNil(t, listResp.Conversations[0].LastMessage)
	assert.Equal(t, "missed you", listResp.Conversations[0].LastMessage.Body)
}

func TestUnreadCountHandler(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	convID, err := services.GetOrCreateConversation(1, 2)
	require.NoError(t, err)
	_, err = services.SendMessage(convID, 1, "one")
	require.NoError(t, err)
	_, err = services.SendMessage(convID, 1, "two")
	require.NoError(t, err)

	w, c := testContext(t, 2, "GET", "/api/chat/unread-count", nil)
	h.UnreadCount(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Count)
}

func TestMapServiceError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, mapServiceError(services.ErrInvalidArgument).Code)
	assert.Equal(t, http.StatusForbidden, mapServiceError(services.ErrNotParticipant).Code)
	assert.Equal(t, http.StatusNotFound, mapServiceError(services.ErrNotFound).Code)

	// Anything unrecognized is an internal error, never leaked verbatim.
	appErr := mapServiceError(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "Internal server error", appErr.Message)
}

func TestMarkConversationReadHandler(t *testing.T) {
	SetupTestDB(t)
	seedChatUsers(t)
	h := NewChatHandler(realtime.NewRegistry())

	_, err := services.GetOrCreateConversation(1, 2)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := services.SendMessage(1, 1, "ping")
		require.NoError(t, err)
	}

	w, c := testContext(t, 2, "PUT", "/api/chat/conversations/1/read", nil)
	c.Params = gin.Params{{Key: "conversationId", Value: "1"}}
	h.MarkConversationRead(c)
	require.Equal(t, http.StatusOK, w.Code)

	total, err := services.UnreadTotal(2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
