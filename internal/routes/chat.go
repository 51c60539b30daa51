package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/internal/handlers"
	"github.com/mir-codes/PhoSocial/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, chat *handlers.ChatHandler) {
	g := r.Group("/chat")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("/conversations/with/:otherUserId", chat.GetOrCreateConversation)
		g.GET("/conversations", chat.GetConversations)
		g.PUT("/conversations/:conversationId/read", chat.MarkConversationRead)
		g.GET("/messages/:conversationId", chat.GetMessages)
		g.POST("/messages/:conversationId", chat.SendMessage)
		g.PUT("/messages/:id/read", chat.MarkRead)
		g.GET("/unread-count", chat.UnreadCount)
	}
}
