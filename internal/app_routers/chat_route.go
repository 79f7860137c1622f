package approuters

import (
	"Parley/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	convRoute := router.Group("/py/api/conversations")
	{
		convRoute.POST("/open", container.ChatHandler.OpenConversation)
		convRoute.GET("/list", container.ChatHandler.ListConversations)
		convRoute.GET("/:conversationId/messages", container.ChatHandler.ListMessages)
		convRoute.POST("/:conversationId/messages", container.ChatHandler.SendMessage)
		convRoute.POST("/:conversationId/read", container.ChatHandler.MarkRead)
		convRoute.GET("/:conversationId/unread", container.ChatHandler.UnreadCount)
	}

	msgRoute := router.Group("/py/api/messages")
	{
		msgRoute.DELETE("/:messageId", container.ChatHandler.DeleteMessage)
	}
}
