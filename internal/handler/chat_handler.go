package handler

import (
	"Parley/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ChatHandler interface {
	OpenConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	UnreadCount(c *gin.Context)
}

type chatHandler struct {
	conversations service.ConversationService
	messages      service.MessageService
}

func NewChatHandler(conversations service.ConversationService, messages service.MessageService) ChatHandler {
	return &chatHandler{
		conversations: conversations,
		messages:      messages,
	}
}

type openConversationRequest struct {
	UserID      string `json:"userId" binding:"required"`
	OtherUserID string `json:"otherUserId" binding:"required"`
}

func (h *chatHandler) OpenConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conv, err := h.conversations.GetOrCreate(c.Request.Context(), req.UserID, req.OtherUserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *chatHandler) ListConversations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conversations, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *chatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.List(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	SenderID string `json:"senderId" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("conversationId"), req.SenderID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *chatHandler) DeleteMessage(c *gin.Context) {
	requesterID := c.Query("userId")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.messages.SoftDelete(c.Request.Context(), c.Param("messageId"), requesterID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type markReadRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *chatHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.conversations.MarkRead(c.Request.Context(), c.Param("conversationId"), req.UserID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *chatHandler) UnreadCount(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	count, err := h.conversations.UnreadCount(c.Request.Context(), c.Param("conversationId"), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}
