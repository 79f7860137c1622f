package handler

import (
	"Parley/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserHandler interface {
	SyncUser(c *gin.Context)
	ListUsers(c *gin.Context)
	GetUser(c *gin.Context)
}

type userHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) UserHandler {
	return &userHandler{
		users: users,
	}
}

type syncUserRequest struct {
	UserID    string `json:"userId" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

func (h *userHandler) SyncUser(c *gin.Context) {
	var req syncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.Sync(c.Request.Context(), req.UserID, req.Name, req.Email, req.AvatarURL)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *userHandler) ListUsers(c *gin.Context) {
	callerID := c.Query("userId")
	if callerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	users, err := h.users.ListOthers(c.Request.Context(), callerID, c.Query("search"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *userHandler) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
