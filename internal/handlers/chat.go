package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/models"
)

// ChatService is the chat API exposed over REST.
type ChatService interface {
	CreateChat(ctx context.Context, userID string, params chat.NewChatParams) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	Messages(ctx context.Context, userID, chatID, before string, limit int) ([]models.Message, error)
	AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) error
	RemoveParticipant(ctx context.Context, actorID, chatID, userID string) error
	DeleteChat(ctx context.Context, userID, chatID string) error
}

// ChatHandler serves chat endpoints.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Register mounts the chat routes on an authenticated group.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.CreateChat)
	r.GET("/chats/:chat_id/messages", h.GetChatMessages)
	r.POST("/chats/:chat_id/participants", h.AddParticipant)
	r.DELETE("/chats/:chat_id/participants/:user_id", h.RemoveParticipant)
	r.DELETE("/chats/:chat_id", h.DeleteChat)
}

// ListChats returns the chats of the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.service.ListChats(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// CreateChat creates a private, group or channel chat.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Type           models.ChatType  `json:"type" binding:"required"`
		ParticipantIDs []string         `json:"participantIds" binding:"required,min=1"`
		Name           string           `json:"name" binding:"max=128"`
		Description    string           `json:"description" binding:"max=1024"`
		Settings       *models.Settings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateChat(c.Request.Context(), c.GetString(middleware.UserIDKey), chat.NewChatParams{
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		MemberIDs:   req.ParticipantIDs,
		Settings:    req.Settings,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetChatMessages returns a page of history, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	limit := chat.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, err := h.service.Messages(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("chat_id"), c.Query("before"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// AddParticipant adds a member or admin to a group or channel.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	var req struct {
		UserID string      `json:"userId" binding:"required"`
		Role   models.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.AddParticipant(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("chat_id"), req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveParticipant removes a member, or lets the caller leave.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	err := h.service.RemoveParticipant(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("chat_id"), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteChat soft-deletes a chat.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.service.DeleteChat(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("chat_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, err error) {
	code, message := apperrors.Public(err)
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": message, "code": code})
}
