package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/processor"
	"whatsapp-inbox/internal/ws"

	"github.com/gin-gonic/gin"
)

// Inbox is the processor surface the HTTP API drives.
type Inbox interface {
	Conversation(ctx context.Context, ownerID, connectionID, jid string) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID, connectionID string) ([]models.Conversation, error)
	DisplayName(ctx context.Context, ownerID, connectionID, jid string) string
	RefreshContactInfo(ctx context.Context, ownerID, connectionID, jid string) bool
	PromoteDisplayName(ctx context.Context, ownerID, connectionID, jid, candidate string) bool
	SyncGroups(ctx context.Context, ownerID, connectionID string) (int, error)
	ProcessSent(ctx context.Context, ownerID, connectionID, jid, text string, isAI bool, messageID string) processor.Result
}

type MessageLister interface {
	ListMessages(ctx context.Context, ownerID, conversationID string, limit int) ([]models.Message, error)
}

type Publisher interface {
	Publish(event ws.Event)
}

type ConversationHandler struct {
	Inbox    Inbox
	Messages MessageLister
	Hub      Publisher
	Log      *slog.Logger
}

func NewConversationHandler(inbox Inbox, messages MessageLister, hub Publisher, log *slog.Logger) *ConversationHandler {
	return &ConversationHandler{Inbox: inbox, Messages: messages, Hub: hub, Log: log}
}

// ConnectionQuery scopes every request to one tenant connection.
type ConnectionQuery struct {
	OwnerID      string `form:"owner_id" json:"owner_id" binding:"required"`
	ConnectionID string `form:"connection_id" json:"connection_id" binding:"required"`
}

type EndpointQuery struct {
	ConnectionQuery
	JID string `form:"jid" json:"jid" binding:"required"`
}

func (h *ConversationHandler) GetConversations(c *gin.Context) {
	var q ConnectionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	convs, err := h.Inbox.ListConversations(c.Request.Context(), q.OwnerID, q.ConnectionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

// MessagesQuery scopes a message listing to the owner of the conversation.
type MessagesQuery struct {
	OwnerID string `form:"owner_id" json:"owner_id" binding:"required"`
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	var q MessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	msgs, err := h.Messages.ListMessages(c.Request.Context(), q.OwnerID, c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ConversationHandler) GetDisplayName(c *gin.Context) {
	var q EndpointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := h.Inbox.DisplayName(c.Request.Context(), q.OwnerID, q.ConnectionID, q.JID)
	c.JSON(http.StatusOK, gin.H{"jid": q.JID, "display_name": name})
}

type PromoteRequest struct {
	EndpointQuery
	DisplayName string `json:"display_name" binding:"required"`
}

func (h *ConversationHandler) PromoteDisplayName(c *gin.Context) {
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promoted := h.Inbox.PromoteDisplayName(c.Request.Context(), req.OwnerID, req.ConnectionID, req.JID, req.DisplayName)
	if promoted {
		h.publishUpdate(c.Request.Context(), req.EndpointQuery)
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

func (h *ConversationHandler) RefreshContactInfo(c *gin.Context) {
	var req EndpointQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refreshed := h.Inbox.RefreshContactInfo(c.Request.Context(), req.OwnerID, req.ConnectionID, req.JID)
	if refreshed {
		h.publishUpdate(c.Request.Context(), req)
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

func (h *ConversationHandler) SyncGroups(c *gin.Context) {
	var req ConnectionQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.Inbox.SyncGroups(c.Request.Context(), req.OwnerID, req.ConnectionID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *ConversationHandler) publishUpdate(ctx context.Context, q EndpointQuery) {
	conv, err := h.Inbox.Conversation(ctx, q.OwnerID, q.ConnectionID, q.JID)
	if err != nil || conv == nil {
		return
	}
	h.Hub.Publish(ws.Event{
		Type:           ws.EventConversationUpdated,
		OwnerID:        q.OwnerID,
		ConnectionID:   q.ConnectionID,
		ConversationID: conv.ID,
		Data:           conv,
	})
}
