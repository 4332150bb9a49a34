package api

import (
	"context"
	"log/slog"
	"net/http"

	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/internal/ws"

	"github.com/gin-gonic/gin"
)

type Sender interface {
	SendText(ctx context.Context, connectionID, jid, text string) (*whatsapp.SentMessage, error)
}

type SendHandler struct {
	Sender Sender
	Inbox  Inbox
	Hub    Publisher
	Log    *slog.Logger
}

func NewSendHandler(sender Sender, inbox Inbox, hub Publisher, log *slog.Logger) *SendHandler {
	return &SendHandler{Sender: sender, Inbox: inbox, Hub: hub, Log: log}
}

type SendRequest struct {
	EndpointQuery
	Text string `json:"text" binding:"required"`
	IsAI bool   `json:"is_ai"`
}

// SendMessage delivers a text through the bridge and records it on the conversation.
// Sends are only accepted for conversations the inbox already knows.
func (h *SendHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	conv, err := h.Inbox.Conversation(ctx, req.OwnerID, req.ConnectionID, req.JID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	sent, err := h.Sender.SendText(ctx, req.ConnectionID, req.JID, req.Text)
	if err != nil {
		h.Log.Error("send failed", "jid", req.JID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}

	res := h.Inbox.ProcessSent(ctx, req.OwnerID, req.ConnectionID, req.JID, req.Text, req.IsAI, sent.ID)
	if !res.Success {
		// Delivered but not recorded; the bridge echo of the message will record it.
		h.Log.Error("sent message not recorded", "jid", req.JID, "message_id", sent.ID, "error", res.Error)
		c.JSON(http.StatusAccepted, res)
		return
	}

	h.Hub.Publish(ws.Event{
		Type:           ws.EventNewMessage,
		OwnerID:        req.OwnerID,
		ConnectionID:   req.ConnectionID,
		ConversationID: res.ConversationID,
		Data:           res,
	})
	c.JSON(http.StatusOK, res)
}
