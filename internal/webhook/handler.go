package webhook

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/processor"
	"whatsapp-inbox/internal/ws"
	"whatsapp-inbox/pkg/models"

	"github.com/gin-gonic/gin"
)

const TokenHeader = "X-Webhook-Token"

type Processor interface {
	ProcessIncoming(ctx context.Context, ownerID, connectionID string, raw models.RawEnvelope) processor.Result
}

type Publisher interface {
	Publish(event ws.Event)
}

type Handler struct {
	Token     string
	Processor Processor
	Hub       Publisher
	Log       *slog.Logger
}

func NewHandler(token string, proc Processor, hub Publisher, log *slog.Logger) *Handler {
	return &Handler{
		Token:     token,
		Processor: proc,
		Hub:       hub,
		Log:       log,
	}
}

// Authorize rejects requests without the shared bridge token. An empty token disables the check.
func (h *Handler) Authorize(c *gin.Context) {
	if h.Token == "" {
		c.Next()
		return
	}
	if subtle.ConstantTimeCompare([]byte(c.GetHeader(TokenHeader)), []byte(h.Token)) != 1 {
		h.Log.Warn("webhook rejected", "remote_addr", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}
	c.Next()
}

// HandleMessages processes a batch pushed by the bridge. Store failures answer 500 so the
// bridge redelivers; already stored messages are skipped on the second pass.
func (h *Handler) HandleMessages(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Log.Warn("error binding webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := make([]processor.Result, 0, len(payload.Messages))
	storeFailures := 0
	for _, raw := range payload.Messages {
		res := h.Processor.ProcessIncoming(c.Request.Context(), payload.OwnerID, payload.ConnectionID, raw)
		results = append(results, res)

		switch {
		case res.Kind == failure.KindStore:
			storeFailures++
		case res.Success && !res.Duplicate:
			h.Hub.Publish(ws.Event{
				Type:           ws.EventNewMessage,
				OwnerID:        payload.OwnerID,
				ConnectionID:   payload.ConnectionID,
				ConversationID: res.ConversationID,
				Data:           res,
			})
		}
	}

	status := http.StatusOK
	if storeFailures > 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"results": results, "failed": storeFailures})
}
