package api

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"whatsapp-inbox/internal/models"

	"github.com/gin-gonic/gin"
)

type ContactLister interface {
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
}

type ContactHandler struct {
	Store ContactLister
	Log   *slog.Logger
}

func NewContactHandler(store ContactLister, log *slog.Logger) *ContactHandler {
	return &ContactHandler{Store: store, Log: log}
}

type OwnerQuery struct {
	OwnerID string `form:"owner_id" binding:"required"`
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	var q OwnerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contacts, err := h.Store.ListContacts(c.Request.Context(), q.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}

	// Return empty array instead of null
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

var exportHeader = []string{"Phone", "Name", "WhatsApp Name", "Business Name", "Business Email", "Group", "Business", "Tags", "Created At"}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	var q OwnerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contacts, err := h.Store.ListContacts(c.Request.Context(), q.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export contacts"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, contact := range contacts {
		_ = w.Write([]string{
			contact.Phone,
			contact.Name,
			contact.WppName,
			contact.BusinessName,
			contact.BusinessEmail,
			strconv.FormatBool(contact.IsGroup),
			strconv.FormatBool(contact.IsBusiness),
			contact.Tags,
			contact.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.Log.Error("contact export interrupted", "owner_id", q.OwnerID, "error", err)
	}
}
