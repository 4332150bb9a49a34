package message

import (
	"context"
	"encoding/binary"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"whatsapp-inbox/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

type Store interface {
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
}

// Ingestor writes exactly one message row per call.
type Ingestor struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewIngestor(store Store, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, log: log, now: time.Now}
}

// Ingest stores env as a message of conv. It reports false without error when the message id
// was already stored, and false with a store failure when the write failed.
func (i *Ingestor) Ingest(ctx context.Context, key models.ConversationKey, env Envelope, conv *models.Conversation) (bool, error) {
	msg := i.Build(key, env, conv)
	inserted, err := i.store.InsertMessage(ctx, msg)
	if err != nil {
		i.log.Error("message not saved", "message_id", msg.MessageID, "chat_id", key.ChatID, "error", err)
		return false, err
	}
	if inserted {
		i.log.Info("message saved", "message_id", msg.MessageID, "conversation_id", conv.ID, "type", msg.Type, "sender_role", msg.SenderRole)
	}
	return inserted, nil
}

// WithID fills in a synthesized message id when the envelope carries none.
func (i *Ingestor) WithID(env Envelope) Envelope {
	if env.MessageID == "" {
		env.MessageID = newMessageID(i.now())
	}
	return env
}

// Build renders the message row for env without writing it.
func (i *Ingestor) Build(key models.ConversationKey, env Envelope, conv *models.Conversation) *models.Message {
	now := i.now()
	role := SenderRole(env)
	kind := TypeOf(env.Body)

	msg := &models.Message{
		OwnerID:        key.OwnerID,
		ConnectionID:   key.ConnectionID,
		ChatID:         key.ChatID,
		ConversationID: conv.ID,
		MessageID:      lo.CoalesceOrEmpty(env.MessageID, newMessageID(now)),
		Content:        Content(env.Body),
		Type:           kind,
		SenderRole:     role,
		SenderName:     senderName(role, env, conv),
		Timestamp:      lo.Ternary(env.Timestamp.IsZero(), now, env.Timestamp),
		Read:           role != models.RoleClient,
		Raw:            datatypes.JSON(lo.Ternary(len(env.Raw) == 0, []byte("{}"), []byte(env.Raw))),
	}
	if info := conv.Contact(); conv.IsGroup && info != nil {
		msg.GroupSubject = info.Group.Subject
	}
	if media := MediaOf(env.Body); media != nil {
		msg.MediaURL = media.URL
		msg.MediaMime = media.Mimetype
		msg.MediaSize = media.Size
		msg.MediaName = mediaFileName(media, kind, msg.MessageID)
	}
	return msg
}

func SenderRole(env Envelope) models.SenderRole {
	switch {
	case env.Inbound():
		return models.RoleClient
	case env.IsAI:
		return models.RoleAI
	default:
		return models.RoleAttendant
	}
}

func senderName(role models.SenderRole, env Envelope, conv *models.Conversation) string {
	var wppName string
	if info := conv.Contact(); info != nil {
		wppName = info.WppName
	}
	roleDefault := ""
	switch role {
	case models.RoleAttendant:
		roleDefault = "Atendente"
	case models.RoleAI:
		roleDefault = "Assistente IA"
	case models.RoleClient:
		roleDefault = env.PushName
	}
	return lo.CoalesceOrEmpty(wppName, conv.BusinessName, roleDefault)
}

// newMessageID synthesizes msg_<epoch-ms>_<9 base36 chars> for envelopes without an id.
func newMessageID(now time.Time) string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return "msg_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix[len(suffix)-9:]
}
