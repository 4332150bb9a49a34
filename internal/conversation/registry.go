package conversation

import (
	"context"
	"log/slog"
	"time"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/message"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/profile"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Store interface {
	FindConversation(ctx context.Context, key models.ConversationKey) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) (bool, error)
	RecordActivity(ctx context.Context, id string, activity models.Activity) error
	UpdateContactInfo(ctx context.Context, id string, info *models.ContactInfo) error
	PromoteDisplayName(ctx context.Context, id, candidate string) (bool, error)
	ListConversations(ctx context.Context, ownerID, connectionID string) ([]models.Conversation, error)
}

// Resolver is the part of profile.Resolver the registry calls on first contact and refresh.
type Resolver interface {
	Resolve(ctx context.Context, connectionID, jid string) *models.ContactInfo
	SaveNewContact(ctx context.Context, info *models.ContactInfo, ownerID string) (bool, error)
}

// Registry owns conversation records. A display name is written once at creation and only
// PromoteDisplayName may replace it, and only while it is still a placeholder.
type Registry struct {
	store    Store
	resolver Resolver
	log      *slog.Logger
	now      func() time.Time
}

func NewRegistry(store Store, resolver Resolver, log *slog.Logger) *Registry {
	return &Registry{store: store, resolver: resolver, log: log, now: time.Now}
}

// Lookup returns nil without error when no conversation exists for key.
func (r *Registry) Lookup(ctx context.Context, key models.ConversationKey) (*models.Conversation, error) {
	conv, err := r.store.FindConversation(ctx, key)
	if failure.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("conversation lookup failed", "chat_id", key.ChatID, "error", err)
		return nil, err
	}
	return conv, nil
}

// CreateOrUpdate records env on the conversation of key, creating the conversation on first contact.
func (r *Registry) CreateOrUpdate(ctx context.Context, key models.ConversationKey, env message.Envelope) (*models.Conversation, error) {
	conv, err := r.Open(ctx, key, env)
	if err != nil {
		return nil, err
	}
	return r.Touch(ctx, conv, env)
}

// Open returns the conversation of key, creating it from env on first contact. A created
// conversation has no unread messages; callers Touch it once the message is stored.
func (r *Registry) Open(ctx context.Context, key models.ConversationKey, env message.Envelope) (*models.Conversation, error) {
	conv, err := r.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	return r.create(ctx, key, env)
}

// Touch refreshes preview, last message time and unread count. The display name is left alone.
func (r *Registry) Touch(ctx context.Context, conv *models.Conversation, env message.Envelope) (*models.Conversation, error) {
	activity := r.activity(env)
	if err := r.store.RecordActivity(ctx, conv.ID, activity); err != nil {
		r.log.Error("conversation update failed", "conversation_id", conv.ID, "error", err)
		return nil, err
	}

	updated := *conv
	updated.LastMessagePreview = activity.Preview
	updated.LastMessageAt = activity.At
	if activity.Inbound {
		updated.UnreadCount++
	}
	r.log.Debug("conversation updated", "conversation_id", conv.ID, "display_name", conv.DisplayName)
	return &updated, nil
}

func (r *Registry) activity(env message.Envelope) models.Activity {
	at := env.Timestamp
	if at.IsZero() {
		at = r.now()
	}
	return models.Activity{Preview: message.Preview(env.Body), At: at, Inbound: env.Inbound()}
}

func (r *Registry) create(ctx context.Context, key models.ConversationKey, env message.Envelope) (*models.Conversation, error) {
	phone, isGroup, err := profile.ParseJID(key.ChatID)
	if err != nil {
		return nil, err
	}

	info := r.resolver.Resolve(ctx, key.ConnectionID, key.ChatID)
	displayName := profile.DisplayName(info)
	if displayName == "" {
		displayName = profile.Placeholder(phone, isGroup)
	}
	businessName := phone
	if info != nil {
		businessName = profile.BusinessName(info)
		if _, err := r.resolver.SaveNewContact(ctx, info, key.OwnerID); err != nil {
			r.log.Warn("contact not saved", "chat_id", key.ChatID, "error", err)
		}
	}

	activity := r.activity(env)
	now := r.now()
	conv := &models.Conversation{
		ID:                 uuid.NewString(),
		OwnerID:            key.OwnerID,
		ConnectionID:       key.ConnectionID,
		ChatID:             key.ChatID,
		Phone:              phone,
		BusinessName:       businessName,
		DisplayName:        displayName,
		Status:             models.ConversationActive,
		LastMessagePreview: activity.Preview,
		LastMessageAt:      activity.At,
		IsGroup:            isGroup,
		ContactInfo:        datatypes.NewJSONType(info),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := r.store.CreateConversation(ctx, conv)
	if err != nil {
		r.log.Error("conversation insert failed", "chat_id", key.ChatID, "error", err)
		return nil, err
	}
	if created {
		r.log.Info("conversation created", "conversation_id", conv.ID, "chat_id", key.ChatID, "display_name", displayName)
		return conv, nil
	}

	// A concurrent first message created the row.
	existing, err := r.store.FindConversation(ctx, key)
	if err != nil {
		r.log.Error("conversation lookup failed", "chat_id", key.ChatID, "error", err)
		return nil, err
	}
	r.log.Info("conversation created concurrently", "conversation_id", existing.ID, "chat_id", key.ChatID)
	return existing, nil
}

// PromoteDisplayName replaces a placeholder display name with candidate.
func (r *Registry) PromoteDisplayName(ctx context.Context, key models.ConversationKey, candidate string) (bool, error) {
	if candidate == "" || profile.IsPlaceholder(candidate) {
		return false, nil
	}
	conv, err := r.Lookup(ctx, key)
	if err != nil || conv == nil {
		return false, err
	}
	promoted, err := r.store.PromoteDisplayName(ctx, conv.ID, candidate)
	if err != nil {
		r.log.Error("display name promotion failed", "conversation_id", conv.ID, "error", err)
		return false, err
	}
	if promoted {
		r.log.Info("display name promoted", "conversation_id", conv.ID, "from", conv.DisplayName, "to", candidate)
	}
	return promoted, nil
}

// RefreshProfile re-resolves the endpoint and replaces the stored snapshot. The display name
// only changes through the promotion rule. It reports false when the conversation is unknown
// or nothing could be resolved.
func (r *Registry) RefreshProfile(ctx context.Context, key models.ConversationKey) (bool, error) {
	conv, err := r.Lookup(ctx, key)
	if err != nil || conv == nil {
		return false, err
	}
	info := r.resolver.Resolve(ctx, key.ConnectionID, key.ChatID)
	if info == nil {
		r.log.Warn("profile refresh resolved nothing", "conversation_id", conv.ID, "chat_id", key.ChatID)
		return false, nil
	}
	if err := r.apply(ctx, conv, info); err != nil {
		return false, err
	}
	if _, err := r.resolver.SaveNewContact(ctx, info, key.OwnerID); err != nil {
		r.log.Warn("contact not saved", "chat_id", key.ChatID, "error", err)
	}
	return true, nil
}

// ApplyGroupMetadata stores metadata fetched outside of a message event, such as a group sync.
// It reports false when no conversation exists for key.
func (r *Registry) ApplyGroupMetadata(ctx context.Context, key models.ConversationKey, info *models.ContactInfo) (bool, error) {
	conv, err := r.Lookup(ctx, key)
	if err != nil || conv == nil {
		return false, err
	}
	if err := r.apply(ctx, conv, info); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registry) apply(ctx context.Context, conv *models.Conversation, info *models.ContactInfo) error {
	if err := r.store.UpdateContactInfo(ctx, conv.ID, info); err != nil {
		r.log.Error("contact info update failed", "conversation_id", conv.ID, "error", err)
		return err
	}
	if name := profile.DisplayName(info); !profile.IsPlaceholder(name) {
		if _, err := r.store.PromoteDisplayName(ctx, conv.ID, name); err != nil {
			r.log.Error("display name promotion failed", "conversation_id", conv.ID, "error", err)
			return err
		}
	}
	return nil
}

// List returns the conversations of one connection, most recent first.
func (r *Registry) List(ctx context.Context, ownerID, connectionID string) ([]models.Conversation, error) {
	convs, err := r.store.ListConversations(ctx, ownerID, connectionID)
	if err != nil {
		r.log.Error("conversation list failed", "owner_id", ownerID, "connection_id", connectionID, "error", err)
		return nil, err
	}
	return convs, nil
}
