package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed persistence for contacts, conversations and messages.
// Misses are reported as failure.ErrNotFound, everything else as a failure.KindStore error.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewStore(db *gorm.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// --- Conversations ---

func (s *Store) FindConversation(ctx context.Context, key models.ConversationKey) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND connection_id = ? AND chat_id = ?", key.OwnerID, key.ConnectionID, key.ChatID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, failure.ErrNotFound
	}
	if err != nil {
		return nil, failure.Store("find conversation", err)
	}
	return &conv, nil
}

// CreateConversation inserts conv unless a conversation with the same identity triple exists.
// It reports whether this call created the row.
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "connection_id"}, {Name: "chat_id"}},
			DoNothing: true,
		}).
		Create(conv)
	if result.Error != nil {
		return false, failure.Store("create conversation", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RecordActivity writes preview and last-message time and bumps the unread counter in SQL for
// inbound messages, so concurrent writers never lose an increment.
func (s *Store) RecordActivity(ctx context.Context, id string, activity models.Activity) error {
	fields := map[string]any{
		"last_message_preview": activity.Preview,
		"last_message_at":      activity.At,
		"updated_at":           time.Now(),
	}
	if activity.Inbound {
		fields["unread_count"] = gorm.Expr("unread_count + ?", 1)
	}
	result := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return failure.Store("record activity", result.Error)
	}
	if result.RowsAffected == 0 {
		return failure.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateContactInfo(ctx context.Context, id string, info *models.ContactInfo) error {
	result := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Updates(map[string]any{
		"contact_info": datatypes.NewJSONType(info),
		"updated_at":   time.Now(),
	})
	if result.Error != nil {
		return failure.Store("update contact info", result.Error)
	}
	if result.RowsAffected == 0 {
		return failure.ErrNotFound
	}
	return nil
}

// PromoteDisplayName replaces the display name only while the stored one is empty or a
// placeholder. The check and the write are one statement.
func (s *Store) PromoteDisplayName(ctx context.Context, id, candidate string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Where("display_name IS NULL OR display_name = '' OR substr(display_name, 1, ?) = ? OR substr(display_name, 1, ?) = ?",
			len(models.PlaceholderContactPrefix), models.PlaceholderContactPrefix,
			len(models.PlaceholderGroupPrefix), models.PlaceholderGroupPrefix).
		Updates(map[string]any{
			"display_name":  candidate,
			"business_name": candidate,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, failure.Store("promote display name", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListConversations returns the conversations of one connection, most recent first.
func (s *Store) ListConversations(ctx context.Context, ownerID, connectionID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND connection_id = ?", ownerID, connectionID).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, failure.Store("list conversations", err)
	}
	return convs, nil
}

// --- Contacts ---

func (s *Store) FindContact(ctx context.Context, ownerID, phone string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).Where("owner_id = ? AND phone = ?", ownerID, phone).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, failure.ErrNotFound
	}
	if err != nil {
		return nil, failure.Store("find contact", err)
	}
	return &contact, nil
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "phone"}},
			DoNothing: true,
		}).
		Create(contact)
	if result.Error != nil {
		return false, failure.Store("create contact", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *Store) UpdateContact(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return failure.Store("update contact", result.Error)
	}
	return nil
}

func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&contacts).Error
	if err != nil {
		return nil, failure.Store("list contacts", err)
	}
	return contacts, nil
}

// --- Messages ---

// InsertMessage writes msg once. A redelivered message id is ignored and reported as false.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "connection_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if result.Error != nil {
		return false, failure.Store("insert message", result.Error)
	}
	if result.RowsAffected == 0 {
		s.log.Debug("duplicate message ignored", "message_id", msg.MessageID, "chat_id", msg.ChatID)
		return false, nil
	}
	return true, nil
}

func (s *Store) MessageExists(ctx context.Context, ownerID, connectionID, messageID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("owner_id = ? AND connection_id = ? AND message_id = ?", ownerID, connectionID, messageID).
		Count(&count).Error
	if err != nil {
		return false, failure.Store("check message", err)
	}
	return count > 0, nil
}

// ListMessages returns the newest messages of a conversation first. Conversations of other
// owners yield nothing.
func (s *Store) ListMessages(ctx context.Context, ownerID, conversationID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	query := s.db.WithContext(ctx).
		Where("owner_id = ? AND conversation_id = ?", ownerID, conversationID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&msgs).Error; err != nil {
		return nil, failure.Store("list messages", err)
	}
	return msgs, nil
}
