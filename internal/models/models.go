package models

import (
	"time"

	"gorm.io/datatypes"
)

type MessageType string

const (
	TypeText     MessageType = "TEXTO"
	TypeImage    MessageType = "IMAGEM"
	TypeVideo    MessageType = "VIDEO"
	TypeAudio    MessageType = "AUDIO"
	TypeDocument MessageType = "DOCUMENTO"
	TypeSticker  MessageType = "STICKER"
	TypeLocation MessageType = "LOCALIZACAO"
	TypeContact  MessageType = "CONTATO"
	TypeOther    MessageType = "OUTRO"
)

type SenderRole string

const (
	RoleClient    SenderRole = "CLIENTE"
	RoleAI        SenderRole = "AI"
	RoleAttendant SenderRole = "ATENDENTE"
)

const ConversationActive = "active"

// ContactInfo is the identity snapshot resolved from the WhatsApp session for one endpoint.
type ContactInfo struct {
	Phone             string       `json:"phone"`
	JID               string       `json:"jid"`
	IsGroup           bool         `json:"is_group"`
	IsBusiness        bool         `json:"is_business"`
	WppName           string       `json:"wpp_name,omitempty"` // push name, or subject for groups
	FullName          string       `json:"full_name,omitempty"`
	ProfilePictureURL string       `json:"profile_picture_url,omitempty"`
	Status            string       `json:"status,omitempty"`
	Business          BusinessInfo `json:"business"`
	Group             GroupInfo    `json:"group"`
}

type BusinessInfo struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Verified    bool   `json:"verified"`
	Category    string `json:"category,omitempty"`
}

type GroupInfo struct {
	Subject      string `json:"subject,omitempty"`
	Description  string `json:"description,omitempty"`
	Participants int    `json:"participants"`
	Owner        string `json:"owner,omitempty"`
}

// Contact is the long-lived address book entry for a phone within one tenant.
type Contact struct {
	ID                  string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID             string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_contact_owner_phone,priority:1" json:"owner_id"`
	Phone               string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_contact_owner_phone,priority:2" json:"phone"`
	Name                string    `gorm:"type:varchar(255)" json:"name"`
	WppName             string    `gorm:"type:varchar(255)" json:"wpp_name"`
	WhatsAppName        string    `gorm:"type:varchar(255)" json:"whatsapp_name"`
	BusinessName        string    `gorm:"type:varchar(255)" json:"business_name"`
	BusinessDescription string    `gorm:"type:text" json:"business_description"`
	BusinessEmail       string    `gorm:"type:varchar(255)" json:"business_email"`
	BusinessWebsite     string    `gorm:"type:text" json:"business_website"`
	BusinessCategory    string    `gorm:"type:varchar(255)" json:"business_category"`
	Verified            bool      `json:"verified"`
	GroupSubject        string    `gorm:"type:varchar(255)" json:"group_subject"`
	GroupDescription    string    `gorm:"type:text" json:"group_description"`
	GroupParticipants   int       `json:"group_participants"`
	GroupOwner          string    `gorm:"type:varchar(64)" json:"group_owner"`
	ProfilePicURL       string    `gorm:"type:text" json:"profile_pic_url"`
	Status              string    `gorm:"type:text" json:"status"`
	IsGroup             bool      `json:"is_group"`
	IsBusiness          bool      `json:"is_business"`
	Tags                string    `gorm:"type:text;default:'[]'" json:"tags"` // JSON array
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Conversation is the durable per-endpoint record. DisplayName is frozen once set.
type Conversation struct {
	ID                 string                           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID            string                           `gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_identity,priority:1" json:"owner_id"`
	ConnectionID       string                           `gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_identity,priority:2" json:"connection_id"`
	ChatID             string                           `gorm:"type:varchar(128);not null;uniqueIndex:ux_conversation_identity,priority:3" json:"chat_id"`
	Phone              string                           `gorm:"type:varchar(64)" json:"phone"`
	BusinessName       string                           `gorm:"type:varchar(255)" json:"business_name"`
	DisplayName        string                           `gorm:"type:varchar(255)" json:"display_name"`
	Status             string                           `gorm:"type:varchar(20);default:'active'" json:"status"`
	LastMessagePreview string                           `gorm:"type:text" json:"last_message_preview"`
	LastMessageAt      time.Time                        `gorm:"index" json:"last_message_at"`
	UnreadCount        int                              `gorm:"not null;default:0" json:"unread_count"`
	IsGroup            bool                             `json:"is_group"`
	ContactInfo        datatypes.JSONType[*ContactInfo] `gorm:"not null" json:"contact_info"`
	CreatedAt          time.Time                        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Contact returns the stored identity snapshot, nil when the profile was never resolved.
func (c Conversation) Contact() *ContactInfo {
	return c.ContactInfo.Data()
}

// Message is written once per message event and never mutated.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_message_identity,priority:1" json:"owner_id"`
	ConnectionID   string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_message_identity,priority:2" json:"connection_id"`
	MessageID      string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_message_identity,priority:3" json:"message_id"`
	ConversationID string         `gorm:"type:varchar(36);not null;index" json:"conversation_id"`
	ChatID         string         `gorm:"type:varchar(128);not null;index" json:"chat_id"`
	Content        string         `gorm:"type:text" json:"content"`
	Type           MessageType    `gorm:"type:varchar(20)" json:"type"`
	SenderRole     SenderRole     `gorm:"type:varchar(20)" json:"sender_role"`
	SenderName     string         `gorm:"type:varchar(255)" json:"sender_name"`
	GroupSubject   string         `gorm:"type:varchar(255)" json:"group_subject"`
	Timestamp      time.Time      `gorm:"index" json:"timestamp"`
	Read           bool           `json:"read"`
	MediaURL       string         `gorm:"type:text" json:"media_url"`
	MediaMime      string         `gorm:"type:varchar(100)" json:"media_mime"`
	MediaName      string         `gorm:"type:varchar(255)" json:"media_name"`
	MediaSize      int64          `json:"media_size"`
	Raw            datatypes.JSON `gorm:"not null" json:"raw"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// All lists every table the store migrates.
func All() []any {
	return []any{&Contact{}, &Conversation{}, &Message{}}
}

// ConversationKey is the identity triple a conversation is unique on.
type ConversationKey struct {
	OwnerID      string
	ConnectionID string
	ChatID       string
}

// Placeholder display names start with one of these prefixes.
const (
	PlaceholderContactPrefix = "Contato "
	PlaceholderGroupPrefix   = "Grupo "
)

// Activity is the volatile part of a conversation refreshed on every message.
type Activity struct {
	Preview string
	At      time.Time
	Inbound bool
}
