package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// WebhookPayload is what the session bridge posts for every batch of socket events.
type WebhookPayload struct {
	OwnerID      string        `json:"owner_id" binding:"required"`
	ConnectionID string        `json:"connection_id" binding:"required"`
	Messages     []RawEnvelope `json:"messages" binding:"required,min=1"`
}

// RawEnvelope is one message event in the shape the WhatsApp web socket library emits it.
type RawEnvelope struct {
	Key              MessageKey      `json:"key"`
	Message          json.RawMessage `json:"message,omitempty"`
	MessageTimestamp FlexInt         `json:"messageTimestamp,omitempty"`
	PushName         string          `json:"pushName,omitempty"`
	// Text and IsAI are set by agents sending through the bridge instead of a typed message.
	Text string `json:"text,omitempty"`
	IsAI bool   `json:"isAI,omitempty"`

	// Raw keeps the exact bytes the envelope was decoded from.
	Raw json.RawMessage `json:"-"`
}

type MessageKey struct {
	RemoteJID   string `json:"remoteJid" validate:"required,jid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id,omitempty" validate:"omitempty,max=128"`
	Participant string `json:"participant,omitempty"`
}

func (e *RawEnvelope) UnmarshalJSON(data []byte) error {
	type alias RawEnvelope
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = RawEnvelope(a)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Snapshot returns the envelope as it arrived, or re-encoded when it was built in process.
func (e RawEnvelope) Snapshot() (json.RawMessage, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(e)
}

// --- Typed message bodies ---

type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// MediaMessage covers image, video, audio, document and sticker bodies.
type MediaMessage struct {
	URL        string  `json:"url,omitempty"`
	Mimetype   string  `json:"mimetype,omitempty"`
	Caption    string  `json:"caption,omitempty"`
	FileName   string  `json:"fileName,omitempty"`
	FileLength FlexInt `json:"fileLength,omitempty"`
	Seconds    int     `json:"seconds,omitempty"`
	Title      string  `json:"title,omitempty"`
}

type LocationMessage struct {
	DegreesLatitude  float64 `json:"degreesLatitude"`
	DegreesLongitude float64 `json:"degreesLongitude"`
	Name             string  `json:"name,omitempty"`
	Address          string  `json:"address,omitempty"`
}

type ContactMessage struct {
	DisplayName string `json:"displayName,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

// FlexInt accepts an integer encoded as a JSON number or a JSON string.
// Long values (timestamps, file sizes) arrive in either form.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*n = FlexInt(v)
	return nil
}
