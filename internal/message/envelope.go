package message

import (
	"encoding/json"
	"slices"
	"time"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/profile"
	wire "whatsapp-inbox/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Envelope is a decoded message event.
type Envelope struct {
	ChatID    string
	Direction Direction
	IsAI      bool
	MessageID string
	Timestamp time.Time
	PushName  string
	Body      Body
	Raw       json.RawMessage
}

func (e Envelope) Inbound() bool {
	return e.Direction == Inbound
}

// Body is the closed set of message shapes. Unknown carries anything else.
type Body interface {
	isBody()
}

type Text struct {
	Text string
}

// Media is shared by every attachment body.
type Media struct {
	URL      string
	Mimetype string
	FileName string
	Size     int64
	Caption  string
}

type Image struct{ Media }

type Video struct{ Media }

type Audio struct {
	Media
	Seconds int
}

type Document struct {
	Media
	Title string
}

type Sticker struct{ Media }

type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

type ContactCard struct {
	DisplayName string
	VCard       string
}

type Unknown struct {
	Kind    string
	Payload json.RawMessage
}

func (Text) isBody()        {}
func (Image) isBody()       {}
func (Video) isBody()       {}
func (Audio) isBody()       {}
func (Document) isBody()    {}
func (Sticker) isBody()     {}
func (Location) isBody()    {}
func (ContactCard) isBody() {}
func (Unknown) isBody()     {}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("jid", func(fl validator.FieldLevel) bool {
		_, _, err := profile.ParseJID(fl.Field().String())
		return err == nil
	})
	return v
}

// Decode validates a raw envelope and turns it into an Envelope. Messages the account sent
// from its own phone (fromMe) are decoded as outbound.
func Decode(raw wire.RawEnvelope) (Envelope, error) {
	if err := validate.Struct(raw); err != nil {
		return Envelope{}, failure.Validation("decode envelope", "%v", err)
	}

	body, err := decodeBody(raw)
	if err != nil {
		return Envelope{}, failure.Validation("decode envelope", "message body: %v", err)
	}
	snapshot, err := raw.Snapshot()
	if err != nil {
		return Envelope{}, failure.Validation("decode envelope", "snapshot: %v", err)
	}

	env := Envelope{
		ChatID:    raw.Key.RemoteJID,
		Direction: lo.Ternary(raw.Key.FromMe, Outbound, Inbound),
		IsAI:      raw.IsAI,
		MessageID: raw.Key.ID,
		PushName:  raw.PushName,
		Body:      body,
		Raw:       snapshot,
	}
	if raw.MessageTimestamp > 0 {
		env.Timestamp = time.Unix(int64(raw.MessageTimestamp), 0).UTC()
	}
	return env, nil
}

// NewOutgoing builds the envelope for an agent send, which has no typed message body.
func NewOutgoing(chatID, text string, isAI bool, at time.Time) Envelope {
	raw, _ := json.Marshal(map[string]any{
		"direction": Outbound.String(),
		"chatId":    chatID,
		"text":      text,
		"isAI":      isAI,
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	})
	return Envelope{
		ChatID:    chatID,
		Direction: Outbound,
		IsAI:      isAI,
		Timestamp: at,
		Body:      Text{Text: text},
		Raw:       raw,
	}
}

// Wrapper keys that travel next to the real message kind.
var ignoredKinds = []string{"messageContextInfo", "senderKeyDistributionMessage"}

func decodeBody(raw wire.RawEnvelope) (Body, error) {
	if len(raw.Message) == 0 || string(raw.Message) == "null" {
		if raw.Text != "" {
			return Text{Text: raw.Text}, nil
		}
		return Unknown{}, nil
	}

	var kinds map[string]json.RawMessage
	if err := json.Unmarshal(raw.Message, &kinds); err != nil {
		return nil, err
	}
	keys := lo.Keys(kinds)
	slices.Sort(keys)
	keys = lo.Without(keys, ignoredKinds...)
	for _, kind := range keys {
		body, known, err := decodeKind(kind, kinds[kind])
		if err != nil {
			return nil, err
		}
		if known {
			return body, nil
		}
	}
	if len(keys) > 0 {
		return Unknown{Kind: keys[0], Payload: kinds[keys[0]]}, nil
	}
	return Unknown{}, nil
}

func decodeKind(kind string, payload json.RawMessage) (Body, bool, error) {
	switch kind {
	case "conversation":
		var text string
		err := json.Unmarshal(payload, &text)
		return Text{Text: text}, true, err
	case "extendedTextMessage":
		var m wire.ExtendedTextMessage
		err := json.Unmarshal(payload, &m)
		return Text{Text: m.Text}, true, err
	case "imageMessage", "videoMessage", "audioMessage", "documentMessage", "stickerMessage":
		var m wire.MediaMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, true, err
		}
		media := Media{URL: m.URL, Mimetype: m.Mimetype, FileName: m.FileName, Size: int64(m.FileLength), Caption: m.Caption}
		switch kind {
		case "imageMessage":
			return Image{media}, true, nil
		case "videoMessage":
			return Video{media}, true, nil
		case "audioMessage":
			return Audio{Media: media, Seconds: m.Seconds}, true, nil
		case "documentMessage":
			return Document{Media: media, Title: m.Title}, true, nil
		default:
			return Sticker{media}, true, nil
		}
	case "locationMessage":
		var m wire.LocationMessage
		err := json.Unmarshal(payload, &m)
		return Location{Latitude: m.DegreesLatitude, Longitude: m.DegreesLongitude, Name: m.Name, Address: m.Address}, true, err
	case "contactMessage":
		var m wire.ContactMessage
		err := json.Unmarshal(payload, &m)
		return ContactCard{DisplayName: m.DisplayName, VCard: m.VCard}, true, err
	default:
		return nil, false, nil
	}
}
