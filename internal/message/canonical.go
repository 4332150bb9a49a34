package message

import (
	"mime"
	"strings"

	"whatsapp-inbox/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

const previewRunes = 50

// TypeOf maps a body to its canonical message type.
func TypeOf(b Body) models.MessageType {
	switch b.(type) {
	case Text:
		return models.TypeText
	case Image:
		return models.TypeImage
	case Video:
		return models.TypeVideo
	case Audio:
		return models.TypeAudio
	case Document:
		return models.TypeDocument
	case Sticker:
		return models.TypeSticker
	case Location:
		return models.TypeLocation
	case ContactCard:
		return models.TypeContact
	default:
		return models.TypeOther
	}
}

// Preview is the conversation list summary of a body.
func Preview(b Body) string {
	switch b := b.(type) {
	case Text:
		return truncate(b.Text)
	case Image:
		return "[Imagem]"
	case Video:
		return "[Vídeo]"
	case Audio:
		return "[Áudio]"
	case Document:
		return "[Documento]"
	case Sticker:
		return "[Sticker]"
	case Location:
		return "[Localização]"
	case ContactCard:
		return "[Contato]"
	default:
		return "[Mensagem]"
	}
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRunes {
		return s
	}
	return string(runes[:previewRunes]) + "…"
}

// Content is the stored text of a body: the text itself, a media caption, or the
// name carried by a location or contact card.
func Content(b Body) string {
	switch b := b.(type) {
	case Text:
		return b.Text
	case Image:
		return b.Caption
	case Video:
		return b.Caption
	case Document:
		if b.Caption != "" {
			return b.Caption
		}
		return b.Title
	case Location:
		if b.Address != "" && b.Name != "" {
			return b.Name + " - " + b.Address
		}
		return b.Name + b.Address
	case ContactCard:
		return b.DisplayName
	default:
		return ""
	}
}

// MediaOf returns the attachment of a body, nil for bodies without one.
func MediaOf(b Body) *Media {
	var m Media
	switch b := b.(type) {
	case Image:
		m = b.Media
	case Video:
		m = b.Media
	case Audio:
		m = b.Media
	case Document:
		m = b.Media
	case Sticker:
		m = b.Media
	default:
		return nil
	}
	return &m
}

// mediaFileName keeps the sender's file name or synthesizes one from the MIME type.
func mediaFileName(m *Media, kind models.MessageType, messageID string) string {
	if m.FileName != "" {
		return m.FileName
	}
	if m.Mimetype == "" {
		return ""
	}
	return strings.ToLower(string(kind)) + "_" + messageID + extensionFor(m.Mimetype)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	if known := mimetype.Lookup(mediaType); known != nil {
		return known.Extension()
	}
	return ""
}
