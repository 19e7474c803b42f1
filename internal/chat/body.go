package chat

import (
	"strings"

	"chat-gateway/internal/models"
)

// Body is the type-specific payload of a new message. The set of
// implementations is closed: TextBody, MediaBody, LocationBody, ContactBody
// and StickerBody.
type Body interface {
	Type() models.MessageType
	apply(m *models.Message) error
}

type TextBody struct {
	Content string `json:"content" validate:"required,max=4096"`
}

func (b TextBody) Type() models.MessageType { return models.MessageTypeText }

func (b TextBody) apply(m *models.Message) error {
	content := strings.TrimSpace(b.Content)
	if content == "" {
		return ErrEmptyContent
	}
	m.Content = content
	return nil
}

// MediaBody carries attachments for image, video, audio and file messages.
type MediaBody struct {
	Kind        models.MessageType  `json:"type" validate:"oneof=image video audio file"`
	Caption     string              `json:"content" validate:"max=4096"`
	Attachments []models.Attachment `json:"attachments" validate:"min=1,dive"`
}

func (b MediaBody) Type() models.MessageType { return b.Kind }

func (b MediaBody) apply(m *models.Message) error {
	switch b.Kind {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeFile:
	default:
		return ErrInvalidMessageType
	}
	if len(b.Attachments) == 0 {
		return ErrEmptyContent
	}
	m.Content = strings.TrimSpace(b.Caption)
	m.Attachments = append([]models.Attachment(nil), b.Attachments...)
	return nil
}

type LocationBody struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Address   string  `json:"address" validate:"max=512"`
}

func (b LocationBody) Type() models.MessageType { return models.MessageTypeLocation }

func (b LocationBody) apply(m *models.Message) error {
	m.Location = &models.Location{Latitude: b.Latitude, Longitude: b.Longitude, Address: b.Address}
	return nil
}

type ContactBody struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required_without=Email"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (b ContactBody) Type() models.MessageType { return models.MessageTypeContact }

func (b ContactBody) apply(m *models.Message) error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyContent
	}
	m.Contact = &models.Contact{Name: b.Name, Phone: b.Phone, Email: b.Email}
	return nil
}

// StickerBody references a sticker by id; the id is stored as the message content.
type StickerBody struct {
	StickerID string `json:"stickerId" validate:"required"`
}

func (b StickerBody) Type() models.MessageType { return models.MessageTypeSticker }

func (b StickerBody) apply(m *models.Message) error {
	if b.StickerID == "" {
		return ErrEmptyContent
	}
	m.Content = b.StickerID
	return nil
}
