package gateway

import (
	"bytes"
	"encoding/json"
	"strings"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
)

// joinRequest accepts either {"userId": "..."} or a bare user id string.
type joinRequest struct {
	UserID string `json:"userId"`
}

func (r *joinRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.UserID)
	}
	type plain joinRequest
	return json.Unmarshal(trimmed, (*plain)(r))
}

type chatRef struct {
	ChatID string `json:"chatId" validate:"required"`
}

type messageRef struct {
	ChatID    string `json:"chatId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

type sendRequest struct {
	ChatID      string              `json:"chatId" validate:"required"`
	Type        models.MessageType  `json:"type"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
	Location    *models.Location    `json:"location"`
	Contact     *models.Contact     `json:"contact"`
	StickerID   string              `json:"stickerId"`
	ReplyTo     string              `json:"replyTo"`
	Forwarded   bool                `json:"forwarded"`
}

type editRequest struct {
	ChatID     string `json:"chatId" validate:"required"`
	MessageID  string `json:"messageId" validate:"required"`
	NewContent string `json:"newContent" validate:"required,max=4096"`
}

type deleteRequest struct {
	ChatID      string `json:"chatId" validate:"required"`
	MessageID   string `json:"messageId" validate:"required"`
	ForEveryone bool   `json:"forEveryone"`
}

type reactRequest struct {
	ChatID    string `json:"chatId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"max=32"`
}

type callStartRequest struct {
	ChatID string          `json:"chatId" validate:"required"`
	Type   models.CallType `json:"type" validate:"required,oneof=voice video"`
}

type callRef struct {
	ChatID string `json:"chatId" validate:"required"`
	CallID string `json:"callId" validate:"required"`
}

type signalRequest struct {
	ChatID       string          `json:"chatId" validate:"required"`
	TargetUserID string          `json:"targetUserId" validate:"required"`
	Payload      json.RawMessage `json:"payload" validate:"required"`
}

// body selects the message variant for the request type and validates it.
func (g *Gateway) body(r sendRequest) (chat.Body, error) {
	kind := r.Type
	if kind == "" {
		kind = models.MessageTypeText
		if len(r.Attachments) > 0 {
			kind = models.MessageTypeFile
		}
	}
	if len(r.Attachments) > 0 && !isMedia(kind) {
		return nil, errAttachmentsNotAllowed
	}

	var b chat.Body
	switch kind {
	case models.MessageTypeText:
		if strings.TrimSpace(r.Content) == "" {
			return nil, chat.ErrEmptyContent
		}
		b = chat.TextBody{Content: r.Content}
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeFile:
		b = chat.MediaBody{Kind: kind, Caption: r.Content, Attachments: r.Attachments}
	case models.MessageTypeLocation:
		if r.Location == nil {
			return nil, apperrors.New(apperrors.CodeValidation, "location is required")
		}
		b = chat.LocationBody{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude, Address: r.Location.Address}
	case models.MessageTypeContact:
		if r.Contact == nil {
			return nil, apperrors.New(apperrors.CodeValidation, "contact is required")
		}
		b = chat.ContactBody{Name: r.Contact.Name, Phone: r.Contact.Phone, Email: r.Contact.Email}
	case models.MessageTypeSticker:
		id := r.StickerID
		if id == "" {
			id = strings.TrimSpace(r.Content)
		}
		b = chat.StickerBody{StickerID: id}
	default:
		return nil, chat.ErrInvalidMessageType
	}

	if err := g.validate.Struct(b); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeValidation, validationMessage(err))
	}
	return b, nil
}

var errAttachmentsNotAllowed = apperrors.New(apperrors.CodeValidation, "attachments are only allowed on image, video, audio and file messages")

func isMedia(kind models.MessageType) bool {
	switch kind {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeFile:
		return true
	}
	return false
}
