package models

import "time"

// MessageType identifies the payload variant a message carries.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeFile     MessageType = "file"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
	MessageTypeSticker  MessageType = "sticker"
)

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// Message is a single entry of a chat's message log.
type Message struct {
	ID          string       `bson:"id" json:"id"`
	SenderID    string       `bson:"senderId" json:"senderId"`
	Type        MessageType  `bson:"type" json:"type"`
	Content     string       `bson:"content,omitempty" json:"content,omitempty"`
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Location    *Location    `bson:"location,omitempty" json:"location,omitempty"`
	Contact     *Contact     `bson:"contact,omitempty" json:"contact,omitempty"`
	ReplyTo     string       `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	Forwarded   bool         `bson:"forwarded" json:"forwarded"`
	Edited      bool         `bson:"edited" json:"edited"`
	EditedAt    *time.Time   `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	Delivered   []Receipt    `bson:"delivered,omitempty" json:"delivered,omitempty"`
	Read        []Receipt    `bson:"read,omitempty" json:"read,omitempty"`
	Reactions   []Reaction   `bson:"reactions,omitempty" json:"reactions,omitempty"`
	Deleted     bool         `bson:"deleted" json:"deleted"`
	DeletedFor  []string     `bson:"deletedFor,omitempty" json:"deletedFor,omitempty"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
	ExpiresAt   *time.Time   `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

// Attachment is an opaque reference to externally stored media.
type Attachment struct {
	URL       string `bson:"url" json:"url" validate:"required,url"`
	PublicID  string `bson:"publicId,omitempty" json:"publicId,omitempty"`
	Type      string `bson:"type,omitempty" json:"type,omitempty"`
	Name      string `bson:"name,omitempty" json:"name,omitempty"`
	Size      int64  `bson:"size,omitempty" json:"size,omitempty" validate:"gte=0"`
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
}

type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude" validate:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude" validate:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

type Contact struct {
	Name  string `bson:"name" json:"name" validate:"required"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty" validate:"required_without=Email"`
	Email string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
}

// Receipt records when a user received or read a message.
type Receipt struct {
	UserID string    `bson:"userId" json:"userId"`
	At     time.Time `bson:"at" json:"at"`
}

// Reaction is a single user's emoji on a message.
type Reaction struct {
	UserID    string    `bson:"userId" json:"userId"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// HasRead reports whether userID already has a read receipt.
func (m *Message) HasRead(userID string) bool {
	return hasReceipt(m.Read, userID)
}

// HasDelivered reports whether userID already has a delivery receipt.
func (m *Message) HasDelivered(userID string) bool {
	return hasReceipt(m.Delivered, userID)
}

// HiddenFor reports whether the message was deleted only for userID.
func (m *Message) HiddenFor(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

func hasReceipt(receipts []Receipt, userID string) bool {
	for _, r := range receipts {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
