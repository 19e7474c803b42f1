package chat

import (
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// SendOptions carries the optional fields of a new message.
type SendOptions struct {
	ReplyTo   string
	Forwarded bool
}

// AppendMessage appends a message from senderID and counts it as unread for
// every other active participant.
func AppendMessage(c *models.Chat, senderID string, body Body, opts SendOptions, now time.Time) (models.Message, error) {
	if !c.IsParticipant(senderID) {
		return models.Message{}, ErrNotParticipant
	}
	if c.Settings.OnlyAdminsCanSend && !c.IsAdmin(senderID) {
		return models.Message{}, ErrAdminOnly
	}
	if body == nil {
		return models.Message{}, ErrEmptyContent
	}
	if opts.ReplyTo != "" {
		if m, _ := findMessage(c, opts.ReplyTo); m == nil {
			return models.Message{}, ErrInvalidReply
		}
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Type:      body.Type(),
		ReplyTo:   opts.ReplyTo,
		Forwarded: opts.Forwarded,
		CreatedAt: now,
	}
	if err := body.apply(&msg); err != nil {
		return models.Message{}, err
	}
	if dm := c.Settings.DisappearingMessages; dm.Enabled && dm.Duration > 0 {
		expires := now.Add(time.Duration(dm.Duration) * time.Second)
		msg.ExpiresAt = &expires
	}

	c.Messages = append(c.Messages, msg)
	snapshot := msg
	c.LastMessage = &snapshot
	c.LastActivity = now

	for i := range c.Participants {
		p := &c.Participants[i]
		if p.Active() && p.UserID != senderID {
			p.UnreadCount++
		}
	}
	return msg, nil
}

// MarkRead records that userID has read everything up to and including
// messageID. Read receipts are added only to other users' messages.
func MarkRead(c *models.Chat, userID, messageID string, now time.Time) (models.Message, error) {
	p := c.Participant(userID)
	if p == nil || !p.Active() {
		return models.Message{}, ErrNotParticipant
	}
	_, idx := findMessage(c, messageID)
	if idx < 0 {
		return models.Message{}, ErrMessageNotFound
	}

	p.LastRead = messageID
	p.UnreadCount = 0
	for i := 0; i <= idx; i++ {
		m := &c.Messages[i]
		if m.SenderID == userID || m.HasRead(userID) {
			continue
		}
		m.Read = append(m.Read, models.Receipt{UserID: userID, At: now})
	}
	syncLastMessage(c, messageID)
	return c.Messages[idx], nil
}

// MarkDelivered adds a delivery receipt for userID. It reports false when
// nothing changed, such as for the sender's own message.
func MarkDelivered(c *models.Chat, userID, messageID string, now time.Time) (models.Message, bool, error) {
	if !c.IsParticipant(userID) {
		return models.Message{}, false, ErrNotParticipant
	}
	m, _ := findMessage(c, messageID)
	if m == nil {
		return models.Message{}, false, ErrMessageNotFound
	}
	if m.SenderID == userID || m.HasDelivered(userID) {
		return *m, false, nil
	}
	m.Delivered = append(m.Delivered, models.Receipt{UserID: userID, At: now})
	syncLastMessage(c, messageID)
	return *m, true, nil
}

// EditMessage replaces the content of a message. Only its sender may edit it.
func EditMessage(c *models.Chat, userID, messageID, content string, now time.Time) (models.Message, error) {
	if !c.IsParticipant(userID) {
		return models.Message{}, ErrNotParticipant
	}
	m, _ := findMessage(c, messageID)
	if m == nil {
		return models.Message{}, ErrMessageNotFound
	}
	if m.Deleted {
		return models.Message{}, ErrMessageDeleted
	}
	if m.SenderID != userID {
		return models.Message{}, ErrNotSender
	}
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	editedAt := now
	m.Content = content
	m.Edited = true
	m.EditedAt = &editedAt
	syncLastMessage(c, messageID)
	return *m, nil
}

// DeleteMessage deletes a message for everyone when requested by its sender,
// scrubbing its content. Otherwise the message is hidden for userID only.
// It reports whether the deletion applies to everyone.
func DeleteMessage(c *models.Chat, userID, messageID string, forEveryone bool) (bool, error) {
	if !c.IsParticipant(userID) {
		return false, ErrNotParticipant
	}
	m, _ := findMessage(c, messageID)
	if m == nil {
		return false, ErrMessageNotFound
	}

	if forEveryone && m.SenderID == userID {
		m.Deleted = true
		m.Content = models.DeletedPlaceholder
		m.Attachments = nil
		m.Location = nil
		m.Contact = nil
		c.PinnedMessages = removeID(c.PinnedMessages, messageID)
		syncLastMessage(c, messageID)
		return true, nil
	}

	if !m.HiddenFor(userID) {
		m.DeletedFor = append(m.DeletedFor, userID)
	}
	return false, nil
}

// React sets userID's reaction on a message. An empty emoji removes it.
func React(c *models.Chat, userID, messageID, emoji string, now time.Time) (models.Message, error) {
	if !c.IsParticipant(userID) {
		return models.Message{}, ErrNotParticipant
	}
	m, _ := findMessage(c, messageID)
	if m == nil {
		return models.Message{}, ErrMessageNotFound
	}
	if m.Deleted {
		return models.Message{}, ErrMessageDeleted
	}

	reactions := make([]models.Reaction, 0, len(m.Reactions)+1)
	for _, r := range m.Reactions {
		if r.UserID != userID {
			reactions = append(reactions, r)
		}
	}
	if emoji != "" {
		reactions = append(reactions, models.Reaction{UserID: userID, Emoji: emoji, CreatedAt: now})
	}
	m.Reactions = reactions
	syncLastMessage(c, messageID)
	return *m, nil
}

// VisibleMessages returns the messages userID may see: not hidden for them and
// not expired.
func VisibleMessages(c *models.Chat, userID string, now time.Time) []models.Message {
	out := make([]models.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.HiddenFor(userID) {
			continue
		}
		if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Page returns up to limit messages that precede the message with id before,
// or the latest ones when before is empty. An unknown before yields nothing.
func Page(msgs []models.Message, before string, limit int) []models.Message {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	end := len(msgs)
	if before != "" {
		end = -1
		for i := range msgs {
			if msgs[i].ID == before {
				end = i
				break
			}
		}
		if end < 0 {
			return []models.Message{}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return append([]models.Message{}, msgs[start:end]...)
}

func findMessage(c *models.Chat, messageID string) (*models.Message, int) {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return &c.Messages[i], i
		}
	}
	return nil, -1
}

// syncLastMessage refreshes the lastMessage snapshot when it refers to messageID.
func syncLastMessage(c *models.Chat, messageID string) {
	if c.LastMessage == nil || c.LastMessage.ID != messageID {
		return
	}
	if m, _ := findMessage(c, messageID); m != nil {
		snapshot := *m
		c.LastMessage = &snapshot
	}
}
