// Package chat holds the pure operations over a loaded chat aggregate. Every
// function mutates the *models.Chat it is given and never touches storage;
// callers persist the result with a versioned write.
package chat

import (
	"time"

	"chat-gateway/internal/models"
)

// NewChatParams describes a chat to create.
type NewChatParams struct {
	Type        models.ChatType
	Name        string
	Description string
	MemberIDs   []string
	Settings    *models.Settings
}

// New builds a chat created by creatorID. The creator owns group and channel
// chats; both sides of a private chat are plain members.
func New(id, creatorID string, p NewChatParams, now time.Time) (*models.Chat, error) {
	if !p.Type.Valid() {
		return nil, ErrInvalidChatType
	}

	settings := models.DefaultSettings()
	if p.Settings != nil {
		settings = *p.Settings
		if settings.MaxMembers <= 0 {
			settings.MaxMembers = models.DefaultMaxMembers
		}
	}

	members := uniqueIDs(append([]string{creatorID}, p.MemberIDs...))
	if p.Type == models.ChatTypePrivate && len(members) != 2 {
		return nil, ErrInvalidMembers
	}
	if len(members) > settings.MaxMembers {
		return nil, ErrChatFull
	}

	c := &models.Chat{
		ID:           id,
		Type:         p.Type,
		Name:         p.Name,
		Description:  p.Description,
		Messages:     []models.Message{},
		Settings:     settings,
		LastActivity: now,
		CreatedAt:    now,
	}
	for _, userID := range members {
		role := models.RoleMember
		if userID == creatorID && p.Type != models.ChatTypePrivate {
			role = models.RoleOwner
		}
		c.Participants = append(c.Participants, models.Participant{UserID: userID, Role: role, JoinedAt: now})
	}
	return c, nil
}

// AddParticipant adds userID, or re-activates them if they left earlier.
// It reports false when the user is already an active participant.
func AddParticipant(c *models.Chat, userID string, role models.Role, now time.Time) (bool, error) {
	if c.Type == models.ChatTypePrivate {
		return false, ErrPrivateChat
	}
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return false, ErrInvalidRole
	}

	p := c.Participant(userID)
	if p != nil && p.Active() {
		return false, nil
	}
	if len(c.ActiveParticipantIDs()) >= c.Settings.MaxMembers {
		return false, ErrChatFull
	}

	if p != nil {
		p.LeftAt = nil
		p.JoinedAt = now
		p.Role = role
		p.UnreadCount = 0
		return true, nil
	}
	c.Participants = append(c.Participants, models.Participant{UserID: userID, Role: role, JoinedAt: now})
	return true, nil
}

// CanManageMember checks that actorID may remove targetID: admins and owners
// may remove others, anyone may remove themselves.
func CanManageMember(c *models.Chat, actorID, targetID string) error {
	if !c.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if actorID == targetID || c.IsAdmin(actorID) {
		return nil
	}
	return ErrAdminOnly
}

// RemoveParticipant marks userID as left. A removed user still in the chat's
// call is taken out of it as well.
func RemoveParticipant(c *models.Chat, userID string, now time.Time) (CallLeave, error) {
	if c.Type == models.ChatTypePrivate {
		return CallLeave{}, ErrPrivateChat
	}
	p := c.Participant(userID)
	if p == nil || !p.Active() {
		return CallLeave{}, ErrNotParticipant
	}
	if p.Role == models.RoleOwner {
		return CallLeave{}, ErrOwnerRemoval
	}

	left := now
	p.LeftAt = &left
	p.UnreadCount = 0

	if c.ActiveCall.HasActiveParticipant(userID) {
		return LeaveCall(c, userID, c.ActiveCall.ID, now)
	}
	return CallLeave{}, nil
}

// Pin adds messageID to the chat's pinned set.
func Pin(c *models.Chat, userID, messageID string) (bool, error) {
	if err := canEditInfo(c, userID); err != nil {
		return false, err
	}
	m, _ := findMessage(c, messageID)
	if m == nil {
		return false, ErrMessageNotFound
	}
	if m.Deleted {
		return false, ErrMessageDeleted
	}
	if containsID(c.PinnedMessages, messageID) {
		return false, nil
	}
	c.PinnedMessages = append(c.PinnedMessages, messageID)
	return true, nil
}

// Unpin removes messageID from the chat's pinned set.
func Unpin(c *models.Chat, userID, messageID string) (bool, error) {
	if err := canEditInfo(c, userID); err != nil {
		return false, err
	}
	if !containsID(c.PinnedMessages, messageID) {
		return false, nil
	}
	c.PinnedMessages = removeID(c.PinnedMessages, messageID)
	return true, nil
}

// Delete soft-deletes the chat. Group and channel chats can only be deleted by
// their owner; either side of a private chat may delete it.
func Delete(c *models.Chat, userID string, now time.Time) error {
	p := c.Participant(userID)
	if p == nil || !p.Active() {
		return ErrNotParticipant
	}
	if c.Type != models.ChatTypePrivate && p.Role != models.RoleOwner {
		return ErrOwnerOnly
	}
	deletedAt := now
	c.Deleted = true
	c.DeletedAt = &deletedAt
	c.ActiveCall = nil
	return nil
}

func canEditInfo(c *models.Chat, userID string) error {
	if !c.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if c.Type != models.ChatTypePrivate && c.Settings.OnlyAdminsCanEditInfo && !c.IsAdmin(userID) {
		return ErrAdminOnly
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
