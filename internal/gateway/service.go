package gateway

import (
	"context"
	"log"

	"github.com/google/uuid"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
)

const listLimit = 50

// CreateChat stores a new chat and subscribes the online participants'
// connections on this instance to its room.
func (g *Gateway) CreateChat(ctx context.Context, userID string, params chat.NewChatParams) (*models.Chat, error) {
	c, err := chat.New(uuid.NewString(), userID, params, g.now())
	if err != nil {
		return nil, err
	}
	if err := g.store.Create(ctx, c); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create chat")
	}

	for _, participantID := range c.ActiveParticipantIDs() {
		g.joinRoom(ctx, c.ID, participantID)
	}
	return c, nil
}

// ListChats returns the caller's chats, most recently active first.
func (g *Gateway) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	chats, err := g.store.ListForUser(ctx, userID, listLimit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list chats")
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for i := range chats {
		c := &chats[i]
		summary := models.ChatSummary{
			ChatID:       c.ID,
			Type:         c.Type,
			Name:         c.Name,
			Participants: c.Participants,
			LastMessage:  c.LastMessage,
			LastActivity: c.LastActivity,
			ActiveCall:   c.ActiveCall,
		}
		if p := c.Participant(userID); p != nil {
			summary.UnreadCount = p.UnreadCount
		}
		if summary.LastMessage != nil && summary.LastMessage.HiddenFor(userID) {
			summary.LastMessage = nil
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Messages returns a page of the history visible to userID.
func (g *Gateway) Messages(ctx context.Context, userID, chatID, before string, limit int) ([]models.Message, error) {
	c, err := g.load(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return chat.Page(chat.VisibleMessages(c, userID, g.now()), before, limit), nil
}

// AddParticipant adds userID to a group or channel. Only admins may add.
func (g *Gateway) AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) error {
	var added bool
	c, err := g.mutate(ctx, "participant_add", chatID, actorID, func(c *models.Chat) error {
		if !c.IsAdmin(actorID) {
			return chat.ErrAdminOnly
		}
		var err error
		added, err = chat.AddParticipant(c, userID, role, g.now())
		if err == nil && !added {
			return errNothingToSave
		}
		return err
	})
	if err != nil || !added {
		return err
	}

	g.joinRoom(ctx, c.ID, userID)
	p := c.Participant(userID)
	g.hub.Broadcast(c.ID, models.Event{Type: models.EventParticipantAdded, Data: models.ParticipantPayload{
		ChatID: c.ID, UserID: userID, Role: p.Role,
	}}, "")
	return nil
}

// RemoveParticipant removes userID. Admins may remove others; anyone may
// leave on their own.
func (g *Gateway) RemoveParticipant(ctx context.Context, actorID, chatID, userID string) error {
	var out chat.CallLeave
	c, err := g.mutate(ctx, "participant_remove", chatID, actorID, func(c *models.Chat) error {
		if err := chat.CanManageMember(c, actorID, userID); err != nil {
			return err
		}
		var err error
		out, err = chat.RemoveParticipant(c, userID, g.now())
		return err
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventParticipantRemoved, Data: models.ParticipantPayload{
		ChatID: c.ID, UserID: userID,
	}}, "")
	g.broadcastCallLeave(c.ID, userID, out)
	if connID, ok := g.connectionOf(ctx, userID); ok {
		g.hub.Leave(c.ID, connID)
	}
	if g.audit != nil && actorID != userID {
		g.audit.ChatAction(ctx, "participant_removed", c.ID, actorID, "removed user "+userID)
	}
	return nil
}

// DeleteChat soft-deletes the chat and closes its room.
func (g *Gateway) DeleteChat(ctx context.Context, userID, chatID string) error {
	c, err := g.mutate(ctx, "chat_delete", chatID, userID, func(c *models.Chat) error {
		return chat.Delete(c, userID, g.now())
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventChatDeleted, Data: models.ChatRefPayload{ChatID: c.ID}}, "")
	g.hub.CloseRoom(c.ID)
	if g.audit != nil {
		g.audit.ChatAction(ctx, "chat_deleted", c.ID, userID, "chat deleted")
	}
	return nil
}

// PresenceOf reports the connection bound to userID, for debugging.
func (g *Gateway) PresenceOf(ctx context.Context, userID string) (connID string, online bool, err error) {
	connID, _, err = g.presence.ConnectionOf(ctx, userID)
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.CodeInternal, "presence lookup")
	}
	online, err = g.presence.IsOnline(ctx, userID)
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.CodeInternal, "presence lookup")
	}
	return connID, online, nil
}

func (g *Gateway) joinRoom(ctx context.Context, chatID, userID string) {
	if connID, ok := g.connectionOf(ctx, userID); ok {
		g.hub.Join(chatID, connID)
	}
}

func (g *Gateway) connectionOf(ctx context.Context, userID string) (string, bool) {
	connID, ok, err := g.presence.ConnectionOf(ctx, userID)
	if err != nil {
		log.Printf("presence lookup failed: user_id=%s err=%v", userID, err)
		return "", false
	}
	return connID, ok
}
