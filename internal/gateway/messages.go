package gateway

import (
	"context"
	"encoding/json"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
)

func (g *Gateway) handleSend(ctx context.Context, s *session, data json.RawMessage) error {
	var req sendRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	body, err := g.body(req)
	if err != nil {
		return err
	}
	userID := g.boundUser(s)

	var msg models.Message
	c, err := g.mutate(ctx, "message_send", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		msg, err = chat.AppendMessage(c, userID, body, chat.SendOptions{ReplyTo: req.ReplyTo, Forwarded: req.Forwarded}, g.now())
		return err
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventMessageNew, Data: models.MessageNewPayload{ChatID: c.ID, Message: msg}}, "")
	g.notifyOffline(ctx, c, userID, notifications.TypeMessage, messageNotice(c, msg))
	return nil
}

func (g *Gateway) handleRead(ctx context.Context, s *session, data json.RawMessage) error {
	var req messageRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var msg models.Message
	_, err := g.mutate(ctx, "message_read", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		msg, err = chat.MarkRead(c, userID, req.MessageID, g.now())
		return err
	})
	if err != nil {
		return err
	}

	if msg.SenderID != userID {
		g.sendToUser(ctx, msg.SenderID, models.Event{Type: models.EventMessageRead, Data: models.ReceiptPayload{
			ChatID: req.ChatID, MessageID: msg.ID, UserID: userID,
		}})
	}
	return nil
}

func (g *Gateway) handleDelivered(ctx context.Context, s *session, data json.RawMessage) error {
	var req messageRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var (
		msg     models.Message
		changed bool
	)
	_, err := g.mutate(ctx, "message_delivered", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		msg, changed, err = chat.MarkDelivered(c, userID, req.MessageID, g.now())
		if err == nil && !changed {
			return errNothingToSave
		}
		return err
	})
	if err != nil || !changed {
		return err
	}

	g.sendToUser(ctx, msg.SenderID, models.Event{Type: models.EventMessageDelivered, Data: models.ReceiptPayload{
		ChatID: req.ChatID, MessageID: msg.ID, UserID: userID,
	}})
	return nil
}

func (g *Gateway) handleEdit(ctx context.Context, s *session, data json.RawMessage) error {
	var req editRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var msg models.Message
	c, err := g.mutate(ctx, "message_edit", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		msg, err = chat.EditMessage(c, userID, req.MessageID, req.NewContent, g.now())
		return err
	})
	if err != nil {
		return err
	}

	editedAt := g.now()
	if msg.EditedAt != nil {
		editedAt = *msg.EditedAt
	}
	g.hub.Broadcast(c.ID, models.Event{Type: models.EventMessageEdited, Data: models.MessageEditedPayload{
		ChatID: c.ID, MessageID: msg.ID, NewContent: msg.Content, EditedAt: editedAt,
	}}, "")
	return nil
}

// handleDelete broadcasts a delete for everyone to the room; a delete for the
// caller only is confirmed to the caller's connection.
func (g *Gateway) handleDelete(ctx context.Context, s *session, data json.RawMessage) error {
	var req deleteRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var everyone bool
	c, err := g.mutate(ctx, "message_delete", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		everyone, err = chat.DeleteMessage(c, userID, req.MessageID, req.ForEveryone)
		return err
	})
	if err != nil {
		return err
	}

	evt := models.Event{Type: models.EventMessageDeleted, Data: models.MessageRefPayload{
		ChatID: c.ID, MessageID: req.MessageID, UserID: userID,
	}}
	if !everyone {
		s.conn.Send(evt)
		return nil
	}
	g.hub.Broadcast(c.ID, evt, "")
	if g.audit != nil {
		g.audit.ChatAction(ctx, "message_deleted", c.ID, userID, "message "+req.MessageID+" deleted for everyone")
	}
	return nil
}

func (g *Gateway) handleReact(ctx context.Context, s *session, data json.RawMessage) error {
	var req reactRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	c, err := g.mutate(ctx, "message_react", req.ChatID, userID, func(c *models.Chat) error {
		_, err := chat.React(c, userID, req.MessageID, req.Emoji, g.now())
		return err
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventMessageReaction, Data: models.ReactionPayload{
		ChatID: c.ID, MessageID: req.MessageID, UserID: userID, Emoji: req.Emoji,
	}}, "")
	return nil
}

func (g *Gateway) handlePin(ctx context.Context, s *session, data json.RawMessage) error {
	return g.togglePin(ctx, s, data, "message_pin", chat.Pin, models.EventMessagePinned)
}

func (g *Gateway) handleUnpin(ctx context.Context, s *session, data json.RawMessage) error {
	return g.togglePin(ctx, s, data, "message_unpin", chat.Unpin, models.EventMessageUnpinned)
}

func (g *Gateway) togglePin(
	ctx context.Context,
	s *session,
	data json.RawMessage,
	op string,
	apply func(c *models.Chat, userID, messageID string) (bool, error),
	eventType string,
) error {
	var req messageRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var changed bool
	c, err := g.mutate(ctx, op, req.ChatID, userID, func(c *models.Chat) error {
		var err error
		changed, err = apply(c, userID, req.MessageID)
		if err == nil && !changed {
			return errNothingToSave
		}
		return err
	})
	if err != nil || !changed {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: eventType, Data: models.MessageRefPayload{
		ChatID: c.ID, MessageID: req.MessageID, UserID: userID,
	}}, "")
	return nil
}
