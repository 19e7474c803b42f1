package gateway

import (
	"context"
	"encoding/json"
	"log"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
)

func (g *Gateway) handleCallStart(ctx context.Context, s *session, data json.RawMessage) error {
	var req callStartRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var call models.ActiveCall
	c, err := g.mutate(ctx, "call_start", req.ChatID, userID, func(c *models.Chat) error {
		started, err := chat.StartCall(c, userID, req.Type, g.now())
		if err != nil {
			return err
		}
		call = *started
		return nil
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventCallIncoming, Data: models.CallIncomingPayload{
		ChatID: c.ID, CallID: call.ID, Type: call.Type, CallerID: userID,
	}}, s.conn.ID())
	s.conn.Send(models.Event{Type: models.EventCallStarted, Data: models.CallPayload{
		ChatID: c.ID, CallID: call.ID, UserID: userID,
	}})
	g.notifyOffline(ctx, c, userID, notifications.TypeCall, callNotice{
		ChatID: c.ID, CallID: call.ID, CallType: call.Type, CallerID: userID,
	})
	return nil
}

// handleCallJoin announces the join to the whole room, the joining user
// included, also when they were already in the call.
func (g *Gateway) handleCallJoin(ctx context.Context, s *session, data json.RawMessage) error {
	var req callRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	c, err := g.mutate(ctx, "call_join", req.ChatID, userID, func(c *models.Chat) error {
		joined, err := chat.JoinCall(c, userID, req.CallID, g.now())
		if err == nil && !joined {
			return errNothingToSave
		}
		return err
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventCallUserJoined, Data: models.CallPayload{
		ChatID: c.ID, CallID: req.CallID, UserID: userID,
	}}, "")
	return nil
}

func (g *Gateway) handleCallLeave(ctx context.Context, s *session, data json.RawMessage) error {
	var req callRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	var out chat.CallLeave
	c, err := g.mutate(ctx, "call_leave", req.ChatID, userID, func(c *models.Chat) error {
		var err error
		out, err = chat.LeaveCall(c, userID, req.CallID, g.now())
		return err
	})
	if err != nil {
		return err
	}
	g.broadcastCallLeave(c.ID, userID, out)
	return nil
}

func (g *Gateway) handleCallEnd(ctx context.Context, s *session, data json.RawMessage) error {
	var req callRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := g.boundUser(s)

	c, err := g.mutate(ctx, "call_end", req.ChatID, userID, func(c *models.Chat) error {
		return chat.EndCall(c, userID, req.CallID)
	})
	if err != nil {
		return err
	}

	g.hub.Broadcast(c.ID, models.Event{Type: models.EventCallEnded, Data: models.CallPayload{
		ChatID: c.ID, CallID: req.CallID, UserID: userID,
	}}, "")
	return nil
}

// leaveCalls takes userID out of every call they are still active in. It is
// used on disconnect, so membership of the chat is not required.
func (g *Gateway) leaveCalls(ctx context.Context, userID string) {
	chats, err := g.store.ListWithActiveCall(ctx, userID)
	if err != nil {
		log.Printf("call cleanup failed: user_id=%s err=%v", userID, err)
		return
	}

	for _, listed := range chats {
		var out chat.CallLeave
		_, err := g.mutate(ctx, "call_cleanup", listed.ID, "", func(c *models.Chat) error {
			out = chat.CallLeave{}
			if !c.ActiveCall.HasActiveParticipant(userID) {
				return errNothingToSave
			}
			var err error
			out, err = chat.LeaveCall(c, userID, c.ActiveCall.ID, g.now())
			return err
		})
		if err != nil {
			log.Printf("call cleanup failed: user_id=%s chat_id=%s err=%v", userID, listed.ID, err)
			continue
		}
		g.broadcastCallLeave(listed.ID, userID, out)
	}
}

func (g *Gateway) broadcastCallLeave(chatID, userID string, out chat.CallLeave) {
	if !out.Left {
		return
	}
	g.hub.Broadcast(chatID, models.Event{Type: models.EventCallUserLeft, Data: models.CallPayload{
		ChatID: chatID, CallID: out.CallID, UserID: userID,
	}}, "")
	if out.Ended {
		g.hub.Broadcast(chatID, models.Event{Type: models.EventCallEnded, Data: models.CallPayload{
			ChatID: chatID, CallID: out.CallID,
		}}, "")
	}
}

// relaySignal forwards WebRTC signaling to the single connection bound to the
// target user. Nothing is persisted.
func (g *Gateway) relaySignal(eventType string) handlerFunc {
	return func(ctx context.Context, s *session, data json.RawMessage) error {
		var req signalRequest
		if err := g.decode(data, &req); err != nil {
			return err
		}
		if !g.hub.InRoom(req.ChatID, s.conn.ID()) {
			return errChatNotFound
		}

		connID, ok, err := g.presence.ConnectionOf(ctx, req.TargetUserID)
		if err != nil || !ok || !g.hub.InRoom(req.ChatID, connID) {
			log.Printf("signal dropped: event=%s chat_id=%s target=%s online=%t err=%v", eventType, req.ChatID, req.TargetUserID, ok, err)
			return nil
		}
		g.hub.SendTo(connID, models.Event{Type: eventType, Data: models.SignalPayload{
			ChatID: req.ChatID, UserID: g.boundUser(s), Payload: req.Payload,
		}})
		return nil
	}
}

func (g *Gateway) handleTypingStart(ctx context.Context, s *session, data json.RawMessage) error {
	var req chatRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	if !g.hub.InRoom(req.ChatID, s.conn.ID()) {
		return errChatNotFound
	}
	g.typing.Start(req.ChatID, g.boundUser(s), s.conn.ID())
	return nil
}

func (g *Gateway) handleTypingStop(ctx context.Context, s *session, data json.RawMessage) error {
	var req chatRef
	if err := g.decode(data, &req); err != nil {
		return err
	}
	if !g.hub.InRoom(req.ChatID, s.conn.ID()) {
		return errChatNotFound
	}
	g.typing.Stop(req.ChatID, g.boundUser(s))
	return nil
}
