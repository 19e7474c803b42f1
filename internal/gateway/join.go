package gateway

import (
	"context"
	"encoding/json"
	"log"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

// handleJoin binds the connection's verified identity, records presence and
// subscribes the connection to every chat of the user.
func (g *Gateway) handleJoin(ctx context.Context, s *session, data json.RawMessage) error {
	var req joinRequest
	if err := g.decode(data, &req); err != nil {
		return err
	}
	userID := s.conn.UserID()
	if userID == "" || (req.UserID != "" && req.UserID != userID) {
		return apperrors.ErrAuthenticationRequired
	}

	chatIDs, err := g.store.ListIDsForUser(ctx, userID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "list chats")
	}

	g.bind(s, userID)
	if err := g.presence.Bind(ctx, userID, s.conn.ID()); err != nil {
		log.Printf("presence bind failed: user_id=%s conn_id=%s err=%v", userID, s.conn.ID(), err)
	}
	for _, chatID := range chatIDs {
		g.hub.Join(chatID, s.conn.ID())
	}

	s.conn.Send(models.Event{Type: models.EventChatJoined, Data: models.JoinedPayload{Success: true, UserID: userID}})
	g.notifyFriends(ctx, userID, models.EventFriendOnline, "online")
	return nil
}

// handleLeave unsubscribes without closing the socket. The connection has to
// join again before sending other events.
func (g *Gateway) handleLeave(ctx context.Context, s *session, _ json.RawMessage) error {
	userID := g.boundUser(s)
	g.release(ctx, s, userID)
	g.bind(s, "")
	s.conn.Send(models.Event{Type: models.EventChatLeft, Data: models.JoinedPayload{Success: true, UserID: userID}})
	return nil
}
