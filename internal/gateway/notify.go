package gateway

import (
	"context"
	"errors"
	"log"

	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
	"chat-gateway/internal/observability"
)

const previewLength = 100

type messageNoticeData struct {
	ChatID    string             `json:"chatId"`
	ChatName  string             `json:"chatName,omitempty"`
	MessageID string             `json:"messageId"`
	SenderID  string             `json:"senderId"`
	Type      models.MessageType `json:"type"`
	Preview   string             `json:"preview,omitempty"`
}

type callNotice struct {
	ChatID   string          `json:"chatId"`
	CallID   string          `json:"callId"`
	CallType models.CallType `json:"callType"`
	CallerID string          `json:"callerId"`
}

func messageNotice(c *models.Chat, msg models.Message) messageNoticeData {
	preview := []rune(msg.Content)
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return messageNoticeData{
		ChatID:    c.ID,
		ChatName:  c.Name,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Type:      msg.Type,
		Preview:   string(preview),
	}
}

// notifyOffline enqueues one job per active participant, other than the
// actor, that is not online. A presence failure counts as offline; a queue
// failure is logged and dropped.
func (g *Gateway) notifyOffline(ctx context.Context, c *models.Chat, actorID, kind string, data any) {
	for _, userID := range c.ActiveParticipantIDs() {
		if userID == actorID {
			continue
		}
		online, err := g.presence.IsOnline(ctx, userID)
		if err != nil {
			log.Printf("presence lookup failed, treating as offline: user_id=%s err=%v", userID, err)
		}
		if online {
			continue
		}

		err = g.queue.Enqueue(ctx, notifications.Job{Type: kind, UserID: userID, Data: data, EnqueuedAt: g.now()})
		if err != nil {
			log.Printf("notification enqueue failed: type=%s user_id=%s chat_id=%s err=%v", kind, userID, c.ID, err)
			result := "error"
			if errors.Is(err, notifications.ErrUnavailable) {
				result = "dropped"
			}
			observability.IncNotification(kind, result)
			continue
		}
		observability.IncNotification(kind, "ok")
	}
}

// sendToUser delivers evt to the connection bound to userID if it lives on
// this instance.
func (g *Gateway) sendToUser(ctx context.Context, userID string, evt models.Event) bool {
	connID, ok := g.connectionOf(ctx, userID)
	return ok && g.hub.SendTo(connID, evt)
}

func (g *Gateway) notifyFriends(ctx context.Context, userID, eventType, status string) {
	if g.friends == nil {
		return
	}
	friends, err := g.friends.Friends(ctx, userID)
	if err != nil {
		log.Printf("friend lookup failed: user_id=%s err=%v", userID, err)
		return
	}
	evt := models.Event{Type: eventType, Data: models.FriendStatusPayload{UserID: userID, Status: status}}
	for _, friendID := range friends {
		g.sendToUser(ctx, friendID, evt)
	}
}
