package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/ws"
)

type testConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []models.Event
}

func (c *testConn) ID() string     { return c.id }
func (c *testConn) UserID() string { return c.userID }

func (c *testConn) Send(evt models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return true
}

func (c *testConn) ofType(eventType string) []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Event
	for _, evt := range c.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func (c *testConn) lastError(t *testing.T) models.ErrorPayload {
	t.Helper()
	errs := c.ofType(models.EventError)
	require.NotEmpty(t, errs, "expected an error event")
	return errs[len(errs)-1].Data.(models.ErrorPayload)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []notifications.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job notifications.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) forUser(userID string) []notifications.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []notifications.Job
	for _, job := range q.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	return out
}

type harness struct {
	gw       *Gateway
	store    *repositories.MemoryChatRepo
	registry *presence.MemoryRegistry
	friends  *repositories.MemoryFriendRepo
	queue    *recordingQueue
	hub      *ws.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    repositories.NewMemoryChatRepo(),
		registry: presence.NewMemoryRegistry(),
		friends:  repositories.NewMemoryFriendRepo(),
		queue:    &recordingQueue{},
		hub:      ws.NewHub(),
	}
	h.gw = New(h.store, h.friends, h.registry, h.queue, h.hub, nil, Options{
		TypingTimeout:   time.Hour,
		EventsPerSecond: 1000,
		EventBurst:      1000,
	})
	return h
}

func (h *harness) open(userID string) *testConn {
	conn := &testConn{id: "conn-" + userID, userID: userID}
	h.hub.Register(conn)
	h.gw.Connect(context.Background(), conn)
	return conn
}

func (h *harness) connect(t *testing.T, userID string) *testConn {
	t.Helper()
	conn := h.open(userID)
	h.emit(conn, models.EventChatJoin, nil)
	require.Len(t, conn.ofType(models.EventChatJoined), 1)
	return conn
}

func (h *harness) disconnect(conn *testConn) {
	h.gw.Disconnect(context.Background(), conn)
	h.hub.Unregister(conn.id)
}

func (h *harness) emit(conn *testConn, eventType string, data any) {
	raw, _ := json.Marshal(data)
	if data == nil {
		raw = nil
	}
	h.gw.HandleEvent(context.Background(), conn, models.InboundEvent{Type: eventType, Data: raw})
}

func (h *harness) createChat(t *testing.T, creator string, chatType models.ChatType, members ...string) *models.Chat {
	t.Helper()
	c, err := h.gw.CreateChat(context.Background(), creator, chat.NewChatParams{Type: chatType, MemberIDs: members})
	require.NoError(t, err)
	return c
}

func (h *harness) stored(t *testing.T, chatID string) *models.Chat {
	t.Helper()
	c, err := h.store.Get(context.Background(), chatID)
	require.NoError(t, err)
	return c
}

func TestPrivateChatMessageAndReadReceipt(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypePrivate, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "hi"})

	received := bob.ofType(models.EventMessageNew)
	require.Len(t, received, 1)
	payload := received[0].Data.(models.MessageNewPayload)
	assert.Equal(t, "hi", payload.Message.Content)
	assert.Equal(t, "alice", payload.Message.SenderID)
	assert.Len(t, alice.ofType(models.EventMessageNew), 1)
	assert.Empty(t, h.queue.forUser("bob"))

	h.emit(bob, models.EventMessageRead, map[string]any{"chatId": c.ID, "messageId": payload.Message.ID})

	reads := alice.ofType(models.EventMessageRead)
	require.Len(t, reads, 1)
	receipt := reads[0].Data.(models.ReceiptPayload)
	assert.Equal(t, payload.Message.ID, receipt.MessageID)
	assert.Equal(t, "bob", receipt.UserID)
	assert.Equal(t, 0, h.stored(t, c.ID).Participant("bob").UnreadCount)
}

func TestOfflineParticipantGetsExactlyOneJob(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	c := h.createChat(t, "alice", models.ChatTypePrivate, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "are you there?"})

	jobs := h.queue.forUser("bob")
	require.Len(t, jobs, 1)
	assert.Equal(t, notifications.TypeMessage, jobs[0].Type)
	assert.Empty(t, h.queue.forUser("alice"))
	assert.Equal(t, 1, h.stored(t, c.ID).Participant("bob").UnreadCount)

	bob := h.connect(t, "bob")
	assert.Empty(t, bob.ofType(models.EventMessageNew))
}

func TestQueueFailureDoesNotBlockBroadcast(t *testing.T) {
	h := newHarness(t)
	h.queue.err = assert.AnError
	alice := h.connect(t, "alice")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "hello"})

	assert.Len(t, alice.ofType(models.EventMessageNew), 1)
	assert.Empty(t, alice.ofType(models.EventError))
}

func TestEventsRequireJoin(t *testing.T) {
	h := newHarness(t)
	conn := h.open("alice")

	h.emit(conn, models.EventMessageSend, map[string]any{"chatId": "c1", "content": "hi"})

	assert.Equal(t, string(apperrors.CodeAuthenticationRequired), conn.lastError(t).Code)
}

func TestJoinRejectsForeignIdentity(t *testing.T) {
	h := newHarness(t)
	conn := h.open("alice")

	h.emit(conn, models.EventChatJoin, map[string]any{"userId": "mallory"})

	assert.Equal(t, string(apperrors.CodeAuthenticationRequired), conn.lastError(t).Code)
	assert.Empty(t, conn.ofType(models.EventChatJoined))
	online, err := h.registry.IsOnline(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestJoinAcceptsBareUserID(t *testing.T) {
	h := newHarness(t)
	alice := h.open("alice")
	mallory := h.open("mallory")

	h.emit(alice, models.EventChatJoin, "alice")
	h.emit(mallory, models.EventChatJoin, "alice")

	require.Len(t, alice.ofType(models.EventChatJoined), 1)
	assert.Empty(t, mallory.ofType(models.EventChatJoined))
	assert.Equal(t, string(apperrors.CodeAuthenticationRequired), mallory.lastError(t).Code)
}

func TestNonParticipantCannotSeeChat(t *testing.T) {
	h := newHarness(t)
	c := h.createChat(t, "alice", models.ChatTypePrivate, "bob")
	mallory := h.connect(t, "mallory")

	h.emit(mallory, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "hi"})
	notMember := mallory.lastError(t)

	h.emit(mallory, models.EventMessageSend, map[string]any{"chatId": "missing", "content": "hi"})
	missing := mallory.lastError(t)

	assert.Equal(t, apperrors.Inaccessible, notMember.Message)
	assert.Equal(t, notMember.Message, missing.Message)
	assert.Equal(t, notMember.Code, missing.Code)
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "   "})
	assert.Equal(t, string(apperrors.CodeValidation), alice.lastError(t).Code)

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "type": "image"})
	assert.Equal(t, string(apperrors.CodeValidation), alice.lastError(t).Code)

	h.emit(alice, "message:unknown", map[string]any{})
	assert.Equal(t, string(apperrors.CodeValidation), alice.lastError(t).Code)

	h.emit(alice, models.EventMessageSend, map[string]any{
		"chatId":   c.ID,
		"type":     "location",
		"location": map[string]any{"latitude": 52.52, "longitude": 13.4},
	})
	require.Len(t, alice.ofType(models.EventMessageNew), 1)
}

func TestAttachmentsAreNeverDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")
	attachment := map[string]any{"url": "https://cdn.example.com/report.pdf", "name": "report.pdf"}

	h.emit(alice, models.EventMessageSend, map[string]any{
		"chatId":      c.ID,
		"content":     "see attached",
		"type":        "text",
		"attachments": []any{attachment},
	})
	assert.Equal(t, string(apperrors.CodeValidation), alice.lastError(t).Code)
	assert.Empty(t, alice.ofType(models.EventMessageNew))

	h.emit(alice, models.EventMessageSend, map[string]any{
		"chatId":      c.ID,
		"type":        "location",
		"location":    map[string]any{"latitude": 1.0, "longitude": 2.0},
		"attachments": []any{attachment},
	})
	assert.Empty(t, alice.ofType(models.EventMessageNew))

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "attachments": []any{attachment}})
	h.emit(alice, models.EventMessageSend, map[string]any{
		"chatId":      c.ID,
		"content":     "see attached",
		"attachments": []any{attachment},
	})

	sent := alice.ofType(models.EventMessageNew)
	require.Len(t, sent, 2)
	for _, evt := range sent {
		msg := evt.Data.(models.MessageNewPayload).Message
		assert.Equal(t, models.MessageTypeFile, msg.Type)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "report.pdf", msg.Attachments[0].Name)
	}
	assert.Equal(t, "see attached", sent[1].Data.(models.MessageNewPayload).Message.Content)
}

func TestEditReactAndDelete(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "draft"})
	msgID := bob.ofType(models.EventMessageNew)[0].Data.(models.MessageNewPayload).Message.ID

	h.emit(bob, models.EventMessageEdit, map[string]any{"chatId": c.ID, "messageId": msgID, "newContent": "hijack"})
	assert.Equal(t, string(apperrors.CodePermissionDenied), bob.lastError(t).Code)

	h.emit(alice, models.EventMessageEdit, map[string]any{"chatId": c.ID, "messageId": msgID, "newContent": "final"})
	edited := bob.ofType(models.EventMessageEdited)
	require.Len(t, edited, 1)
	assert.Equal(t, "final", edited[0].Data.(models.MessageEditedPayload).NewContent)

	h.emit(bob, models.EventMessageReact, map[string]any{"chatId": c.ID, "messageId": msgID, "emoji": "👍"})
	h.emit(bob, models.EventMessageReact, map[string]any{"chatId": c.ID, "messageId": msgID, "emoji": "🎉"})
	require.Len(t, alice.ofType(models.EventMessageReaction), 2)
	reactions := h.stored(t, c.ID).Messages[0].Reactions
	require.Len(t, reactions, 1)
	assert.Equal(t, "🎉", reactions[0].Emoji)

	h.emit(bob, models.EventMessageDelete, map[string]any{"chatId": c.ID, "messageId": msgID, "forEveryone": false})
	assert.Len(t, bob.ofType(models.EventMessageDeleted), 1)
	assert.Empty(t, alice.ofType(models.EventMessageDeleted))
	assert.Equal(t, "final", h.stored(t, c.ID).Messages[0].Content)

	h.emit(alice, models.EventMessageDelete, map[string]any{"chatId": c.ID, "messageId": msgID, "forEveryone": true})
	assert.Len(t, alice.ofType(models.EventMessageDeleted), 1)
	assert.Len(t, bob.ofType(models.EventMessageDeleted), 2)
	assert.Equal(t, models.DeletedPlaceholder, h.stored(t, c.ID).Messages[0].Content)
}

func TestConcurrentWritesToOneChatAreNotLost(t *testing.T) {
	h := newHarness(t)
	h.gw = New(h.store, h.friends, h.registry, h.queue, h.hub, nil, Options{
		ConflictRetries: 100,
		TypingTimeout:   time.Hour,
		EventsPerSecond: 1000,
		EventBurst:      1000,
	})
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	conns := make([]*testConn, len(users))
	for i, userID := range users {
		conns[i] = h.connect(t, userID)
	}
	c := h.createChat(t, "u1", models.ChatTypeGroup, users[1:]...)

	h.emit(conns[0], models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "vote"})
	msgID := conns[0].ofType(models.EventMessageNew)[0].Data.(models.MessageNewPayload).Message.ID

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *testConn) {
			defer wg.Done()
			h.emit(conn, models.EventMessageReact, map[string]any{"chatId": c.ID, "messageId": msgID, "emoji": "👍"})
			h.emit(conn, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "from " + conn.userID})
		}(conn)
	}
	wg.Wait()

	for _, conn := range conns {
		assert.Empty(t, conn.ofType(models.EventError), conn.userID)
	}
	stored := h.stored(t, c.ID)
	require.Len(t, stored.Messages, 1+len(users))
	assert.Len(t, stored.Messages[0].Reactions, len(users))
	assert.Equal(t, len(users)-1, stored.Participant("u1").UnreadCount)
	for _, userID := range users[1:] {
		assert.Equal(t, len(users), stored.Participant(userID).UnreadCount, userID)
	}
}

func TestDeliveredReceiptGoesToSenderOnce(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypePrivate, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "ping"})
	msgID := bob.ofType(models.EventMessageNew)[0].Data.(models.MessageNewPayload).Message.ID

	h.emit(bob, models.EventMessageDelivered, map[string]any{"chatId": c.ID, "messageId": msgID})
	h.emit(bob, models.EventMessageDelivered, map[string]any{"chatId": c.ID, "messageId": msgID})

	assert.Len(t, alice.ofType(models.EventMessageDelivered), 1)
	assert.Empty(t, bob.ofType(models.EventError))
}

func TestCallLifecycleWithDisconnectCleanup(t *testing.T) {
	h := newHarness(t)
	a := h.connect(t, "a")
	b := h.connect(t, "b")
	c := h.connect(t, "c")
	group := h.createChat(t, "a", models.ChatTypeGroup, "b", "c")

	h.emit(a, models.EventCallStart, map[string]any{"chatId": group.ID, "type": "voice"})
	started := a.ofType(models.EventCallStarted)
	require.Len(t, started, 1)
	callID := started[0].Data.(models.CallPayload).CallID
	assert.Len(t, b.ofType(models.EventCallIncoming), 1)
	assert.Len(t, c.ofType(models.EventCallIncoming), 1)
	assert.Empty(t, a.ofType(models.EventCallIncoming))

	h.emit(b, models.EventCallStart, map[string]any{"chatId": group.ID, "type": "video"})
	assert.Equal(t, string(apperrors.CodeConflict), b.lastError(t).Code)

	h.emit(b, models.EventCallJoin, map[string]any{"chatId": group.ID, "callId": callID})
	h.emit(c, models.EventCallJoin, map[string]any{"chatId": group.ID, "callId": callID})
	assert.Len(t, a.ofType(models.EventCallUserJoined), 2)

	h.disconnect(a)

	stored := h.stored(t, group.ID)
	require.NotNil(t, stored.ActiveCall)
	assert.False(t, stored.ActiveCall.HasActiveParticipant("a"))
	assert.Len(t, stored.ActiveCall.ActiveParticipants(), 2)
	left := b.ofType(models.EventCallUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].Data.(models.CallPayload).UserID)

	h.emit(b, models.EventCallLeave, map[string]any{"chatId": group.ID, "callId": callID})
	stored = h.stored(t, group.ID)
	require.NotNil(t, stored.ActiveCall)
	assert.True(t, stored.ActiveCall.HasActiveParticipant("c"))
	assert.Empty(t, c.ofType(models.EventCallEnded))

	h.emit(c, models.EventCallLeave, map[string]any{"chatId": group.ID, "callId": callID})
	assert.Nil(t, h.stored(t, group.ID).ActiveCall)
	assert.Len(t, c.ofType(models.EventCallEnded), 1)
}

func TestPinAndUnpinBroadcastOnChange(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "rules"})
	msgID := bob.ofType(models.EventMessageNew)[0].Data.(models.MessageNewPayload).Message.ID

	h.emit(bob, models.EventMessagePin, map[string]any{"chatId": c.ID, "messageId": msgID})
	assert.Equal(t, string(apperrors.CodePermissionDenied), bob.lastError(t).Code)

	h.emit(alice, models.EventMessagePin, map[string]any{"chatId": c.ID, "messageId": msgID})
	h.emit(alice, models.EventMessagePin, map[string]any{"chatId": c.ID, "messageId": msgID})
	assert.Len(t, bob.ofType(models.EventMessagePinned), 1)
	assert.Equal(t, []string{msgID}, h.stored(t, c.ID).PinnedMessages)

	h.emit(alice, models.EventMessageUnpin, map[string]any{"chatId": c.ID, "messageId": msgID})
	assert.Len(t, bob.ofType(models.EventMessageUnpinned), 1)
	assert.Empty(t, h.stored(t, c.ID).PinnedMessages)
}

func TestCallEndByCaller(t *testing.T) {
	h := newHarness(t)
	a := h.connect(t, "a")
	b := h.connect(t, "b")
	group := h.createChat(t, "a", models.ChatTypeGroup, "b")

	h.emit(a, models.EventCallStart, map[string]any{"chatId": group.ID, "type": "voice"})
	callID := a.ofType(models.EventCallStarted)[0].Data.(models.CallPayload).CallID
	h.emit(b, models.EventCallJoin, map[string]any{"chatId": group.ID, "callId": callID})

	h.emit(b, models.EventCallEnd, map[string]any{"chatId": group.ID, "callId": callID})
	assert.Equal(t, string(apperrors.CodePermissionDenied), b.lastError(t).Code)
	require.NotNil(t, h.stored(t, group.ID).ActiveCall)

	h.emit(a, models.EventCallEnd, map[string]any{"chatId": group.ID, "callId": callID})
	assert.Nil(t, h.stored(t, group.ID).ActiveCall)
	assert.Len(t, b.ofType(models.EventCallEnded), 1)
}

func TestCallStartNotifiesOfflineParticipants(t *testing.T) {
	h := newHarness(t)
	a := h.connect(t, "a")
	group := h.createChat(t, "a", models.ChatTypeGroup, "b")

	h.emit(a, models.EventCallStart, map[string]any{"chatId": group.ID, "type": "video"})

	jobs := h.queue.forUser("b")
	require.Len(t, jobs, 1)
	assert.Equal(t, notifications.TypeCall, jobs[0].Type)
}

func TestWebRTCRelayTargetsSingleConnection(t *testing.T) {
	h := newHarness(t)
	a := h.connect(t, "a")
	b := h.connect(t, "b")
	c := h.connect(t, "c")
	group := h.createChat(t, "a", models.ChatTypeGroup, "b", "c")

	h.emit(a, models.EventWebRTCOffer, map[string]any{
		"chatId":       group.ID,
		"targetUserId": "b",
		"payload":      map[string]any{"sdp": "v=0"},
	})

	offers := b.ofType(models.EventWebRTCOffer)
	require.Len(t, offers, 1)
	signal := offers[0].Data.(models.SignalPayload)
	assert.Equal(t, "a", signal.UserID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(signal.Payload))
	assert.Empty(t, c.ofType(models.EventWebRTCOffer))
	assert.Empty(t, a.ofType(models.EventError))
}

func TestFriendPresenceNotifications(t *testing.T) {
	h := newHarness(t)
	h.friends.Befriend("alice", "bob")
	bob := h.connect(t, "bob")

	alice := h.connect(t, "alice")
	online := bob.ofType(models.EventFriendOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "alice", online[0].Data.(models.FriendStatusPayload).UserID)

	h.disconnect(alice)
	offline := bob.ofType(models.EventFriendOffline)
	require.Len(t, offline, 1)
	assert.Equal(t, "offline", offline[0].Data.(models.FriendStatusPayload).Status)
}

func TestStaleDisconnectKeepsNewerBinding(t *testing.T) {
	h := newHarness(t)
	h.friends.Befriend("alice", "bob")
	bob := h.connect(t, "bob")
	old := h.connect(t, "alice")

	newer := &testConn{id: "conn-alice-2", userID: "alice"}
	h.hub.Register(newer)
	h.gw.Connect(context.Background(), newer)
	h.emit(newer, models.EventChatJoin, nil)

	h.disconnect(old)

	connID, ok, err := h.registry.ConnectionOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "conn-alice-2", connID)
	assert.Empty(t, bob.ofType(models.EventFriendOffline))
}

func TestStaleDisconnectLeavesCallAndTypingAlone(t *testing.T) {
	h := newHarness(t)
	bob := h.connect(t, "bob")
	old := h.connect(t, "alice")
	group := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	newer := &testConn{id: "conn-alice-2", userID: "alice"}
	h.hub.Register(newer)
	h.gw.Connect(context.Background(), newer)
	h.emit(newer, models.EventChatJoin, nil)

	h.emit(newer, models.EventCallStart, map[string]any{"chatId": group.ID, "type": "voice"})
	require.Len(t, newer.ofType(models.EventCallStarted), 1)
	h.emit(newer, models.EventTypingStart, map[string]any{"chatId": group.ID})
	require.Len(t, bob.ofType(models.EventTypingStart), 1)

	h.disconnect(old)

	stored := h.stored(t, group.ID)
	require.NotNil(t, stored.ActiveCall)
	assert.True(t, stored.ActiveCall.HasActiveParticipant("alice"))
	assert.Empty(t, bob.ofType(models.EventCallEnded))
	assert.Empty(t, bob.ofType(models.EventCallUserLeft))
	assert.Empty(t, bob.ofType(models.EventTypingStop))
	assert.True(t, h.gw.typing.IsTyping(group.ID, "alice"))

	h.disconnect(newer)
	assert.Nil(t, h.stored(t, group.ID).ActiveCall)
	assert.Len(t, bob.ofType(models.EventCallEnded), 1)
	assert.Len(t, bob.ofType(models.EventTypingStop), 1)
}

func TestChatLeaveUnsubscribes(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")

	h.emit(bob, models.EventChatLeave, nil)
	require.Len(t, bob.ofType(models.EventChatLeft), 1)

	h.emit(alice, models.EventMessageSend, map[string]any{"chatId": c.ID, "content": "anyone?"})
	assert.Empty(t, bob.ofType(models.EventMessageNew))
	assert.Len(t, h.queue.forUser("bob"), 1)

	h.emit(bob, models.EventMessageRead, map[string]any{"chatId": c.ID, "messageId": "x"})
	assert.Equal(t, string(apperrors.CodeAuthenticationRequired), bob.lastError(t).Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t)
	h.gw = New(h.store, h.friends, h.registry, h.queue, h.hub, nil, Options{EventsPerSecond: 0.001, EventBurst: 1})
	conn := h.open("alice")

	h.emit(conn, models.EventChatJoin, nil)
	h.emit(conn, models.EventChatJoin, nil)

	assert.Len(t, conn.ofType(models.EventChatJoined), 1)
	assert.Equal(t, string(apperrors.CodeRateLimited), conn.lastError(t).Code)
}

func TestTypingRequiresRoomMembership(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	c := h.createChat(t, "alice", models.ChatTypeGroup, "bob")
	mallory := h.connect(t, "mallory")

	h.emit(alice, models.EventTypingStart, map[string]any{"chatId": c.ID})
	assert.Len(t, bob.ofType(models.EventTypingStart), 1)
	assert.Empty(t, alice.ofType(models.EventTypingStart))

	h.emit(mallory, models.EventTypingStart, map[string]any{"chatId": c.ID})
	assert.Equal(t, apperrors.Inaccessible, mallory.lastError(t).Message)

	h.disconnect(alice)
	assert.Len(t, bob.ofType(models.EventTypingStop), 1)
}
