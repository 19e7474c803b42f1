package gateway

import (
	"sync"
	"time"

	"chat-gateway/internal/models"
)

// Broadcaster sends an event to a room.
type Broadcaster interface {
	Broadcast(room string, evt models.Event, exceptConnID string) int
}

type typingKey struct {
	chatID string
	userID string
}

type typingEntry struct {
	gen    uint64
	connID string
	timer  *time.Timer
}

// TypingCoordinator keeps one auto-stop timer per (chat, user). A new start
// replaces the timer, and the generation check keeps a superseded timer from
// emitting a stop.
type TypingCoordinator struct {
	hub     Broadcaster
	timeout time.Duration

	mu     sync.Mutex
	gen    uint64
	active map[typingKey]*typingEntry
}

func NewTypingCoordinator(hub Broadcaster, timeout time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		hub:     hub,
		timeout: timeout,
		active:  make(map[typingKey]*typingEntry),
	}
}

// Start broadcasts typing:start unless the user is already typing in the
// chat, and (re)arms the auto-stop timer.
func (t *TypingCoordinator) Start(chatID, userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{chatID: chatID, userID: userID}
	prev, typing := t.active[key]
	if typing {
		prev.timer.Stop()
	}

	t.gen++
	gen := t.gen
	t.active[key] = &typingEntry{
		gen:    gen,
		connID: connID,
		timer:  time.AfterFunc(t.timeout, func() { t.expire(key, gen) }),
	}
	if !typing {
		t.broadcast(models.EventTypingStart, key, connID)
	}
}

// Stop broadcasts typing:stop if the user was typing. It reports whether a
// stop was sent.
func (t *TypingCoordinator) Stop(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(typingKey{chatID: chatID, userID: userID})
}

// StopAll ends every indicator userID started from connID. Indicators a
// newer connection of the same user restarted are left alone.
func (t *TypingCoordinator) StopAll(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.active {
		if key.userID == userID && entry.connID == connID {
			t.stopLocked(key)
		}
	}
}

func (t *TypingCoordinator) IsTyping(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[typingKey{chatID: chatID, userID: userID}]
	return ok
}

func (t *TypingCoordinator) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.active[key]
	if !ok || entry.gen != gen {
		return
	}
	delete(t.active, key)
	t.broadcast(models.EventTypingStop, key, entry.connID)
}

func (t *TypingCoordinator) stopLocked(key typingKey) bool {
	entry, ok := t.active[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.active, key)
	t.broadcast(models.EventTypingStop, key, entry.connID)
	return true
}

// broadcast runs under t.mu so start and stop reach the room in order.
func (t *TypingCoordinator) broadcast(eventType string, key typingKey, exceptConnID string) {
	t.hub.Broadcast(key.chatID, models.Event{Type: eventType, Data: models.TypingPayload{
		ChatID: key.chatID,
		UserID: key.userID,
	}}, exceptConnID)
}
