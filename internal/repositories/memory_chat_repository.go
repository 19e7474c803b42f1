package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"chat-gateway/internal/models"
)

// MemoryChatRepo is a process-local ChatRepository for single-instance runs
// and tests. Chats are stored encoded so callers never share memory with it.
type MemoryChatRepo struct {
	mu    sync.RWMutex
	chats map[string][]byte
}

func NewMemoryChatRepo() *MemoryChatRepo {
	return &MemoryChatRepo{chats: make(map[string][]byte)}
}

func (r *MemoryChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chat.ID]; ok {
		return fmt.Errorf("chat %s already exists", chat.ID)
	}
	chat.Version = 1
	doc, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	r.chats[chat.ID] = doc
	return nil
}

func (r *MemoryChatRepo) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chat, err := r.load(chatID)
	if err != nil {
		return nil, err
	}
	if chat.Deleted {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (r *MemoryChatRepo) Update(ctx context.Context, chat *models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, err := r.load(chat.ID)
	if err != nil {
		return err
	}
	if stored.Deleted {
		return ErrChatNotFound
	}
	if stored.Version != chat.Version {
		return ErrVersionConflict
	}

	next := *chat
	next.Version = chat.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	r.chats[chat.ID] = doc
	chat.Version = next.Version
	return nil
}

func (r *MemoryChatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	chats, err := r.filter(func(c *models.Chat) bool { return c.IsParticipant(userID) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

func (r *MemoryChatRepo) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	chats, err := r.filter(func(c *models.Chat) bool { return c.IsParticipant(userID) })
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryChatRepo) ListWithActiveCall(ctx context.Context, userID string) ([]models.Chat, error) {
	return r.filter(func(c *models.Chat) bool { return c.ActiveCall.HasActiveParticipant(userID) })
}

func (r *MemoryChatRepo) filter(keep func(*models.Chat) bool) ([]models.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Chat{}
	for id := range r.chats {
		chat, err := r.load(id)
		if err != nil {
			return nil, err
		}
		if !chat.Deleted && keep(chat) {
			out = append(out, *chat)
		}
	}
	return out, nil
}

// load must be called with r.mu held.
func (r *MemoryChatRepo) load(chatID string) (*models.Chat, error) {
	doc, ok := r.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	var chat models.Chat
	if err := json.Unmarshal(doc, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}
