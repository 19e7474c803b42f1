package presence

import (
	"context"
	"sync"
)

// MemoryRegistry is a single-process Registry.
type MemoryRegistry struct {
	mu          sync.RWMutex
	userSockets map[string]string
	socketUsers map[string]string
	online      map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		userSockets: make(map[string]string),
		socketUsers: make(map[string]string),
		online:      make(map[string]struct{}),
	}
}

func (r *MemoryRegistry) Bind(ctx context.Context, userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.userSockets[userID]; ok && prev != connID {
		delete(r.socketUsers, prev)
	}
	r.userSockets[userID] = connID
	r.socketUsers[connID] = userID
	r.online[userID] = struct{}{}
	return nil
}

func (r *MemoryRegistry) ConnectionOf(ctx context.Context, userID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.userSockets[userID]
	return connID, ok, nil
}

func (r *MemoryRegistry) Unbind(ctx context.Context, userID, connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.userSockets[userID]; !ok || cur != connID {
		return false, nil
	}
	delete(r.userSockets, userID)
	delete(r.socketUsers, connID)
	delete(r.online, userID)
	return true, nil
}

func (r *MemoryRegistry) IsOnline(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.online[userID]
	return ok, nil
}

// UserOf returns the user bound to connID.
func (r *MemoryRegistry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.socketUsers[connID]
	return userID, ok
}
