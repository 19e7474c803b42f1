package ws

import (
	"sync"

	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

// Conn is a client connection as seen by the hub. Send must not block.
type Conn interface {
	ID() string
	UserID() string
	Send(evt models.Event) bool
}

// Hub tracks the connections living on this instance and their rooms. A room
// is keyed by chat id.
type Hub struct {
	conns     map[string]Conn
	rooms     map[string]map[string]Conn
	connRooms map[string]map[string]struct{}
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]Conn),
		rooms:     make(map[string]map[string]Conn),
		connRooms: make(map[string]map[string]struct{}),
	}
}

// Register makes conn addressable by its id.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

// Unregister removes the connection and its room memberships.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(connID)
	delete(h.conns, connID)
}

// Conn returns the connection registered under connID.
func (h *Hub) Conn(connID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// Join adds a registered connection to room. It reports false when the
// connection is not on this instance.
func (h *Hub) Join(room, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return false
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]Conn)
	}
	h.rooms[room][connID] = conn
	if _, ok := h.connRooms[connID]; !ok {
		h.connRooms[connID] = make(map[string]struct{})
	}
	h.connRooms[connID][room] = struct{}{}
	return true
}

// Leave removes a connection from room.
func (h *Hub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, connID)
}

// LeaveAll removes a connection from every room but keeps it registered.
func (h *Hub) LeaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(connID)
}

// CloseRoom drops every member of room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.rooms[room] {
		if rooms, ok := h.connRooms[connID]; ok {
			delete(rooms, room)
			if len(rooms) == 0 {
				delete(h.connRooms, connID)
			}
		}
	}
	delete(h.rooms, room)
}

// InRoom reports whether connID is a member of room.
func (h *Hub) InRoom(room, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// Rooms lists the rooms connID belongs to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.connRooms[connID]))
	for room := range h.connRooms[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// Broadcast sends evt to every member of room except exceptConnID and returns
// the number of connections that accepted it. Slow connections lose the event.
func (h *Hub) Broadcast(room string, evt models.Event, exceptConnID string) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for connID, conn := range h.rooms[room] {
		if connID != exceptConnID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, conn := range targets {
		if conn.Send(evt) {
			sent++
			continue
		}
		observability.IncBroadcastDropped()
	}
	return sent
}

// SendTo delivers evt to a single connection on this instance.
func (h *Hub) SendTo(connID string, evt models.Event) bool {
	conn, ok := h.Conn(connID)
	if !ok {
		return false
	}
	if !conn.Send(evt) {
		observability.IncBroadcastDropped()
		return false
	}
	return true
}

func (h *Hub) leaveLocked(room, connID string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.connRooms[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.connRooms, connID)
		}
	}
}

func (h *Hub) leaveAllLocked(connID string) {
	for room := range h.connRooms[connID] {
		h.leaveLocked(room, connID)
	}
}
