package session

import (
	"sync"

	"doccollab/internal/models"
)

// Hub is the registry of live rooms, one per document id. Creation and
// removal happen under its lock so concurrent joins for a new document
// share one room and a join never lands in a room that is being removed.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*Room)} }

func (h *Hub) GetOrCreate(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, _ := h.getOrCreateLocked(id)
	return r
}

func (h *Hub) getOrCreateLocked(id string) (*Room, bool) {
	if r, ok := h.rooms[id]; ok {
		return r, false
	}
	r := NewRoom(id)
	h.rooms[id] = r
	return r, true
}

func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, id)
}

// Join registers c in the room for its document, creating the room if
// needed. created reports whether this call made the room.
func (h *Hub) Join(c *Client) (room *Room, created bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.Closed() {
		return nil, false, ErrClientClosed
	}
	room, created = h.getOrCreateLocked(c.DocumentID)
	room.add(c)
	return room, created, nil
}

// Leave deregisters c and drops its room once empty. ok is false when c was
// not registered, which makes repeated calls harmless.
func (h *Hub) Leave(c *Client) (room *Room, remaining int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, exists := h.rooms[c.DocumentID]
	if !exists {
		return nil, 0, false
	}
	remaining, found := room.remove(c)
	if !found {
		return room, remaining, false
	}
	if remaining == 0 {
		delete(h.rooms, c.DocumentID)
	}
	return room, remaining, true
}

// CloseAll closes every connected client. Their connections then run the
// normal leave path; updates arriving after CloseAll are rejected.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	closed := 0
	for _, room := range h.rooms {
		closed += room.closeAll()
	}
	return closed
}

func (h *Hub) GetDoc(documentID string) (string, bool) {
	h.mu.RLock()
	room, ok := h.rooms[documentID]
	h.mu.RUnlock()
	if !ok {
		return "", false
	}
	content, _ := room.Snapshot()
	return content, true
}

func (h *Hub) Info(documentID string) (models.SessionInfo, bool) {
	h.mu.RLock()
	room, ok := h.rooms[documentID]
	h.mu.RUnlock()
	if !ok {
		return models.SessionInfo{}, false
	}
	return room.Info(), true
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms = len(h.rooms)
	for _, r := range h.rooms {
		clients += r.GetClientCount()
	}
	return rooms, clients
}
