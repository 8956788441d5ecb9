package registry

import (
	"sync"

	"garagelive/internal/core/contracts"
)

// Registry is the in-memory room membership table. Rooms exist only as
// the set of currently joined connections: the first Join creates the
// room, removing the last member prunes it.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client            // connection id → client
	rooms   map[string]map[string]contracts.Client // room key → connection id → client
	joined  map[string]map[string]struct{}         // connection id → room keys
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		rooms:   make(map[string]map[string]contracts.Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

func (r *Registry) Register(c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnectionID()] = c
	if r.joined[c.ConnectionID()] == nil {
		r.joined[c.ConnectionID()] = make(map[string]struct{})
	}
}

// Unregister removes the connection from every room it had joined. No
// explicit Leave is required for cleanup correctness.
func (r *Registry) Unregister(c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID := c.ConnectionID()
	for room := range r.joined[connID] {
		r.removeLocked(connID, room)
	}
	delete(r.joined, connID)
	delete(r.clients, connID)
}

// Join is idempotent: joining the same room twice leaves membership
// unchanged. Joining before Register is a no-op.
func (r *Registry) Join(c contracts.Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID := c.ConnectionID()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]contracts.Client)
	}
	r.rooms[room][connID] = c
	r.joined[connID][room] = struct{}{}
}

func (r *Registry) Leave(c contracts.Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID := c.ConnectionID()
	r.removeLocked(connID, room)
	if set := r.joined[connID]; set != nil {
		delete(set, room)
	}
}

// MembersOf resolves to an empty slice for a room with no members.
func (r *Registry) MembersOf(room string) []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]contracts.Client, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		members = append(members, c)
	}
	return members
}

// RoomCount reports how many rooms currently have members.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) removeLocked(connID, room string) {
	if m, ok := r.rooms[room]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.rooms, room)
		}
	}
}
