package arena

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the insertion-ordered set of live rooms. Writes come from the
// coordinator loop only; the lock keeps reads from other goroutines atomic
// with respect to insert and remove.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Insert adds room at the end of the order. An existing id is an error.
func (r *Registry) Insert(room *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return ErrDuplicateRoom
	}
	r.rooms[room.ID] = room
	r.order = append(r.order, room.ID)
	return nil
}

// Remove deletes the room and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return false
	}
	delete(r.rooms, id)
	r.order = lo.Without(r.order, id)
	return true
}

func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// FirstWaiting returns the oldest room with a vacant black seat still in Waiting.
func (r *Registry) FirstWaiting() (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := lo.Find(r.order, func(id string) bool {
		room := r.rooms[id]
		return room.Status == StatusWaiting && room.Black == ""
	})
	if !ok {
		return nil, false
	}
	return r.rooms[id], true
}

// Latest returns the most recently inserted room.
func (r *Registry) Latest() (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.rooms[r.order[len(r.order)-1]], true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns the rooms in insertion order.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) *Room { return r.rooms[id] })
}
