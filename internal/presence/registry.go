package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies one live connection of a user. A user may hold several
// at once (multi-device); disconnecting one never touches the others.
type Handle struct {
	ID     string
	UserID uint64
}

// Registry maps users to their currently open realtime connections.
// Process-wide mutable shared state with an explicit lifecycle: entries
// are inserted on connect and removed on disconnect, never expired
// implicitly, and never persisted across restarts. The registry is
// advisory only; a handle may go stale between Lookup and the actual
// send, which callers must tolerate.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[uint64]map[string]Handle
	byConn  map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[uint64]map[string]Handle),
		byConn: make(map[string]Handle),
	}
}

// Connect registers a new connection for the user and returns its handle.
func (r *Registry) Connect(userID uint64) Handle {
	h := Handle{ID: uuid.NewString(), UserID: userID}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]Handle)
		r.byUser[userID] = set
	}
	set[h.ID] = h
	r.byConn[h.ID] = h
	return h
}

// Disconnect removes a single connection. Unknown handles are ignored.
func (r *Registry) Disconnect(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byConn[h.ID]
	if !ok {
		return
	}
	delete(r.byConn, h.ID)

	if set, ok := r.byUser[stored.UserID]; ok {
		delete(set, h.ID)
		if len(set) == 0 {
			delete(r.byUser, stored.UserID)
		}
	}
}

// Lookup returns every live handle of the user, possibly none.
func (r *Registry) Lookup(userID uint64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	handles := make([]Handle, 0, len(set))
	for _, h := range set {
		handles = append(handles, h)
	}
	return handles
}

// Online reports whether the user holds at least one live connection.
func (r *Registry) Online(userID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}
