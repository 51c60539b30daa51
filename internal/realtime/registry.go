package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Registry tracks every open delivery channel, keyed by user id. It is the
// only piece of shared mutable in-memory state in the messaging core and is
// safe for concurrent Add/Remove/Push from any number of goroutines. It is an
// injected dependency, not a process singleton; its lifecycle belongs to the
// server and ends with Shutdown.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[string]*Connection // userID -> sessionID -> connection
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]map[string]*Connection),
	}
}

// Add registers an open connection and starts its write loop. Existing
// connections of the same user are untouched: every registered connection
// receives pushes.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	set := r.conns[conn.UserID]
	if set == nil {
		set = make(map[string]*Connection)
		r.conns[conn.UserID] = set
	}
	set[conn.ID] = conn
	r.mu.Unlock()

	conn.Start()
}

// Remove deregisters a single connection. Other connections of the same user
// are unaffected.
func (r *Registry) Remove(conn *Connection) {
	r.mu.Lock()
	if set, ok := r.conns[conn.UserID]; ok {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(r.conns, conn.UserID)
		}
	}
	r.mu.Unlock()
}

// Push delivers payload to every open connection of the given user and
// reports how many accepted it. Zero is not an error: an offline recipient
// simply gets nothing, history reload covers them.
func (r *Registry) Push(userID int64, payload []byte) int {
	r.mu.RLock()
	set := r.conns[userID]
	targets := make([]*Connection, 0, len(set))
	for _, conn := range set {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Online reports whether the user has at least one open connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUsers returns the ids of every user with an open connection.
func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		users = append(users, id)
	}
	return users
}

// Shutdown closes every tracked connection and clears the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Connection, 0)
	for _, set := range r.conns {
		for _, conn := range set {
			all = append(all, conn)
		}
	}
	r.conns = make(map[int64]map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range all {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
