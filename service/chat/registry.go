package chat

import (
	"sync"

	"github.com/zhihao1021/tjoy/tools/ids"
)

// Registry indexes live connections by user. It never closes transports.
type Registry struct {
	mu     sync.RWMutex
	byUser map[ids.ID]map[ids.ID]*Conn // user -> conn_id -> conn
	byConn map[ids.ID]*Conn            // conn_id -> conn
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[ids.ID]map[ids.ID]*Conn),
		byConn: make(map[ids.ID]*Conn),
	}
}

func (r *Registry) Register(userID ids.ID, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byUser[userID]
	if m == nil {
		m = make(map[ids.ID]*Conn)
		r.byUser[userID] = m
	}
	m[c.ID] = c
	r.byConn[c.ID] = c
}

// Deregister removes c from the user's set and reports whether the user has
// just gone offline. Removing an absent connection is a no-op returning false.
func (r *Registry) Deregister(userID ids.ID, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byUser[userID]
	if m == nil {
		return false
	}
	if cur, ok := m[c.ID]; !ok || cur != c {
		return false
	}
	delete(m, c.ID)
	delete(r.byConn, c.ID)
	if len(m) == 0 {
		delete(r.byUser, userID)
		return true
	}
	return false
}

// ConnectionsOf returns a snapshot; callers may iterate without holding locks.
func (r *Registry) ConnectionsOf(userID ids.ID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[userID]
	out := make([]*Conn, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID ids.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) Get(connID ids.ID) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// all 遍历全部连接（关停时用）
func (r *Registry) all() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
