package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

type namedMid struct {
	name string
	h    gin.HandlerFunc
}

// MiddlewareManager 按名字注册/注销过滤型中间件，Engine 上只挂 Use() 一个。
// 过滤型：放行直接 return，拒绝用 c.Abort*，不要调用 c.Next。
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []namedMid
}

func NewManager() *MiddlewareManager { return &MiddlewareManager{} }

// Add appends h, replacing an existing entry with the same name in place.
func (m *MiddlewareManager) Add(name string, h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			next := append([]namedMid(nil), m.mids...)
			next[i].h = h
			m.mids = next
			return
		}
	}
	m.mids = append(m.mids, namedMid{name: name, h: h})
}

func (m *MiddlewareManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids = append(m.mids[:i:i], m.mids[i+1:]...)
			return true
		}
	}
	return false
}

// Names lists the registered middlewares in run order.
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.mids))
	for i, e := range m.mids {
		out[i] = e.name
	}
	return out
}

func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		snap := m.mids // Add/Remove never write through a published slice
		m.mu.RUnlock()

		for _, e := range snap {
			e.h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
