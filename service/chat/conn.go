package chat

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhihao1021/tjoy/tools/ids"
)

var ErrConnNotOpen = errors.New("chat: connection not open")

// State 连接状态，只前进不回退：Connecting → Open → Closing → Closed
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the part of *websocket.Conn a Conn writes through.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live duplex connection owned by a user.
type Conn struct {
	ID        ids.ID
	UserID    ids.ID
	Remote    string
	CreatedAt time.Time

	state     atomic.Int32
	wmu       sync.Mutex // gorilla 只允许一个并发写者
	tr        Transport
	writeWait time.Duration
}

func NewConn(id, userID ids.ID, tr Transport, writeWait time.Duration) *Conn {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Conn{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
		tr:        tr,
		writeWait: writeWait,
	}
}

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) IsOpen() bool { return c.State() == StateOpen }

func (c *Conn) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// beginClose moves the connection to Closing. Only the first caller gets true.
func (c *Conn) beginClose() bool {
	for {
		s := c.State()
		if s == StateClosing || s == StateClosed {
			return false
		}
		if c.transition(s, StateClosing) {
			return true
		}
	}
}

// Write sends one frame. It refuses to touch a transport that is not Open.
func (c *Conn) Write(messageType int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if !c.IsOpen() {
		return ErrConnNotOpen
	}
	_ = c.tr.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.tr.WriteMessage(messageType, data)
}

func (c *Conn) WriteText(data []byte) error { return c.Write(websocket.TextMessage, data) }

func (c *Conn) Ping() error { return c.Write(websocket.PingMessage, nil) }

// closeTransport 关闭底层连接，错误吞掉。不拿写锁，阻塞中的写会随之返回。
func (c *Conn) closeTransport() {
	if c.tr != nil {
		_ = c.tr.Close()
	}
}
