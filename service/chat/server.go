package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/logger"
)

// ===== 配置 =====

type Options struct {
	EchoToSender    bool          `mapstructure:"echo_to_sender"` // 发送者自己的其他连接是否也收到
	WriteWait       time.Duration `mapstructure:"write_wait"`     // 单次写超时
	PongWait        time.Duration `mapstructure:"pong_wait"`      // 读超时，收到 pong 续期
	PingPeriod      time.Duration `mapstructure:"ping_period"`    // 必须小于 PongWait
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout"`
	PresenceTimeout time.Duration `mapstructure:"presence_timeout"`
}

func (o *Options) norm() {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.PresenceTimeout <= 0 {
		o.PresenceTimeout = 2 * time.Second
	}
}

// Hub owns the registry and membership cache of one gateway process and
// implements send, fan-out and the connection lifecycle on top of them.
type Hub struct {
	opts       Options
	log        *zap.Logger
	ids        IDGenerator
	store      Store
	translator Translator
	auth       Authenticator
	publishers []EventPublisher
	presence   Presence

	registry *Registry
	members  *MembershipCache
	disp     *Dispatcher
	upgrader websocket.Upgrader

	bg sync.WaitGroup // 异步事件发布
}

type HubOption func(*Hub)

func WithOptions(o Options) HubOption { return func(h *Hub) { h.opts = o } }

func WithLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithIDGenerator(g IDGenerator) HubOption {
	return func(h *Hub) {
		if g != nil {
			h.ids = g
		}
	}
}

func WithTranslator(t Translator) HubOption { return func(h *Hub) { h.translator = t } }

func WithAuthenticator(a Authenticator) HubOption { return func(h *Hub) { h.auth = a } }

func WithPresence(p Presence) HubOption { return func(h *Hub) { h.presence = p } }

func WithPublishers(ps ...EventPublisher) HubOption {
	return func(h *Hub) {
		for _, p := range ps {
			if p != nil {
				h.publishers = append(h.publishers, p)
			}
		}
	}
}

func NewHub(store Store, opts ...HubOption) *Hub {
	h := &Hub{
		log:      logger.Named("chat"),
		ids:      processIDs{},
		store:    store,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.opts.norm()
	h.members = NewMembershipCache(store, h.registry)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	h.disp = NewDispatcher()
	h.disp.Register(&messageHandler{h: h})
	h.disp.Register(&pingHandler{h: h})
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) Members() *MembershipCache { return h.members }

func (h *Hub) Dispatcher() *Dispatcher { return h.disp }

// Stats is the snapshot served on /healthz.
type Stats struct {
	Users         int `json:"users"`
	Connections   int `json:"connections"`
	Conversations int `json:"conversations"`
}

func (h *Hub) Stats() any {
	return Stats{
		Users:         h.registry.Users(),
		Connections:   h.registry.Connections(),
		Conversations: h.members.Len(),
	}
}

// Close disconnects every live connection and waits for pending event publishes.
func (h *Hub) Close(ctx context.Context) error {
	for _, c := range h.registry.all() {
		h.Disconnect(c, "server shutdown")
	}
	done := make(chan struct{})
	go func() {
		h.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
