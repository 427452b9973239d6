package natsx

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/ids"
)

const (
	BizMessageCreated    = "chat.message.created"
	BizMembershipChanged = "chat.membership.changed"

	DefaultMessageSubject    = "tjoy.chat.message.created"
	DefaultMembershipSubject = "tjoy.chat.membership.changed"
)

// EventsConfig 网关相关的 subject 配置
type EventsConfig struct {
	MessageSubject    string        `mapstructure:"message_subject"`
	MembershipSubject string        `mapstructure:"membership_subject"`
	Retries           int           `mapstructure:"retries"`
	Backoff           time.Duration `mapstructure:"backoff"`
}

func (c *EventsConfig) norm() {
	if c.MessageSubject == "" {
		c.MessageSubject = DefaultMessageSubject
	}
	if c.MembershipSubject == "" {
		c.MembershipSubject = DefaultMembershipSubject
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
}

// Routes registers the gateway's subjects on m. Message events use JetStream
// when the connection was configured for it.
func (c EventsConfig) Routes(m *Manager, jetstream bool) error {
	c.norm()
	mode := Core
	if jetstream {
		mode = JetStreamPush
	}
	if err := m.RegisterRoute(Route{Biz: BizMessageCreated, Subject: c.MessageSubject, Mode: mode}); err != nil {
		return err
	}
	// 成员变更广播给所有网关，不分组
	return m.RegisterRoute(Route{Biz: BizMembershipChanged, Subject: c.MembershipSubject, Mode: Core})
}

// MessagePublisher publishes a MessageEvent per persisted message, keyed by
// the message id so JetStream drops duplicates.
type MessagePublisher struct {
	p    publisher
	node int64
}

func NewMessagePublisher(m *Manager, cfg EventsConfig, node int64) *MessagePublisher {
	cfg.norm()
	return &MessagePublisher{
		p:    &RetryPublisher{P: m, Retries: cfg.Retries, Backoff: cfg.Backoff},
		node: node,
	}
}

func (mp *MessagePublisher) PublishMessage(ctx context.Context, m model.Message) error {
	data, err := json.Marshal(model.NewMessageEvent(mp.node, m))
	if err != nil {
		return err
	}
	hdr := map[string]string{"Content-Type": "application/json", "X-Event-Type": model.EventMessageCreated}
	return mp.p.PublishOnce(ctx, BizMessageCreated, data, hdr, m.ID.String())
}

// MembershipHandler decodes MembershipEvent payloads and hands the
// conversation id to invalidate.
func MembershipHandler(log *zap.Logger, invalidate func(ids.ID)) Handler {
	return func(_ context.Context, msg Message) error {
		var ev model.MembershipEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn("bad membership event", zap.String("subject", msg.Subject), zap.Error(err))
			return err
		}
		if ev.ConversationID == 0 {
			return fmt.Errorf("membership event without conversation_id")
		}
		invalidate(ev.ConversationID)
		log.Debug("membership invalidated", zap.Stringer("conv", ev.ConversationID))
		return nil
	}
}
