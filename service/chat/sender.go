package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/service/metrics"
	"github.com/zhihao1021/tjoy/tools/ids"
	"github.com/zhihao1021/tjoy/tools/safe"
)

type SendStatus int

const (
	StatusDelivered SendStatus = iota
	StatusNotMember
	StatusMembershipFailed
	StatusIDFailed
	StatusPersistFailed
)

func (s SendStatus) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusNotMember:
		return "not_member"
	case StatusMembershipFailed:
		return "membership_failed"
	case StatusIDFailed:
		return "id_failed"
	case StatusPersistFailed:
		return "persist_failed"
	}
	return "unknown"
}

// SendResult describes what SendMessage did. Message is set only when the
// message was persisted (StatusDelivered); Err only on failure statuses other
// than StatusNotMember.
type SendResult struct {
	Status     SendStatus
	Message    model.Message
	Recipients int // online recipient users
	Delivered  int // successful connection writes
	Failed     int // connections dropped during fan-out
	Err        error
}

func (r SendResult) OK() bool { return r.Status == StatusDelivered }

// SendMessage persists text as a message from userID in convID and delivers
// it to every online member's connections. A message is never written to a
// connection before it is stored, and a non-member's message is dropped.
func (h *Hub) SendMessage(ctx context.Context, userID, convID ids.ID, text string) (res SendResult) {
	defer func() { metrics.ObserveMessage(res.Status.String()) }()

	members, ok, err := h.members.CheckSender(ctx, convID, userID)
	if err != nil {
		return SendResult{Status: StatusMembershipFailed, Err: err}
	}
	if !ok {
		// 非成员的加载不能让条目留下
		h.members.EvictIfEmpty(convID)
		return SendResult{Status: StatusNotMember}
	}

	id, err := h.ids.Next()
	if err != nil {
		return SendResult{Status: StatusIDFailed, Err: err}
	}

	msg := model.NewMessage(id, userID, convID, text, h.translate(ctx, text))

	saved, err := h.store.SaveMessage(ctx, msg)
	if err != nil {
		return SendResult{Status: StatusPersistFailed, Err: err}
	}

	h.publish(saved)

	payload, err := EncodeMessageFrame(saved)
	if err != nil {
		// 已落库，只是无法推送
		h.log.Error("encode message frame", zap.Stringer("msg", saved.ID), zap.Error(err))
		return SendResult{Status: StatusDelivered, Message: saved}
	}

	except := userID
	if h.opts.EchoToSender {
		except = 0
	}
	st := h.fanout(members, except, payload)
	return SendResult{
		Status:     StatusDelivered,
		Message:    saved,
		Recipients: st.recipients,
		Delivered:  st.delivered,
		Failed:     st.failed,
	}
}

// translate 翻译失败降级为空串
func (h *Hub) translate(ctx context.Context, text string) string {
	if h.translator == nil {
		return ""
	}
	out, err := h.translator.Translate(ctx, text)
	if err != nil {
		h.log.Warn("translate failed, degrading", zap.Error(err))
		return ""
	}
	return out
}

func (h *Hub) publish(m model.Message) {
	for _, p := range h.publishers {
		p := p
		h.bg.Add(1)
		safe.Go(h.log, "publish message", func() {
			defer h.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), h.opts.PublishTimeout)
			defer cancel()
			if err := p.PublishMessage(ctx, m); err != nil {
				h.log.Warn("publish message event", zap.Stringer("msg", m.ID), zap.Error(err))
			}
		})
	}
}
