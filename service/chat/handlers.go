package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/tools/errs"
)

type messageHandler struct{ h *Hub }

func (*messageHandler) Type() string { return FrameMessage }

func (m *messageHandler) Handle(ctx context.Context, c *Conn, f *InboundFrame) error {
	if f.ConversationID == 0 {
		return errs.ErrArgs.WrapMsg("missing conversation_id")
	}
	if strings.TrimSpace(f.Content) == "" {
		return errs.ErrArgs.WrapMsg("empty content", "conv", f.ConversationID)
	}

	res := m.h.SendMessage(ctx, c.UserID, f.ConversationID, f.Content)
	fields := []zap.Field{
		zap.Stringer("user", c.UserID),
		zap.Stringer("conv", f.ConversationID),
		zap.Stringer("status", res.Status),
	}
	switch res.Status {
	case StatusDelivered:
		m.h.log.Debug("message sent", append(fields,
			zap.Stringer("msg", res.Message.ID),
			zap.Int("recipients", res.Recipients),
			zap.Int("delivered", res.Delivered),
			zap.Int("failed", res.Failed))...)
	case StatusNotMember:
		// 非成员静默丢弃
		m.h.log.Debug("message dropped", fields...)
	default:
		m.h.log.Warn("message not sent", append(fields, zap.Error(res.Err))...)
	}
	return nil
}

type pingHandler struct{ h *Hub }

func (*pingHandler) Type() string { return FramePing }

func (p *pingHandler) Handle(_ context.Context, c *Conn, _ *InboundFrame) error {
	b, err := EncodePong(time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return c.WriteText(b)
}
