package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/service/metrics"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// Attach opens c and makes it visible to fan-out.
func (h *Hub) Attach(ctx context.Context, c *Conn) error {
	if !c.transition(StateConnecting, StateOpen) {
		return ErrConnNotOpen
	}
	h.registry.Register(c.UserID, c)
	// 与并发的 Disconnect 竞争时，以关闭为准
	if !c.IsOpen() {
		h.registry.Deregister(c.UserID, c)
		return ErrConnNotOpen
	}
	metrics.ConnectionsOpen.Set(float64(h.registry.Connections()))

	if h.presence != nil {
		pctx, cancel := context.WithTimeout(ctx, h.opts.PresenceTimeout)
		defer cancel()
		if err := h.presence.Online(pctx, c.UserID); err != nil {
			h.log.Warn("presence online", zap.Stringer("user", c.UserID), zap.Error(err))
		}
	}
	h.log.Info("conn attached",
		zap.Stringer("conn", c.ID), zap.Stringer("user", c.UserID), zap.String("remote", c.Remote))
	return nil
}

// Disconnect tears c down: deregister, evict conversations left without an
// online member, mark the user offline, close the transport. It is idempotent
// and may be called from any goroutine; only the first call closes the transport.
func (h *Hub) Disconnect(c *Conn, reason string) {
	first := c.beginClose()

	offline := h.registry.Deregister(c.UserID, c)
	metrics.ConnectionsOpen.Set(float64(h.registry.Connections()))
	if offline {
		h.evictFor(c.UserID)
		if h.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), h.opts.PresenceTimeout)
			if err := h.presence.Offline(ctx, c.UserID); err != nil {
				h.log.Warn("presence offline", zap.Stringer("user", c.UserID), zap.Error(err))
			}
			cancel()
		}
	}

	if !first {
		return
	}
	c.closeTransport()
	c.state.Store(int32(StateClosed))
	h.log.Info("conn closed",
		zap.Stringer("conn", c.ID), zap.Stringer("user", c.UserID), zap.String("reason", reason))
}

func (h *Hub) evictFor(userID ids.ID) {
	for _, conv := range h.members.ConversationsOf(userID) {
		if h.members.EvictIfEmpty(conv) {
			h.log.Debug("membership evicted", zap.Stringer("conv", conv))
		}
	}
}
