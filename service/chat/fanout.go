package chat

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/service/metrics"
	"github.com/zhihao1021/tjoy/tools/ids"
)

type fanoutStats struct {
	recipients int
	delivered  int
	failed     int
}

// fanout writes payload to every connection of every member except `except`
// (0 disables the exclusion). One goroutine per user and one per connection;
// all of them are joined before returning. A failing connection is handed to
// Disconnect and never stops the other writes.
func (h *Hub) fanout(members []ids.ID, except ids.ID, payload []byte) fanoutStats {
	var (
		wg                            sync.WaitGroup
		recipients, delivered, failed atomic.Int64
	)
	for _, uid := range members {
		if except != 0 && uid == except {
			continue
		}
		wg.Add(1)
		go func(uid ids.ID) {
			defer wg.Done()
			conns := h.registry.ConnectionsOf(uid)
			if len(conns) == 0 {
				return
			}
			recipients.Add(1)

			var cwg sync.WaitGroup
			for _, c := range conns {
				cwg.Add(1)
				go func(c *Conn) {
					defer cwg.Done()
					if h.deliver(c, payload) {
						delivered.Add(1)
					} else {
						failed.Add(1)
					}
				}(c)
			}
			cwg.Wait()
		}(uid)
	}
	wg.Wait()

	return fanoutStats{
		recipients: int(recipients.Load()),
		delivered:  int(delivered.Load()),
		failed:     int(failed.Load()),
	}
}

func (h *Hub) deliver(c *Conn, payload []byte) bool {
	if !c.IsOpen() {
		metrics.ObserveWrite(false)
		h.Disconnect(c, "not open at fan-out")
		return false
	}
	if err := c.WriteText(payload); err != nil {
		metrics.ObserveWrite(false)
		h.log.Debug("fan-out write failed",
			zap.Stringer("conn", c.ID), zap.Stringer("user", c.UserID), zap.Error(err))
		h.Disconnect(c, "write failed")
		return false
	}
	metrics.ObserveWrite(true)
	return true
}
