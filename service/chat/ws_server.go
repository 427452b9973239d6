package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
	"github.com/zhihao1021/tjoy/tools/safe"
)

// HandleWS ===== WebSocket 入口 =====
// 先升级再鉴权：鉴权失败时回 1008 关闭帧。
func (h *Hub) HandleWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		h.log.Info("upgrade websocket", zap.Error(err))
		return
	}
	ctx := c.Request.Context()

	userID, err := h.authenticate(ctx, credentialFrom(c.Request))
	if err != nil {
		h.log.Info("ws auth rejected", zap.String("remote", ws.RemoteAddr().String()), zap.Error(err))
		h.reject(ws, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	connID, err := h.ids.Next()
	if err != nil {
		h.log.Error("mint conn id", zap.Error(err))
		h.reject(ws, websocket.CloseInternalServerErr, "try again")
		return
	}

	conn := NewConn(connID, userID, ws, h.opts.WriteWait)
	conn.Remote = ws.RemoteAddr().String()
	if err := h.Attach(ctx, conn); err != nil {
		_ = ws.Close()
		return
	}
	h.serve(conn, ws)
}

func (h *Hub) authenticate(ctx context.Context, cred string) (ids.ID, error) {
	if h.auth == nil {
		return 0, errs.ErrUnauthorized.WrapMsg("no authenticator")
	}
	if cred == "" {
		return 0, errs.ErrUnauthorized.WrapMsg("missing credential")
	}
	return h.auth.Authenticate(ctx, cred)
}

// credentialFrom reads "Authorization: Bearer <token>", falling back to ?token=.
func credentialFrom(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (h *Hub) reject(ws *websocket.Conn, code int, text string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(h.opts.WriteWait))
	_ = ws.Close()
}

// serve runs the receive loop of an attached connection until the peer goes
// away, a read fails or the connection is closed elsewhere.
func (h *Hub) serve(conn *Conn, ws *websocket.Conn) {
	ws.SetReadLimit(h.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	done := make(chan struct{})
	safe.Go(h.log, "ws keepalive", func() { h.keepalive(conn, done) })

	reason := h.readLoop(conn, ws)
	close(done)
	h.Disconnect(conn, reason)
}

// ---- 读循环：出错即退出 ----
func (h *Hub) readLoop(conn *Conn, ws *websocket.Conn) string {
	log := h.log.With(zap.Stringer("conn", conn.ID), zap.Stringer("user", conn.UserID))
	ctx := context.Background()
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case !conn.IsOpen():
				return "closed locally"
			case websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived):
				log.Info("peer closed", zap.Error(err))
				return "peer closed"
			case errors.As(err, &ne) && ne.Timeout():
				log.Info("read timeout", zap.Error(err))
				return "read timeout"
			default:
				log.Info("read err", zap.Error(err))
				return "read error"
			}
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		if mt != websocket.TextMessage {
			continue
		}

		f, err := ParseFrame(data)
		if err != nil {
			// 只打印简短样本
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			log.Info("bad frame", zap.Error(err), zap.ByteString("sample", sample), zap.Int("len", len(data)))
			continue
		}
		if err := h.disp.Dispatch(ctx, conn, f); err != nil {
			if errors.Is(err, ErrNoHandler) {
				continue
			}
			log.Info("handle frame", zap.String("type", f.Type), zap.Error(err))
			if errors.Is(err, ErrConnNotOpen) {
				return "closed locally"
			}
		}
	}
}

func (h *Hub) keepalive(conn *Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				h.Disconnect(conn, "ping failed")
				return
			}
		}
	}
}
