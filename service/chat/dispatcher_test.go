package chat

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type typingHandler struct{ seen chan string }

func (*typingHandler) Type() string { return "typing" }

func (t *typingHandler) Handle(_ context.Context, c *Conn, f *InboundFrame) error {
	t.seen <- f.Type
	b, err := EncodePong(42)
	if err != nil {
		return err
	}
	return c.WriteText(b)
}

func TestDispatcher_Dispatch(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher()
	th := &typingHandler{seen: make(chan string, 1)}
	d.Register(th)

	c := NewConn(1, 1, &fakeTransport{}, 0)
	req.True(c.transition(StateConnecting, StateOpen))

	req.NoError(d.Dispatch(context.Background(), c, &InboundFrame{Type: "typing"}))
	req.Equal("typing", <-th.seen)

	err := d.Dispatch(context.Background(), c, &InboundFrame{Type: "read_receipt"})
	req.ErrorIs(err, ErrNoHandler)
	req.ErrorContains(err, "read_receipt")
}

func TestHandleWS_RoutesRegisteredHandler(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, newFakeStore(), WithAuthenticator(tokenAuth{"t": 1}))

	// Given an extra frame type installed before serving
	th := &typingHandler{seen: make(chan string, 1)}
	h.Dispatcher().Register(th)
	url := startServer(t, h)
	ws := dial(t, url, "t")

	// When the client sends it
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing"}`)))

	// Then the read loop hands it to that handler
	f := readFrame(t, ws)
	req.Equal(FramePong, f.Type)
	req.Equal(int64(42), f.TS)
	req.Equal("typing", <-th.seen)
}
