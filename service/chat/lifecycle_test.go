package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhihao1021/tjoy/tools/ids"
)

func TestConn_WriteRefusedUnlessOpen(t *testing.T) {
	req := require.New(t)
	tr := &fakeTransport{}
	c := NewConn(1, 1, tr, time.Second)

	req.Equal(StateConnecting, c.State())
	req.ErrorIs(c.WriteText([]byte("x")), ErrConnNotOpen)

	req.True(c.transition(StateConnecting, StateOpen))
	req.NoError(c.WriteText([]byte("x")))

	req.True(c.beginClose())
	req.False(c.beginClose())
	req.ErrorIs(c.WriteText([]byte("y")), ErrConnNotOpen)
	req.Len(tr.written(), 1)
}

func TestHub_AttachRegistersAndMarksOnline(t *testing.T) {
	req := require.New(t)
	p := newFakePresence()
	h := newTestHub(t, newFakeStore(), WithPresence(p))

	c, _ := attach(t, h, 5)
	req.Equal(StateOpen, c.State())
	req.True(h.Registry().IsOnline(5))
	req.Equal([]string{"online:5"}, p.snapshot())

	// a connection is opened at most once
	req.ErrorIs(h.Attach(context.Background(), c), ErrConnNotOpen)
}

func TestHub_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	p := newFakePresence()
	h := newTestHub(t, newFakeStore(), WithPresence(p))
	c, tr := attach(t, h, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Disconnect(c, "test")
		}()
	}
	wg.Wait()
	h.Disconnect(c, "again")

	req.Equal(StateClosed, c.State())
	req.Equal(1, tr.closeCount())
	req.False(h.Registry().IsOnline(5))
	req.Equal([]string{"online:5", "offline:5"}, p.snapshot())
}

func TestHub_PresenceOfflineOnlyWithLastConnection(t *testing.T) {
	req := require.New(t)
	p := newFakePresence()
	h := newTestHub(t, newFakeStore(), WithPresence(p))
	c1, _ := attach(t, h, 8)
	c2, _ := attach(t, h, 8)

	h.Disconnect(c1, "tab closed")
	req.True(h.Registry().IsOnline(8))
	req.Equal([]string{"online:8", "online:8"}, p.snapshot())

	h.Disconnect(c2, "tab closed")
	req.Equal([]string{"online:8", "online:8", "offline:8"}, p.snapshot())
}

func TestHub_DisconnectBeforeAttach(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, newFakeStore())
	tr := &fakeTransport{}
	c := NewConn(ids.ID(9000), 9, tr, time.Second)

	h.Disconnect(c, "auth timeout")
	req.Equal(StateClosed, c.State())
	req.Equal(1, tr.closeCount())
	req.ErrorIs(h.Attach(context.Background(), c), ErrConnNotOpen)
	req.False(h.Registry().IsOnline(9))
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, newFakeStore())
	c1, tr1 := attach(t, h, 1)
	c2, tr2 := attach(t, h, 2)

	req.NoError(h.Close(context.Background()))
	req.Equal(StateClosed, c1.State())
	req.Equal(StateClosed, c2.State())
	req.Equal(1, tr1.closeCount())
	req.Equal(1, tr2.closeCount())
	req.Equal(0, h.Registry().Connections())
}
