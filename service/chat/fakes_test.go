package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/ids"
)

type fakeStore struct {
	mu          sync.Mutex
	members     map[ids.ID][]ids.ID
	saved       []model.Message
	saveErr     error
	membersErr  error
	memberCalls atomic.Int32
	gate        chan struct{} // MembersOfConversation blocks on it when set
	readFirst   bool          // read members before blocking on gate
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: make(map[ids.ID][]ids.ID)}
}

func (s *fakeStore) SaveMessage(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return model.Message{}, s.saveErr
	}
	s.saved = append(s.saved, m)
	return m, nil
}

func (s *fakeStore) MembersOfConversation(_ context.Context, convID ids.ID) ([]ids.ID, error) {
	if s.readFirst {
		s.mu.Lock()
		out, err := cloneIDs(s.members[convID]), s.membersErr
		s.mu.Unlock()
		s.memberCalls.Add(1)
		if s.gate != nil {
			<-s.gate
		}
		return out, err
	}
	s.memberCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.membersErr != nil {
		return nil, s.membersErr
	}
	return cloneIDs(s.members[convID]), nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closes   int
}

func (t *fakeTransport) WriteMessage(_ int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return errors.New("use of closed network connection")
}

func (t *fakeTransport) written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

type fakeTranslator struct {
	out string
	err error
}

func (f fakeTranslator) Translate(context.Context, string) (string, error) { return f.out, f.err }

type fakePresence struct {
	mu     sync.Mutex
	online map[ids.ID]int
	events []string
}

func newFakePresence() *fakePresence { return &fakePresence{online: make(map[ids.ID]int)} }

func (p *fakePresence) Online(_ context.Context, u ids.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[u]++
	p.events = append(p.events, "online:"+u.String())
	return nil
}

func (p *fakePresence) Offline(_ context.Context, u ids.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, u)
	p.events = append(p.events, "offline:"+u.String())
	return nil
}

func (p *fakePresence) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []model.Message
	err  error
}

func (r *recordingPublisher) PublishMessage(_ context.Context, m model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newTestHub(t *testing.T, store Store, opts ...HubOption) *Hub {
	t.Helper()
	g, err := ids.NewGenerator(1)
	require.NoError(t, err)
	base := []HubOption{WithLogger(zap.NewNop()), WithIDGenerator(g)}
	return NewHub(store, append(base, opts...)...)
}

var connSeq atomic.Int64

func attach(t *testing.T, h *Hub, user ids.ID) (*Conn, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c := NewConn(ids.ID(connSeq.Add(1)), user, tr, time.Second)
	require.NoError(t, h.Attach(context.Background(), c))
	return c, tr
}

func decodeMessageFrame(t *testing.T, raw []byte) model.Message {
	t.Helper()
	var f OutboundFrame
	require.NoError(t, json.Unmarshal(raw, &f))
	require.Equal(t, FrameMessage, f.Type)
	require.NotNil(t, f.Message)
	return *f.Message
}
