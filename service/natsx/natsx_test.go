package natsx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/ids"
)

type call struct {
	biz   string
	data  []byte
	hdr   map[string]string
	msgID string
}

type fakePublisher struct {
	calls []call
	fail  int // fail the first n calls
}

func (f *fakePublisher) PublishOnce(_ context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	f.calls = append(f.calls, call{biz, data, hdr, msgID})
	if len(f.calls) <= f.fail {
		return errors.New("no responders")
	}
	return nil
}

func TestMessagePublisher(t *testing.T) {
	req := require.New(t)
	fp := &fakePublisher{}
	mp := &MessagePublisher{p: fp, node: 3}

	m := model.NewMessage(ids.ID(6209533852516352), 1, 2, "hello", "你好")
	req.NoError(mp.PublishMessage(context.Background(), m))

	req.Len(fp.calls, 1)
	c := fp.calls[0]
	req.Equal(BizMessageCreated, c.biz)
	req.Equal("6209533852516352", c.msgID)
	req.Equal(model.EventMessageCreated, c.hdr["X-Event-Type"])

	var ev model.MessageEvent
	req.NoError(json.Unmarshal(c.data, &ev))
	req.Equal(model.EventMessageCreated, ev.Type)
	req.Equal(int64(3), ev.Node)
	req.Equal(m.ID, ev.Message.ID)
	req.Equal("你好", ev.Message.TranslatedContent)
}

func TestRetryPublisher(t *testing.T) {
	req := require.New(t)
	fp := &fakePublisher{fail: 2}
	rp := &RetryPublisher{P: fp, Retries: 2, Backoff: time.Millisecond}
	req.NoError(rp.PublishOnce(context.Background(), "b", nil, nil, "id"))
	req.Len(fp.calls, 3)

	fp = &fakePublisher{fail: 5}
	rp = &RetryPublisher{P: fp, Retries: 1, Backoff: time.Millisecond}
	req.Error(rp.PublishOnce(context.Background(), "b", nil, nil, "id"))
	req.Len(fp.calls, 2)
}

func TestMembershipHandler(t *testing.T) {
	req := require.New(t)
	var got []ids.ID
	h := MembershipHandler(zap.NewNop(), func(id ids.ID) { got = append(got, id) })

	req.NoError(h(context.Background(), Message{Data: []byte(`{"type":"membership.changed","conversation_id":"42"}`)}))
	req.Error(h(context.Background(), Message{Data: []byte(`{"type":"membership.changed"}`)}))
	req.Error(h(context.Background(), Message{Data: []byte(`garbage`)}))
	req.Equal([]ids.ID{42}, got)
}

func TestIdemMiddleware_DropsRedelivery(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1000, 0)
	store := newMemIdem(time.Minute, func() time.Time { return now })

	var handled int
	h := Chain(func(context.Context, Message) error { handled++; return nil }, IdemMiddleware(store, 0))

	msg := Message{Subject: "s", Data: []byte("x"), Header: map[string]string{HeaderMsgID: "m1"}}
	req.NoError(h(context.Background(), msg))
	req.NoError(h(context.Background(), msg))
	req.Equal(1, handled)

	// without an id the subject and body identify the message
	anon := Message{Subject: "s", Data: []byte("y")}
	req.NoError(h(context.Background(), anon))
	req.NoError(h(context.Background(), anon))
	req.Equal(2, handled)

	now = now.Add(2 * time.Minute)
	store.sweep()
	req.NoError(h(context.Background(), msg))
	req.Equal(3, handled)
}

func TestChainOrder(t *testing.T) {
	var trail []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, m Message) error {
				trail = append(trail, name)
				return next(ctx, m)
			}
		}
	}
	h := Chain(func(context.Context, Message) error { trail = append(trail, "h"); return nil }, mw("a"), mw("b"))
	require.NoError(t, h(context.Background(), Message{}))
	require.Equal(t, []string{"a", "b", "h"}, trail)
}

func TestWithMsgIDAndHeaders(t *testing.T) {
	req := require.New(t)
	in := map[string]string{"k": "v"}
	out := withMsgID(in, "abc")
	req.Equal("abc", out[HeaderMsgID])
	req.NotContains(in, HeaderMsgID, "caller map untouched")

	out = withMsgID(nil, "")
	req.Len(out[HeaderMsgID], 32)

	msg := newMsg("subj", []byte("d"), map[string]string{"A": "1"})
	req.Equal("1", msg.Header.Get("A"))
	req.Equal(map[string]string{"A": "1"}, headerToMap(msg.Header))
	req.Nil(headerToMap(nats.Header{}))
}

func TestNewClient_RequiresServers(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
