package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhihao1021/tjoy/tools/ids"
)

func TestMembership_PopulatesOnMissOnly(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[100] = []ids.ID{1, 2}
	mc := NewMembershipCache(store, NewRegistry())

	got, err := mc.MembersOf(context.Background(), 100)
	req.NoError(err)
	req.Equal([]ids.ID{1, 2}, got)

	got[0] = 99 // caller copy must not leak into the cache
	again, err := mc.MembersOf(context.Background(), 100)
	req.NoError(err)
	req.Equal([]ids.ID{1, 2}, again)
	req.Equal(int32(1), store.memberCalls.Load())
	req.Equal(1, mc.Len())
}

func TestMembership_ConcurrentMissesShareOneQuery(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[7] = []ids.ID{1, 2, 3}
	store.gate = make(chan struct{})
	mc := NewMembershipCache(store, NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := mc.MembersOf(context.Background(), 7)
			if err != nil || len(m) != 3 {
				t.Errorf("members=%v err=%v", m, err)
			}
		}()
	}
	req.Eventually(func() bool { return store.memberCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	req.Equal(int32(1), store.memberCalls.Load())
}

func TestMembership_LoadErrorIsNotCached(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.membersErr = errors.New("db down")
	mc := NewMembershipCache(store, NewRegistry())

	_, err := mc.MembersOf(context.Background(), 1)
	req.Error(err)
	req.Equal(0, mc.Len())

	store.mu.Lock()
	store.membersErr = nil
	store.members[1] = []ids.ID{5}
	store.mu.Unlock()

	got, err := mc.MembersOf(context.Background(), 1)
	req.NoError(err)
	req.Equal([]ids.ID{5}, got)
}

func TestMembership_EmptyConversationIsNotCached(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	mc := NewMembershipCache(store, NewRegistry())

	got, err := mc.MembersOf(context.Background(), 404)
	req.NoError(err)
	req.Empty(got)
	req.Equal(0, mc.Len())
	req.False(mc.Contains(404))
}

// Invalidate lands while the store read is still in flight
func TestMembership_InvalidateDuringLoadDropsResult(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[100] = []ids.ID{1, 2}
	store.gate = make(chan struct{})
	store.readFirst = true
	mc := NewMembershipCache(store, NewRegistry())

	// Given a load that has already read {1,2} and is blocked
	first := make(chan []ids.ID, 1)
	go func() {
		m, _ := mc.MembersOf(context.Background(), 100)
		first <- m
	}()
	req.Eventually(func() bool { return store.memberCalls.Load() == 1 }, time.Second, time.Millisecond)

	// When member 2 leaves and the conversation is invalidated
	store.mu.Lock()
	store.members[100] = []ids.ID{1}
	store.mu.Unlock()
	mc.Invalidate(100)

	// Then a lookup started after Invalidate does not join the stale load
	second := make(chan []ids.ID, 1)
	go func() {
		m, _ := mc.MembersOf(context.Background(), 100)
		second <- m
	}()
	req.Eventually(func() bool { return store.memberCalls.Load() == 2 }, time.Second, time.Millisecond)
	close(store.gate)

	<-first
	req.Equal([]ids.ID{1}, <-second)

	// And the cache holds the fresh membership only
	got, err := mc.MembersOf(context.Background(), 100)
	req.NoError(err)
	req.Equal([]ids.ID{1}, got)
	req.Equal(int32(2), store.memberCalls.Load())
}

func TestMembership_CheckSender(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[100] = []ids.ID{1, 2}
	mc := NewMembershipCache(store, NewRegistry())

	members, ok, err := mc.CheckSender(context.Background(), 100, 1)
	req.NoError(err)
	req.True(ok)
	req.ElementsMatch([]ids.ID{1, 2}, members)

	members, ok, err = mc.CheckSender(context.Background(), 100, 3)
	req.NoError(err)
	req.False(ok)
	req.Nil(members)
}

func TestMembership_EvictIfEmpty(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[100] = []ids.ID{1, 2}
	reg := NewRegistry()
	mc := NewMembershipCache(store, reg)

	req.False(mc.EvictIfEmpty(100), "nothing cached yet")

	_, err := mc.MembersOf(context.Background(), 100)
	req.NoError(err)

	c := NewConn(1, 2, &fakeTransport{}, 0)
	reg.Register(2, c)
	req.False(mc.EvictIfEmpty(100), "member 2 is online")
	req.True(mc.Contains(100))

	reg.Deregister(2, c)
	req.True(mc.EvictIfEmpty(100))
	req.False(mc.Contains(100))
}

func TestMembership_InvalidateForcesReload(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[9] = []ids.ID{1}
	mc := NewMembershipCache(store, NewRegistry())

	_, err := mc.MembersOf(context.Background(), 9)
	req.NoError(err)

	store.mu.Lock()
	store.members[9] = []ids.ID{1, 4}
	store.mu.Unlock()

	stale, _ := mc.MembersOf(context.Background(), 9)
	req.Equal([]ids.ID{1}, stale)

	mc.Invalidate(9)
	fresh, err := mc.MembersOf(context.Background(), 9)
	req.NoError(err)
	req.Equal([]ids.ID{1, 4}, fresh)
	req.Equal(int32(2), store.memberCalls.Load())
}

func TestMembership_ConversationsOf(t *testing.T) {
	store := newFakeStore()
	store.members[1] = []ids.ID{10, 11}
	store.members[2] = []ids.ID{11}
	store.members[3] = []ids.ID{12}
	mc := NewMembershipCache(store, NewRegistry())
	for _, conv := range []ids.ID{1, 2, 3} {
		_, err := mc.MembersOf(context.Background(), conv)
		require.NoError(t, err)
	}

	require.ElementsMatch(t, []ids.ID{1, 2}, mc.ConversationsOf(11))
	require.Equal(t, []ids.ID{3}, mc.ConversationsOf(12))
	require.Empty(t, mc.ConversationsOf(99))
}

// populate then evict with everyone offline
func TestHub_EvictsConversationWhenLastMemberLeaves(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.members[100] = []ids.ID{1, 2}
	h := newTestHub(t, store)

	// Given A online and B offline, A sends into the conversation
	a, _ := attach(t, h, 1)
	res := h.SendMessage(context.Background(), 1, 100, "hi")
	req.Equal(StatusDelivered, res.Status)
	req.True(h.Members().Contains(100))

	// When A disconnects
	h.Disconnect(a, "bye")

	// Then the entry is evicted and nobody is online
	req.False(h.Members().Contains(100))
	req.Equal(0, h.Members().Len())
	req.False(h.Registry().IsOnline(1))
}
