package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zhihao1021/tjoy/service/metrics"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// MembershipCache maps conversation -> members. Entries are loaded from the
// store on first use and live until every member is offline or Invalidate is
// called; there is no TTL, so membership edits made elsewhere are only seen
// after one of those happens.
//
// Lock order: MembershipCache.mu before Registry.mu.
type MembershipCache struct {
	mu      sync.RWMutex
	entries map[ids.ID][]ids.ID
	gens    map[ids.ID]*loadGen // only while a load is in flight
	store   Store
	reg     *Registry
	loads   singleflight.Group
}

// loadGen is bumped by Invalidate and EvictIfEmpty; a load that started
// under an older gen drops its result.
type loadGen struct {
	gen  uint64
	refs int
}

func NewMembershipCache(store Store, reg *Registry) *MembershipCache {
	return &MembershipCache{
		entries: make(map[ids.ID][]ids.ID),
		gens:    make(map[ids.ID]*loadGen),
		store:   store,
		reg:     reg,
	}
}

// MembersOf returns a copy of the members of convID, querying the store on a
// miss. Concurrent misses for the same conversation share one query.
func (mc *MembershipCache) MembersOf(ctx context.Context, convID ids.ID) ([]ids.ID, error) {
	mc.mu.RLock()
	members, ok := mc.entries[convID]
	mc.mu.RUnlock()
	if ok {
		return cloneIDs(members), nil
	}

	v, err, _ := mc.loads.Do(convID.String(), func() (interface{}, error) {
		mc.mu.Lock()
		lg, ok := mc.gens[convID]
		if !ok {
			lg = &loadGen{}
			mc.gens[convID] = lg
		}
		lg.refs++
		start := lg.gen
		mc.mu.Unlock()

		loaded, err := mc.store.MembersOfConversation(ctx, convID)

		mc.mu.Lock()
		stale := lg.gen != start
		if lg.refs--; lg.refs == 0 {
			delete(mc.gens, convID)
		}
		if err != nil {
			mc.mu.Unlock()
			return nil, err
		}
		// 其他路径可能已经填充
		if cur, ok := mc.entries[convID]; ok {
			loaded = cur
		} else {
			loaded = cloneIDs(loaded)
			// 空会话和过期结果都不缓存
			if !stale && len(loaded) > 0 {
				mc.entries[convID] = loaded
			}
		}
		n := len(mc.entries)
		mc.mu.Unlock()
		metrics.MembershipCacheEntries.Set(float64(n))
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneIDs(v.([]ids.ID)), nil
}

// CheckSender loads the membership of convID and reports whether senderID is
// part of it. A non-member gets ok=false and a nil error.
func (mc *MembershipCache) CheckSender(ctx context.Context, convID, senderID ids.ID) ([]ids.ID, bool, error) {
	members, err := mc.MembersOf(ctx, convID)
	if err != nil {
		return nil, false, err
	}
	for _, m := range members {
		if m == senderID {
			return members, true, nil
		}
	}
	return nil, false, nil
}

// EvictIfEmpty drops convID when none of its members has a live connection.
func (mc *MembershipCache) EvictIfEmpty(convID ids.ID) bool {
	mc.mu.Lock()
	members, ok := mc.entries[convID]
	if !ok {
		mc.mu.Unlock()
		return false
	}
	for _, m := range members {
		if mc.reg.IsOnline(m) {
			mc.mu.Unlock()
			return false
		}
	}
	delete(mc.entries, convID)
	mc.bumpLocked(convID)
	n := len(mc.entries)
	mc.mu.Unlock()

	metrics.MembershipCacheEntries.Set(float64(n))
	return true
}

// Invalidate forgets convID; the next lookup reloads it from the store. A
// load already in flight for convID is not cached and is not shared with
// lookups that start after this call.
func (mc *MembershipCache) Invalidate(convID ids.ID) {
	mc.mu.Lock()
	delete(mc.entries, convID)
	mc.bumpLocked(convID)
	n := len(mc.entries)
	mc.mu.Unlock()
	mc.loads.Forget(convID.String())
	metrics.MembershipCacheEntries.Set(float64(n))
}

func (mc *MembershipCache) bumpLocked(convID ids.ID) {
	if lg, ok := mc.gens[convID]; ok {
		lg.gen++
	}
}

// ConversationsOf lists cached conversations that include userID.
func (mc *MembershipCache) ConversationsOf(userID ids.ID) []ids.ID {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	var out []ids.ID
	for conv, members := range mc.entries {
		for _, m := range members {
			if m == userID {
				out = append(out, conv)
				break
			}
		}
	}
	return out
}

func (mc *MembershipCache) Contains(convID ids.ID) bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	_, ok := mc.entries[convID]
	return ok
}

func (mc *MembershipCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

func cloneIDs(in []ids.ID) []ids.ID {
	out := make([]ids.ID, len(in))
	copy(out, in)
	return out
}
