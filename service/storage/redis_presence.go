package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/tools/ids"
)

const presencePrefix = "im:presence:"

// presence key: im:presence:<user>  (hash)
// field: gateway id, value: unix ms of the last refresh
// The key TTL bounds how long a crashed gateway keeps users "online".
func presenceKey(user ids.ID) string { return presencePrefix + user.String() }

// RedisPresence mirrors which gateway holds which online user.
type RedisPresence struct {
	rdb       redis.UniversalClient
	gatewayID string
	ttl       time.Duration
	log       *zap.Logger

	mu    sync.Mutex
	users map[ids.ID]struct{} // 本节点在线用户，用于续期
}

func NewRedisPresence(rdb redis.UniversalClient, gatewayID string, ttl time.Duration, log *zap.Logger) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPresence{
		rdb:       rdb,
		gatewayID: gatewayID,
		ttl:       ttl,
		log:       log,
		users:     make(map[ids.ID]struct{}),
	}
}

// Online sets the user as online on this gateway and renews the TTL.
func (p *RedisPresence) Online(ctx context.Context, user ids.ID) error {
	p.mu.Lock()
	p.users[user] = struct{}{}
	p.mu.Unlock()

	key := presenceKey(user)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, p.gatewayID, time.Now().UnixMilli())
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence online")
}

// Offline removes this gateway from the user's entry.
func (p *RedisPresence) Offline(ctx context.Context, user ids.ID) error {
	p.mu.Lock()
	delete(p.users, user)
	p.mu.Unlock()
	return errors.Wrap(p.rdb.HDel(ctx, presenceKey(user), p.gatewayID).Err(), "presence offline")
}

// Lookup returns the gateways currently holding user.
func (p *RedisPresence) Lookup(ctx context.Context, user ids.ID) ([]string, error) {
	m, err := p.rdb.HGetAll(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for gw := range m {
		out = append(out, gw)
	}
	return out, nil
}

// Refresh renews every local user's entry in one pipeline.
func (p *RedisPresence) Refresh(ctx context.Context) (int, error) {
	p.mu.Lock()
	users := make([]ids.ID, 0, len(p.users))
	for u := range p.users {
		users = append(users, u)
	}
	p.mu.Unlock()
	if len(users) == 0 {
		return 0, nil
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pipe := p.rdb.Pipeline()
	for _, u := range users {
		pipe.HSet(ctx, presenceKey(u), p.gatewayID, now)
		pipe.Expire(ctx, presenceKey(u), p.ttl)
	}
	_, err := pipe.Exec(ctx)
	return len(users), errors.Wrap(err, "presence refresh")
}

// Run refreshes at a third of the TTL until ctx is done.
func (p *RedisPresence) Run(ctx context.Context) {
	t := time.NewTicker(p.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := p.Refresh(ctx); err != nil {
				p.log.Warn("presence refresh", zap.Int("users", n), zap.Error(err))
			}
		}
	}
}
