package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which peer ids were handed out and are still alive.
type Presence interface {
	// Reserve claims id for ttl. It reports false when id is taken.
	Reserve(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Refresh extends a live id.
	Refresh(ctx context.Context, id string, ttl time.Duration) error
	Release(ctx context.Context, id string) error
}

// MemoryPresence is a process-local Presence.
type MemoryPresence struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{ids: make(map[string]time.Time), now: time.Now}
}

func (p *MemoryPresence) Reserve(_ context.Context, id string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if exp, ok := p.ids[id]; ok && p.now().Before(exp) {
		return false, nil
	}
	p.ids[id] = p.now().Add(ttl)
	return true, nil
}

func (p *MemoryPresence) Exists(_ context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.ids[id]
	if ok && !p.now().Before(exp) {
		delete(p.ids, id)
		return false, nil
	}
	return ok, nil
}

func (p *MemoryPresence) Refresh(_ context.Context, id string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[id]; ok {
		p.ids[id] = p.now().Add(ttl)
	}
	return nil
}

func (p *MemoryPresence) Release(_ context.Context, id string) error {
	p.mu.Lock()
	delete(p.ids, id)
	p.mu.Unlock()
	return nil
}

// RedisPresence shares peer ids between relay instances.
type RedisPresence struct{ rdb *redis.Client }

func NewRedisPresence(rdb *redis.Client) *RedisPresence { return &RedisPresence{rdb: rdb} }

func (p *RedisPresence) key(id string) string { return "peer:" + strings.TrimSpace(id) }

func (p *RedisPresence) Reserve(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return p.rdb.SetNX(ctx, p.key(id), time.Now().Unix(), ttl).Result()
}

func (p *RedisPresence) Exists(ctx context.Context, id string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *RedisPresence) Refresh(ctx context.Context, id string, ttl time.Duration) error {
	return p.rdb.Expire(ctx, p.key(id), ttl).Err()
}

func (p *RedisPresence) Release(ctx context.Context, id string) error {
	return p.rdb.Del(ctx, p.key(id)).Err()
}
