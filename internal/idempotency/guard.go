// Package idempotency keeps at most one action in flight per transaction identity.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrInProgress is returned when any of the requested keys is already held.
var ErrInProgress = errors.New("action already in progress")

const redisKeyPrefix = "inflight"

// releaseScript deletes a key only while it still carries our token, so an
// expired lock re-acquired by another console is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard tracks in-flight identity keys in process and, when a Redis client is
// configured, across every console instance sharing it.
type Guard struct {
	mu    sync.Mutex
	local map[string]string
	redis redis.Cmdable
	ttl   time.Duration
}

// NewGuard creates a guard. redis may be nil for a process-local guard; ttl
// bounds how long a crashed holder can keep a Redis lock.
func NewGuard(redis redis.Cmdable, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Guard{local: make(map[string]string), redis: redis, ttl: ttl}
}

// Acquire claims every key or none. The returned release func is idempotent.
func (g *Guard) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = dedupe(keys)
	token := uuid.NewString()

	g.mu.Lock()
	for _, k := range keys {
		if _, held := g.local[k]; held {
			g.mu.Unlock()
			return nil, ErrInProgress
		}
	}
	for _, k := range keys {
		g.local[k] = token
	}
	g.mu.Unlock()

	remote, err := g.acquireRemote(ctx, keys, token)
	if err != nil {
		g.releaseLocal(keys, token)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.releaseRemote(remote, token)
			g.releaseLocal(keys, token)
		})
	}, nil
}

// Held reports whether key is currently claimed in this process.
func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.local[key]
	return ok
}

func (g *Guard) acquireRemote(ctx context.Context, keys []string, token string) ([]string, error) {
	if g.redis == nil {
		return nil, nil
	}
	acquired := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := g.redis.SetNX(ctx, redisKey(k), token, g.ttl).Result()
		if err != nil {
			// Redis being down degrades to the process-local guard.
			zap.L().Warn("redis in-flight lock failed", zap.String("key", k), zap.Error(err))
			continue
		}
		if !ok {
			g.releaseRemote(acquired, token)
			return nil, ErrInProgress
		}
		acquired = append(acquired, k)
	}
	return acquired, nil
}

func (g *Guard) releaseRemote(keys []string, token string) {
	if g.redis == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := releaseScript.Run(ctx, g.redis, []string{redisKey(k)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis in-flight release failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func (g *Guard) releaseLocal(keys []string, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		if g.local[k] == token {
			delete(g.local, k)
		}
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
