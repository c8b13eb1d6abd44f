package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// GuardKey names one (scene, object) bake slot.
type GuardKey struct {
	SceneID  string
	ObjectID string
}

// String renders the Redis key. The braces keep every key of one scene in
// the same cluster slot.
func (k GuardKey) String() string {
	return fmt.Sprintf("stage:bake:{%s}:%s", k.SceneID, k.ObjectID)
}

// BakeGuard marks scene objects as being baked. Acquire takes every key or
// none of them; a held key yields a BAKE_IN_PROGRESS error. The returned
// release func is idempotent.
type BakeGuard interface {
	Acquire(ctx context.Context, keys []GuardKey) (release func(), err error)
}

// MemoryGuard is a process-local BakeGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[GuardKey]struct{}
}

// NewMemoryGuard creates an empty in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[GuardKey]struct{})}
}

// Acquire implements BakeGuard
func (g *MemoryGuard) Acquire(ctx context.Context, keys []GuardKey) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Canceled(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, k := range keys {
		if _, ok := g.held[k]; ok {
			return nil, apperrors.BakeInProgress(k.SceneID, k.ObjectID)
		}
	}
	for _, k := range keys {
		g.held[k] = struct{}{}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for _, k := range keys {
				delete(g.held, k)
			}
		})
	}, nil
}

func (g *MemoryGuard) isHeld(k GuardKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[k]
	return ok
}

// acquireScript sets every key or none. It returns 0 on success, otherwise
// the 1-based index of the first key already held.
var acquireScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call("EXISTS", key) == 1 then
		return i
	end
end
for _, key in ipairs(KEYS) do
	redis.call("SET", key, ARGV[1], "PX", ARGV[2])
end
return 0
`)

// releaseScript deletes only keys still carrying the caller's token.
var releaseScript = redis.NewScript(`
local n = 0
for _, key in ipairs(KEYS) do
	if redis.call("GET", key) == ARGV[1] then
		n = n + redis.call("DEL", key)
	end
end
return n
`)

const releaseTimeout = 5 * time.Second

// RedisGuard shares bake slots between processes. Slots expire after ttl
// so a crashed holder cannot wedge a scene object forever.
type RedisGuard struct {
	client redis.Scripter
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGuard creates a guard backed by Redis
func NewRedisGuard(client redis.Scripter, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

// Acquire implements BakeGuard
func (g *RedisGuard) Acquire(ctx context.Context, keys []GuardKey) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Canceled(err)
	}
	if len(keys) == 0 {
		return func() {}, nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	token := uuid.NewString()

	idx, err := acquireScript.Run(ctx, g.client, names, token, g.ttl.Milliseconds()).Int()
	if err != nil {
		return nil, apperrors.Unavailable("bake guard").WithError(err)
	}
	if idx > 0 {
		k := keys[idx-1]
		return nil, apperrors.BakeInProgress(k.SceneID, k.ObjectID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The bake context may already be canceled.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, names, token).Err(); err != nil {
				g.logger.Warn("failed to release bake guard",
					zap.Strings("keys", names),
					zap.Error(err),
				)
			}
		})
	}, nil
}
