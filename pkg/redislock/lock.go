package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another owner holds the lock
var ErrNotObtained = errors.New("redislock: lock not obtained")

// Lua script for owner-checked release
// KEYS[1] = lock key, ARGV[1] = owner token
const luaRelease = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseScript = redis.NewScript(luaRelease)

// Locker acquires short lived exclusive locks
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock; Release is safe to call once the TTL has passed
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Client implements Locker on Redis with SET NX PX and a compare-and-delete release
type Client struct {
	redis *redis.Client
	token func() string
}

// New creates a Redis backed locker
func New(client *redis.Client) *Client {
	return &Client{
		redis: client,
		token: uuid.NewString,
	}
}

// Obtain tries once to take the lock; it never blocks waiting for the owner
func (c *Client) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := c.token()
	ok, err := c.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotObtained
	}
	return &redisLock{client: c.redis, key: key, token: token}, nil
}

// PreloadScripts loads Lua scripts into Redis
func (c *Client) PreloadScripts(ctx context.Context) error {
	if c.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	if err := releaseScript.Load(ctx, c.redis).Err(); err != nil {
		return fmt.Errorf("failed to load lock release script: %w", err)
	}
	return nil
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Key() string { return l.key }

// Release deletes the key only if this lock still owns it
func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// Local is an in-process Locker for single instance deployments without Redis
type Local struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{until: make(map[string]time.Time), now: time.Now}
}

func (l *Local) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.until[key]; ok && now.Before(exp) {
		return nil, ErrNotObtained
	}
	l.until[key] = now.Add(ttl)
	return &localLock{owner: l, key: key}, nil
}

type localLock struct {
	owner *Local
	key   string
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Release(context.Context) error {
	l.owner.mu.Lock()
	delete(l.owner.until, l.key)
	l.owner.mu.Unlock()
	return nil
}
