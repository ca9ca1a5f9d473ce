// Package claim serialises concurrent deliveries of the same callback. A
// claim is a short-lived exclusive lease on a transaction identifier; the
// holder processes the callback and releases it, and a crashed holder's lease
// simply expires.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another holder owns the lease.
var ErrHeld = errors.New("claim held by another holder")

// Release gives up a lease. It is safe to call after the lease expired. An
// error means the lease may still be held until its TTL runs out.
type Release func(ctx context.Context) error

// Claimer grants exclusive leases on keys.
type Claimer interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

const keyPrefix = "presale:claim:"

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimer leases keys with SET NX PX so every replica shares the lock.
type RedisClaimer struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{client: client, ttl: ttl}
}

func (c *RedisClaimer) Acquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key

	ok, err := c.client.SetNX(ctx, redisKey, token, c.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.client, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("release claim %s: %w", key, err)
		}
		return nil
	}, nil
}

// MemoryClaimer leases keys within one process.
type MemoryClaimer struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]lease
}

type lease struct {
	token   string
	expires time.Time
}

// MemoryOption configures a MemoryClaimer.
type MemoryOption func(*MemoryClaimer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryClaimer) { c.now = now }
}

func NewMemory(ttl time.Duration, opts ...MemoryOption) *MemoryClaimer {
	c := &MemoryClaimer{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]lease),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryClaimer) Acquire(_ context.Context, key string) (Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if l, ok := c.leases[key]; ok && now.Before(l.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	c.leases[key] = lease{token: token, expires: now.Add(c.ttl)}

	return func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if l, ok := c.leases[key]; ok && l.token == token {
			delete(c.leases, key)
		}
		return nil
	}, nil
}
