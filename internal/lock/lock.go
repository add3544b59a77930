// Package lock implements a named mutual-exclusion lease over Redis.
// A lease is a key holding a unique value with an auto-expiry TTL; the
// TTL bounds worst-case starvation when a holder crashes. Release is a
// compare-and-delete Lua script so a slow holder can never delete a
// lease it no longer owns.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a lease could not be acquired within
// the wait timeout. It identifies the contended key.
type ErrNotAcquired struct {
	Key string
}

func (e *ErrNotAcquired) Error() string {
	return fmt.Sprintf("lock: failed to acquire lease for key %q", e.Key)
}

// Options tune a single acquisition. Zero values fall back to the
// client defaults.
type Options struct {
	TTL           time.Duration // lease auto-expiry
	Wait          time.Duration // max time to keep retrying acquisition
	RetryInterval time.Duration // pause between acquisition attempts
}

// Locker is the contract the services program against. The Redis client
// below is the production implementation; tests substitute an
// in-process one.
type Locker interface {
	// WithLock acquires the lease for key, runs fn, and releases the
	// lease on every exit path. fn's error is returned unchanged.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// compare value, delete only if we still own the lease
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end
`)

// Client is the Redis-backed Locker.
type Client struct {
	rdb  *redis.Client
	opts Options
}

// New returns a Client with the given default options. Zero fields get
// the standard defaults: 5s TTL, 3s wait, 50ms retry interval.
func New(rdb *redis.Client, opts Options) *Client {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 3 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	return &Client{rdb: rdb, opts: opts}
}

// WithLock acquires the lease for key, runs fn and releases the lease
// afterwards, whether fn succeeded or not. Contended acquisitions are
// retried every RetryInterval until Wait elapses, then *ErrNotAcquired
// is returned.
func (c *Client) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return c.WithLockOpts(ctx, key, c.opts, fn)
}

// WithLockOpts is WithLock with per-call options for callers that need a
// longer lease or a shorter wait than the client defaults.
func (c *Client) WithLockOpts(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if opts.TTL <= 0 {
		opts.TTL = c.opts.TTL
	}
	if opts.Wait <= 0 {
		opts.Wait = c.opts.Wait
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = c.opts.RetryInterval
	}

	lockKey := "lock:" + key
	lockValue := uuid.NewString()

	if err := c.acquire(ctx, lockKey, lockValue, opts); err != nil {
		return err
	}
	defer c.release(lockKey, lockValue)

	return fn(ctx)
}

func (c *Client) acquire(ctx context.Context, lockKey, lockValue string, opts Options) error {
	deadline := time.Now().Add(opts.Wait)
	for {
		ok, err := c.rdb.SetNX(ctx, lockKey, lockValue, opts.TTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &ErrNotAcquired{Key: lockKey}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.RetryInterval):
		}
	}
}

// release uses a fresh context: the lease must be returned even when the
// caller's context has already been cancelled.
func (c *Client) release(lockKey, lockValue string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = unlockScript.Run(ctx, c.rdb, []string{lockKey}, lockValue).Err()
}
