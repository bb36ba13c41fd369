package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Options tunes cache expiry and duplicate handling.
type Options struct {
	TTL          time.Duration // lifetime of a stored response
	InFlightTTL  time.Duration // lifetime of a reservation if its owner never finishes
	PollInterval time.Duration
}

// Cache maps (user, client key) to a serialized response.
type Cache struct {
	redis  *redis.Client
	opts   Options
	prefix string
}

// New creates a Redis-backed idempotency cache.
func New(client *redis.Client, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.InFlightTTL <= 0 {
		opts.InFlightTTL = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 25 * time.Millisecond
	}
	return &Cache{redis: client, opts: opts, prefix: "idempotency"}
}

// Lookup returns the stored response for the key, if any.
func (c *Cache) Lookup(ctx context.Context, userID uuid.UUID, key string) ([]byte, bool, error) {
	data, err := c.redis.Get(ctx, c.responseKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return data, true, nil
}

// Store saves the response and drops the reservation.
func (c *Cache) Store(ctx context.Context, userID uuid.UUID, key string, response []byte) error {
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.responseKey(userID, key), response, c.opts.TTL)
	pipe.Del(ctx, c.lockKey(userID, key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}

// Reserve claims the key for processing. Only one caller gets true until the
// reservation is released, stored over, or expires.
func (c *Cache) Reserve(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	ok, err := c.redis.SetNX(ctx, c.lockKey(userID, key), "1", c.opts.InFlightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency reserve: %w", err)
	}
	return ok, nil
}

// Release drops a reservation without storing a response, letting a retry reprocess.
func (c *Cache) Release(ctx context.Context, userID uuid.UUID, key string) error {
	if err := c.redis.Del(ctx, c.lockKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// Await polls for the response of a request another caller is processing. It
// stops when the response appears, the reservation disappears without one, or
// budget runs out.
func (c *Cache) Await(ctx context.Context, userID uuid.UUID, key string, budget time.Duration) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		data, ok, err := c.Lookup(ctx, userID, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, nil
			}
			return nil, false, err
		}
		if ok {
			return data, true, nil
		}

		held, err := c.redis.Exists(ctx, c.lockKey(userID, key)).Result()
		if err == nil && held == 0 {
			// Owner released without a response. Check once more in case Store raced the EXISTS.
			return c.Lookup(context.WithoutCancel(ctx), userID, key)
		}

		select {
		case <-ctx.Done():
			return nil, false, nil
		case <-ticker.C:
		}
	}
}

func (c *Cache) responseKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, userID.String(), key)
}

func (c *Cache) lockKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:inflight:%s:%s", c.prefix, userID.String(), key)
}
