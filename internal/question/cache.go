package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 5 * time.Minute

// CachedCatalog fronts a slower catalog with Redis-cached difficulty pools.
// Concurrent misses for the same pool share one upstream load.
type CachedCatalog struct {
	next   Catalog
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

var _ Catalog = (*CachedCatalog)(nil)

func NewCachedCatalog(next Catalog, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedCatalog{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "question_cache").Logger(),
	}
}

func (c *CachedCatalog) poolKey(d int) string {
	return "questionpool:" + strconv.Itoa(d)
}

func (c *CachedCatalog) questionKey(id string) string {
	return "question:" + id
}

// AtDifficulty serves from Redis and falls through to the wrapped catalog on
// a miss or a Redis error.
func (c *CachedCatalog) AtDifficulty(ctx context.Context, d int) ([]Question, error) {
	var pool []Question
	if ok := c.get(ctx, c.poolKey(d), &pool); ok {
		return pool, nil
	}

	// Shared by every waiter, so one caller's cancellation must not fail the rest.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(c.poolKey(d), func() (interface{}, error) {
		loaded, err := c.next.AtDifficulty(loadCtx, d)
		if err != nil {
			return nil, err
		}
		c.set(loadCtx, c.poolKey(d), loaded)
		for _, q := range loaded {
			c.set(loadCtx, c.questionKey(q.ID), q)
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	loaded := v.([]Question)
	out := make([]Question, len(loaded))
	copy(out, loaded)
	return out, nil
}

func (c *CachedCatalog) ByID(ctx context.Context, id string) (*Question, error) {
	var q Question
	if ok := c.get(ctx, c.questionKey(id), &q); ok {
		return &q, nil
	}

	found, err := c.next.ByID(ctx, id)
	if err != nil || found == nil {
		return found, err
	}
	c.set(ctx, c.questionKey(id), *found)
	return found, nil
}

// Invalidate drops every cached pool, e.g. after reseeding.
func (c *CachedCatalog) Invalidate(ctx context.Context, minDifficulty, maxDifficulty int) error {
	keys := make([]string, 0, maxDifficulty-minDifficulty+1)
	for d := minDifficulty; d <= maxDifficulty; d++ {
		keys = append(keys, c.poolKey(d))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate question pools: %w", err)
	}
	return nil
}

func (c *CachedCatalog) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("question cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("question cache entry corrupt")
		return false
	}
	return true
}

func (c *CachedCatalog) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("question cache write failed")
	}
}
