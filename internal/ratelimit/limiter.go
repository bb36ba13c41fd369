package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter admits at most one action per user per fixed window.
type Limiter struct {
	redis  *redis.Client
	window time.Duration
	prefix string
}

// New creates a limiter with the given window. Windows under one millisecond are
// raised to one second since Redis cannot expire them.
func New(client *redis.Client, window time.Duration) *Limiter {
	if window < time.Millisecond {
		window = time.Second
	}
	return &Limiter{redis: client, window: window, prefix: "ratelimit"}
}

// TryAdmit sets the user's marker if absent. It returns false, without touching
// the marker's TTL, when an action was already admitted in the current window.
func (l *Limiter) TryAdmit(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.key(userID), "1", l.window).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit admit: %w", err)
	}
	return ok, nil
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", l.prefix, userID.String())
}
