package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Second), mr
}

func TestTryAdmitOncePerWindow(t *testing.T) {
	limiter, mr := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Second)

	ok, err = limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAdmitIsPerUser(t *testing.T) {
	limiter, _ := setup(t)
	ctx := context.Background()

	ok, err := limiter.TryAdmit(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.TryAdmit(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAdmitConcurrent(t *testing.T) {
	limiter, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.TryAdmit(ctx, userID)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestRejectedAttemptDoesNotExtendWindow(t *testing.T) {
	limiter, mr := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	mr.FastForward(600 * time.Millisecond)

	ok, err := limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(400 * time.Millisecond)
	ok, err = limiter.TryAdmit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
}
