package idempotency

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, Options{TTL: time.Minute, InFlightTTL: 5 * time.Second, PollInterval: 5 * time.Millisecond}), mr
}

func TestLookupMiss(t *testing.T) {
	cache, _ := setup(t)

	data, ok, err := cache.Lookup(context.Background(), uuid.New(), "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestStoreThenLookupReturnsSameBytes(t *testing.T) {
	cache, mr := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	payload := []byte(`{"correct":true,"scoreDelta":50}`)

	require.NoError(t, cache.Store(ctx, userID, "k1", payload))

	data, ok, err := cache.Lookup(ctx, userID, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, data)
	assert.True(t, mr.Exists("idempotency:"+userID.String()+":k1"))

	_, ok, err = cache.Lookup(ctx, uuid.New(), "k1")
	require.NoError(t, err)
	assert.False(t, ok, "keys are scoped per user")
}

func TestStoredResponseExpires(t *testing.T) {
	cache, mr := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, cache.Store(ctx, userID, "k1", []byte("x")))
	mr.FastForward(time.Minute)

	_, ok, err := cache.Lookup(ctx, userID, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveIsExclusiveUntilReleased(t *testing.T) {
	cache, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Release(ctx, userID, "k1"))

	ok, err = cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreClearsReservation(t *testing.T) {
	cache, mr := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)
	require.NoError(t, cache.Store(ctx, userID, "k1", []byte("x")))

	assert.False(t, mr.Exists("idempotency:inflight:"+userID.String()+":k1"))
}

func TestAwaitReturnsResponseStoredByOwner(t *testing.T) {
	cache, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = cache.Store(context.Background(), userID, "k1", []byte("done"))
	}()

	data, ok, err := cache.Await(ctx, userID, "k1", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("done"), data)
}

func TestAwaitStopsWhenOwnerReleases(t *testing.T) {
	cache, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)
	require.NoError(t, cache.Release(ctx, userID, "k1"))

	_, ok, err := cache.Await(ctx, userID, "k1", 2*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAwaitGivesUpAfterBudget(t *testing.T) {
	cache, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := cache.Reserve(ctx, userID, "k1")
	require.NoError(t, err)

	start := time.Now()
	_, ok, err := cache.Await(ctx, userID, "k1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}
