package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	block   chan struct{}
}

func (s *recordingSink) Write(_ context.Context, e Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestAppendIsWrittenByRun(t *testing.T) {
	sink := &recordingSink{}
	log := NewLog(sink, 8, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- log.Run(ctx) }()

	userID := uuid.New()
	require.True(t, log.Append(Entry{UserID: userID, QuestionID: "q1", Correct: true, ScoreDelta: 50}))

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	got := sink.entries[0]
	assert.Equal(t, userID, got.UserID)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.AnsweredAt.IsZero())
}

func TestAppendDropsWhenFull(t *testing.T) {
	log := NewLog(&recordingSink{}, 1, time.Second, zerolog.Nop())

	assert.True(t, log.Append(Entry{UserID: uuid.New()}))
	assert.False(t, log.Append(Entry{UserID: uuid.New()}))
}

func TestRunDrainsOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	log := NewLog(sink, 8, time.Second, zerolog.Nop())
	for i := 0; i < 3; i++ {
		require.True(t, log.Append(Entry{UserID: uuid.New()}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = log.Run(ctx)

	assert.Equal(t, 3, sink.count())
}

func TestSinkFailureDoesNotStopWorker(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	log := NewLog(sink, 8, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = log.Run(ctx) }()

	log.Append(Entry{UserID: uuid.New()})
	log.Append(Entry{UserID: uuid.New()})

	assert.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestAppendNeverBlocksOnSlowSink(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	log := NewLog(sink, 2, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = log.Run(ctx) }()

	start := time.Now()
	for i := 0; i < 10; i++ {
		log.Append(Entry{UserID: uuid.New()})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sink.block)
	cancel()
}
