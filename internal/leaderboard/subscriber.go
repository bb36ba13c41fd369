package leaderboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/brainbolt/pkg/http/ws"
)

// Broadcaster forwards Pub/Sub leaderboard updates to stream clients and pushes
// a fresh view on a fixed interval while anyone is connected.
type Broadcaster struct {
	redis    *redis.Client
	svc      *Service
	hub      *ws.Hub
	interval time.Duration
	logger   zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered leaderboard broadcaster.
func NewBroadcaster(redis *redis.Client, svc *Service, hub *ws.Hub, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Broadcaster{
		redis:    redis,
		svc:      svc,
		hub:      hub,
		interval: interval,
		logger:   logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Run subscribes to the update channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil || b.svc == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.svc.Channel())
	defer sub.Close()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		case <-ticker.C:
			if b.hub.Count() == 0 {
				continue
			}
			b.pushCurrent(ctx)
		}
	}
}

func (b *Broadcaster) pushCurrent(ctx context.Context) {
	payload, err := b.svc.Boards(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to collect leaderboard boards")
		return
	}
	b.broadcast(payload)
}

func (b *Broadcaster) forward(payload string) {
	var evt ws.LeaderboardUpdatePayload
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode leaderboard update payload")
		return
	}
	b.broadcast(evt)
}

func (b *Broadcaster) broadcast(evt ws.LeaderboardUpdatePayload) {
	msg, err := ws.NewMessage(ws.TypeLeaderboardUpdate, evt)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal leaderboard WS payload")
		return
	}
	if err := b.hub.BroadcastAll(msg); err != nil {
		b.logger.Warn().Err(err).Msg("failed to broadcast leaderboard update")
	}
}
