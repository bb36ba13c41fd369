package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/brainbolt/pkg/http/ws"
)

// Supported ranking metrics.
const (
	MetricScore  = "score"
	MetricStreak = "streak"
)

var metrics = []string{MetricScore, MetricStreak}

// ErrUnknownMetric is returned for metric names other than score and streak.
var ErrUnknownMetric = errors.New("unknown leaderboard metric")

// Entry represents a ranked user sent to clients.
type Entry struct {
	Rank     int       `json:"rank"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Value    int       `json:"value"`
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN             int
	StreamTopN       int
	PubSubChannel    string
	RedisKeyPrefix   string
	SnapshotTopLimit int
}

// Service keeps the score and streak rankings in Redis sorted sets and emits
// updates over Pub/Sub.
type Service struct {
	redis          *redis.Client
	logger         zerolog.Logger
	topN           int
	streamTopN     int
	pubsubChannel  string
	prefix         string
	snapshotTopLim int
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}
	streamTopN := opts.StreamTopN
	if streamTopN <= 0 {
		streamTopN = 5
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "leaderboard"
	}
	snapTop := opts.SnapshotTopLimit
	if snapTop <= 0 {
		snapTop = 50
	}

	return &Service{
		redis:          redis,
		logger:         logger.With().Str("component", "leaderboard").Logger(),
		topN:           topN,
		streamTopN:     streamTopN,
		pubsubChannel:  channel,
		prefix:         prefix,
		snapshotTopLim: snapTop,
	}
}

// ValidMetric reports whether metric names a ranking.
func ValidMetric(metric string) bool {
	return metric == MetricScore || metric == MetricStreak
}

// Upsert sets a user's value for one metric.
func (s *Service) Upsert(ctx context.Context, metric string, userID uuid.UUID, value int) error {
	if !ValidMetric(metric) {
		return ErrUnknownMetric
	}
	err := s.redis.ZAdd(ctx, s.leaderboardKey(metric), redis.Z{
		Score:  float64(value),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("upsert leaderboard %s: %w", metric, err)
	}
	return nil
}

// Record writes both rankings in one round trip.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, totalScore, maxStreak int) error {
	member := userID.String()
	pipe := s.redis.TxPipeline()
	pipe.ZAdd(ctx, s.leaderboardKey(MetricScore), redis.Z{Score: float64(totalScore), Member: member})
	pipe.ZAdd(ctx, s.leaderboardKey(MetricStreak), redis.Z{Score: float64(maxStreak), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record leaderboard: %w", err)
	}
	return nil
}

// RankOf returns the 1-based rank of the user, or ok=false if unranked.
func (s *Service) RankOf(ctx context.Context, metric string, userID uuid.UUID) (int, bool, error) {
	if !ValidMetric(metric) {
		return 0, false, ErrUnknownMetric
	}
	rank, err := s.redis.ZRevRank(ctx, s.leaderboardKey(metric), userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("rank leaderboard %s: %w", metric, err)
	}
	return int(rank) + 1, true, nil
}

// ValueOf returns the user's stored value for a metric.
func (s *Service) ValueOf(ctx context.Context, metric string, userID uuid.UUID) (int, bool, error) {
	if !ValidMetric(metric) {
		return 0, false, ErrUnknownMetric
	}
	v, err := s.redis.ZScore(ctx, s.leaderboardKey(metric), userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("score leaderboard %s: %w", metric, err)
	}
	return int(v), true, nil
}

// Top retrieves the top entries for a metric in descending order.
func (s *Service) Top(ctx context.Context, metric string, limit int) ([]Entry, error) {
	if !ValidMetric(metric) {
		return nil, ErrUnknownMetric
	}
	if limit <= 0 {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(metric), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			s.logger.Warn().Err(err).Str("member", member).Msg("skipping malformed leaderboard member")
			continue
		}
		ids = append(ids, id)
		entries = append(entries, Entry{Rank: i + 1, UserID: id, Value: int(z.Score)})
	}

	names, err := s.Usernames(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read leaderboard usernames")
		return entries, nil
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return entries, nil
}

// SnapshotTop returns the configured snapshot size for persistence jobs.
func (s *Service) SnapshotTop(ctx context.Context, metric string) ([]Entry, error) {
	return s.Top(ctx, metric, s.snapshotTopLim)
}

// SetUsername stores the display name shown on the boards.
func (s *Service) SetUsername(ctx context.Context, userID uuid.UUID, username string) error {
	if err := s.redis.Set(ctx, s.usernameKey(userID), username, 0).Err(); err != nil {
		return fmt.Errorf("set username: %w", err)
	}
	return nil
}

// Usernames resolves display names for the given users; unknown users map to "".
func (s *Service) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.usernameKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get usernames: %w", err)
	}
	for i, v := range values {
		if name, ok := v.(string); ok {
			names[ids[i]] = name
		}
	}
	return names, nil
}

// InitUser places a new user on both boards with zero values.
func (s *Service) InitUser(ctx context.Context, userID uuid.UUID, username string) error {
	if err := s.SetUsername(ctx, userID, username); err != nil {
		return err
	}
	return s.Record(ctx, userID, 0, 0)
}

// Boards builds the stream payload for the top entries of both metrics.
func (s *Service) Boards(ctx context.Context) (ws.LeaderboardUpdatePayload, error) {
	payload := ws.LeaderboardUpdatePayload{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, metric := range metrics {
		entries, err := s.Top(ctx, metric, s.streamTopN)
		if err != nil {
			return payload, err
		}
		if metric == MetricScore {
			payload.Score = toWSEntries(entries)
		} else {
			payload.Streak = toWSEntries(entries)
		}
	}
	return payload, nil
}

// Publish announces the current boards to every subscriber of the update channel.
func (s *Service) Publish(ctx context.Context) error {
	payload, err := s.Boards(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal leaderboard update: %w", err)
	}
	if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
		return fmt.Errorf("publish leaderboard update: %w", err)
	}
	return nil
}

// Channel returns the Pub/Sub channel updates are published on.
func (s *Service) Channel() string {
	return s.pubsubChannel
}

func (s *Service) leaderboardKey(metric string) string {
	return fmt.Sprintf("%s:%s", s.prefix, metric)
}

func (s *Service) usernameKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:username:%s", userID.String())
}
