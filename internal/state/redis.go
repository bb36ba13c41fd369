package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps one hash per user and uses WATCH/MULTI/EXEC for compare-and-swap.
type RedisStore struct {
	redis             *redis.Client
	logger            zerolog.Logger
	defaultDifficulty int
	prefix            string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a state store backed by Redis hashes.
func NewRedisStore(client *redis.Client, defaultDifficulty int, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redis:             client,
		logger:            logger.With().Str("component", "state_store").Logger(),
		defaultDifficulty: defaultDifficulty,
		prefix:            "user:state",
	}
}

func (s *RedisStore) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID.String())
}

// Get returns the stored state or nil when absent.
func (s *RedisStore) Get(ctx context.Context, userID uuid.UUID) (*UserState, error) {
	data, err := s.redis.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeHash(userID, data)
}

// GetOrInit creates the default record under WATCH so two first requests cannot
// both write it.
func (s *RedisStore) GetOrInit(ctx context.Context, userID uuid.UUID) (*UserState, error) {
	if st, err := s.Get(ctx, userID); err != nil || st != nil {
		return st, err
	}

	key := s.key(userID)
	initial := New(userID, s.defaultDifficulty)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeHash(initial))
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("init state: %w", err)
	}
	if err == nil {
		s.logger.Debug().Str("user_id", userID.String()).Msg("state initialized")
	}

	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("init state: record missing after create")
	}
	return st, nil
}

// CompareAndUpdate applies mutate inside a WATCH transaction. EXEC aborts if any
// other client touched the key after WATCH, which surfaces as Applied=false.
func (s *RedisStore) CompareAndUpdate(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate Mutator) (UpdateResult, error) {
	key := s.key(userID)
	var result UpdateResult

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		current, err := decodeHash(userID, data)
		if err != nil {
			return err
		}
		if current.StateVersion != expectedVersion {
			return nil
		}

		next := apply(*current, mutate)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeHash(next))
			return nil
		})
		if err != nil {
			return err
		}
		result = UpdateResult{Applied: true, State: &next}
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		s.logger.Debug().
			Str("user_id", userID.String()).
			Int64("expected_version", expectedVersion).
			Msg("state transaction aborted by concurrent write")
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("compare and update: %w", err)
	}
	return result, nil
}

func encodeHash(st UserState) map[string]interface{} {
	return map[string]interface{}{
		"currentDifficulty": strconv.Itoa(st.CurrentDifficulty),
		"momentum":          strconv.FormatFloat(st.Momentum, 'f', -1, 64),
		"streak":            strconv.Itoa(st.Streak),
		"maxStreak":         strconv.Itoa(st.MaxStreak),
		"totalScore":        strconv.Itoa(st.TotalScore),
		"totalAnswers":      strconv.Itoa(st.TotalAnswers),
		"correctAnswers":    strconv.Itoa(st.CorrectAnswers),
		"lastQuestionId":    st.LastQuestionID,
		"stateVersion":      strconv.FormatInt(st.StateVersion, 10),
	}
}

func decodeHash(userID uuid.UUID, data map[string]string) (*UserState, error) {
	d := hashDecoder{data: data}
	st := &UserState{
		UserID:            userID,
		CurrentDifficulty: d.int("currentDifficulty"),
		Momentum:          d.float("momentum"),
		Streak:            d.int("streak"),
		MaxStreak:         d.int("maxStreak"),
		TotalScore:        d.int("totalScore"),
		TotalAnswers:      d.int("totalAnswers"),
		CorrectAnswers:    d.int("correctAnswers"),
		LastQuestionID:    data["lastQuestionId"],
		StateVersion:      d.int64("stateVersion"),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode state %s: %w", userID, d.err)
	}
	return st, nil
}

// hashDecoder parses hash fields and keeps the first error. Missing fields read as zero.
type hashDecoder struct {
	data map[string]string
	err  error
}

func (d *hashDecoder) int64(field string) int64 {
	raw := d.data[field]
	if raw == "" || d.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d.err = fmt.Errorf("field %s: %w", field, err)
	}
	return v
}

func (d *hashDecoder) int(field string) int {
	return int(d.int64(field))
}

func (d *hashDecoder) float(field string) float64 {
	raw := d.data[field]
	if raw == "" || d.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.err = fmt.Errorf("field %s: %w", field, err)
	}
	return v
}
