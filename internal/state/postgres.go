package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// pgExecutor is the subset of pgxpool.Pool the store needs.
type pgExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore emulates compare-and-swap with a versioned row and a conditional
// UPDATE evaluated by the server.
type PostgresStore struct {
	db                pgExecutor
	logger            zerolog.Logger
	defaultDifficulty int
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a pgx pool (or transaction) as a state store.
func NewPostgresStore(db pgExecutor, defaultDifficulty int, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:                db,
		logger:            logger.With().Str("component", "state_store_pg").Logger(),
		defaultDifficulty: defaultDifficulty,
	}
}

const selectStateSQL = `
SELECT current_difficulty, momentum, streak, max_streak, total_score,
       total_answers, correct_answers, COALESCE(last_question_id, ''), state_version
FROM user_state WHERE user_id = $1`

const insertStateSQL = `
INSERT INTO user_state (user_id, current_difficulty) VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`

const casStateSQL = `
UPDATE user_state SET
    current_difficulty = $3,
    momentum = $4,
    streak = $5,
    max_streak = $6,
    total_score = $7,
    total_answers = $8,
    correct_answers = $9,
    last_question_id = NULLIF($10, ''),
    state_version = state_version + 1,
    updated_at = now()
WHERE user_id = $1 AND state_version = $2`

// Get returns the stored state or nil when absent.
func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*UserState, error) {
	st := UserState{UserID: userID}
	err := s.db.QueryRow(ctx, selectStateSQL, userID).Scan(
		&st.CurrentDifficulty,
		&st.Momentum,
		&st.Streak,
		&st.MaxStreak,
		&st.TotalScore,
		&st.TotalAnswers,
		&st.CorrectAnswers,
		&st.LastQuestionID,
		&st.StateVersion,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &st, nil
}

// GetOrInit inserts the default row if missing; concurrent inserts collapse on the primary key.
func (s *PostgresStore) GetOrInit(ctx context.Context, userID uuid.UUID) (*UserState, error) {
	if st, err := s.Get(ctx, userID); err != nil || st != nil {
		return st, err
	}
	if _, err := s.db.Exec(ctx, insertStateSQL, userID, s.defaultDifficulty); err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}
	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("init state: row missing after insert")
	}
	return st, nil
}

// CompareAndUpdate reads the row, applies mutate and writes it back only where
// state_version still equals expectedVersion.
func (s *PostgresStore) CompareAndUpdate(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate Mutator) (UpdateResult, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return UpdateResult{}, err
	}
	if current == nil || current.StateVersion != expectedVersion {
		return UpdateResult{}, nil
	}

	next := apply(*current, mutate)
	tag, err := s.db.Exec(ctx, casStateSQL,
		userID,
		expectedVersion,
		next.CurrentDifficulty,
		next.Momentum,
		next.Streak,
		next.MaxStreak,
		next.TotalScore,
		next.TotalAnswers,
		next.CorrectAnswers,
		next.LastQuestionID,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("compare and update: %w", err)
	}
	if tag.RowsAffected() != 1 {
		s.logger.Debug().
			Str("user_id", userID.String()).
			Int64("expected_version", expectedVersion).
			Msg("conditional update matched no row")
		return UpdateResult{}, nil
	}
	return UpdateResult{Applied: true, State: &next}, nil
}
