package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes entries to the answer_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Write(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO answer_log (id, user_id, question_id, difficulty_at_answer, answer_index,
                        correct, score_delta, streak_at_answer, answered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, e.QuestionID, e.DifficultyAtAnswer, e.AnswerIndex,
		e.Correct, e.ScoreDelta, e.StreakAtAnswer, e.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert answer log: %w", err)
	}
	return nil
}
