package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and writes the questions table.
type Store struct {
	pool *pgxpool.Pool
}

var _ Catalog = (*Store)(nil)

// NewStore creates a Postgres-backed catalog.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const questionColumns = `id, difficulty, prompt, choices, correct_index, category`

func (s *Store) AtDifficulty(ctx context.Context, d int) ([]Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE difficulty = $1 ORDER BY id`, d)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *Store) ByID(ctx context.Context, id string) (*Question, error) {
	q, err := scanQuestion(s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Count returns the number of stored questions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// Upsert inserts questions in one batch, skipping ids that already exist.
// It returns the number of rows inserted.
func (s *Store) Upsert(ctx context.Context, questions []Question) (int, error) {
	batch := &pgx.Batch{}
	for _, q := range questions {
		choices, err := json.Marshal(q.Choices)
		if err != nil {
			return 0, fmt.Errorf("encode choices for %s: %w", q.ID, err)
		}
		batch.Queue(`
INSERT INTO questions (id, difficulty, prompt, choices, correct_index, category)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`, q.ID, q.Difficulty, q.Prompt, choices, q.CorrectIndex, q.Category)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range questions {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert question: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func scanQuestion(row pgx.Row) (Question, error) {
	var (
		q       Question
		choices []byte
	)
	if err := row.Scan(&q.ID, &q.Difficulty, &q.Prompt, &choices, &q.CorrectIndex, &q.Category); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal(choices, &q.Choices); err != nil {
		return Question{}, fmt.Errorf("decode choices for %s: %w", q.ID, err)
	}
	return q, nil
}
