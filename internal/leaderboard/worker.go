package leaderboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SnapshotRepository persists and reads back leaderboard snapshots.
type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, metric string, generatedAt time.Time, entries []byte, sourceHash string) error
	LatestSnapshot(ctx context.Context, metric string) ([]byte, error)
}

type pgExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresSnapshots stores snapshots in the leaderboard_snapshots table.
type PostgresSnapshots struct {
	db pgExecutor
}

// NewPostgresSnapshots wraps a pgx pool.
func NewPostgresSnapshots(db pgExecutor) *PostgresSnapshots {
	return &PostgresSnapshots{db: db}
}

func (p *PostgresSnapshots) InsertSnapshot(ctx context.Context, metric string, generatedAt time.Time, entries []byte, sourceHash string) error {
	_, err := p.db.Exec(ctx, `
INSERT INTO leaderboard_snapshots (metric, generated_at, entries, source_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (metric, source_hash) DO NOTHING`,
		metric, generatedAt, entries, sourceHash)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns nil when no snapshot exists for the metric.
func (p *PostgresSnapshots) LatestSnapshot(ctx context.Context, metric string) ([]byte, error) {
	var entries []byte
	err := p.db.QueryRow(ctx, `
SELECT entries FROM leaderboard_snapshots
WHERE metric = $1
ORDER BY generated_at DESC
LIMIT 1`, metric).Scan(&entries)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return entries, nil
}

// SnapshotWorker periodically persists Redis leaderboards into Postgres.
type SnapshotWorker struct {
	svc      *Service
	repo     SnapshotRepository
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSnapshotWorker(svc *Service, repo SnapshotRepository, interval time.Duration, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SnapshotWorker{
		svc:      svc,
		repo:     repo,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.repo == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	for _, metric := range metrics {
		if err := w.snapshotMetric(ctx, metric); err != nil {
			w.logger.Warn().Err(err).Str("metric", metric).Msg("snapshot failed")
		}
	}
}

func (w *SnapshotWorker) snapshotMetric(ctx context.Context, metric string) error {
	entries, err := w.svc.SnapshotTop(ctx, metric)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	sourceHash := sha256.Sum256(data)
	now := w.now().UTC()

	if err := w.repo.InsertSnapshot(ctx, metric, now, data, hex.EncodeToString(sourceHash[:])); err != nil {
		return err
	}

	w.logger.Info().
		Str("metric", metric).
		Int("entries", len(entries)).
		Time("generated_at", now).
		Msg("leaderboard snapshot persisted")

	return nil
}
