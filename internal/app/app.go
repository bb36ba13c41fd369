package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/brainbolt/internal/adaptive"
	"github.com/gokatarajesh/brainbolt/internal/audit"
	"github.com/gokatarajesh/brainbolt/internal/auth"
	"github.com/gokatarajesh/brainbolt/internal/auth/jwt"
	"github.com/gokatarajesh/brainbolt/internal/config"
	"github.com/gokatarajesh/brainbolt/internal/db"
	"github.com/gokatarajesh/brainbolt/internal/idempotency"
	"github.com/gokatarajesh/brainbolt/internal/leaderboard"
	"github.com/gokatarajesh/brainbolt/internal/logging"
	"github.com/gokatarajesh/brainbolt/internal/question"
	"github.com/gokatarajesh/brainbolt/internal/quiz"
	"github.com/gokatarajesh/brainbolt/internal/ratelimit"
	"github.com/gokatarajesh/brainbolt/internal/scoring"
	"github.com/gokatarajesh/brainbolt/internal/server"
	"github.com/gokatarajesh/brainbolt/internal/state"
	ws "github.com/gokatarajesh/brainbolt/pkg/http/ws"
)

// worker is a background loop that runs until its context is cancelled.
type worker struct {
	name string
	run  func(ctx context.Context) error
}

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	workers []worker
}

// New bootstraps configs, logger, Postgres, Redis and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("state_backend", cfg.State.Backend).Msg("starting application bootstrap")

	if cfg.Postgres.AutoMigrate {
		if err := migrate(ctx, cfg.Postgres.DSN()); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	adaptiveEngine, err := adaptive.NewEngine(adaptive.Config{
		MinDifficulty:     cfg.Adaptive.MinDifficulty,
		MaxDifficulty:     cfg.Adaptive.MaxDifficulty,
		DefaultDifficulty: cfg.Adaptive.DefaultDifficulty,
		CorrectGain:       cfg.Adaptive.CorrectGain,
		WrongPenalty:      cfg.Adaptive.WrongPenalty,
		Decay:             cfg.Adaptive.Decay,
		Threshold:         cfg.Adaptive.Threshold,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("adaptive config: %w", err)
	}
	scoringEngine := scoring.NewEngine(scoring.ScoringConfig{
		BaseMultiplier:      cfg.Scoring.BaseMultiplier,
		StreakRate:          cfg.Scoring.StreakRate,
		MaxStreakMultiplier: cfg.Scoring.MaxStreakMultiplier,
	})

	var states state.Store
	switch cfg.State.Backend {
	case config.StateBackendPostgres:
		states = state.NewPostgresStore(pool, cfg.Adaptive.DefaultDifficulty, logger)
	default:
		states = state.NewRedisStore(redisClient, cfg.Adaptive.DefaultDifficulty, logger)
	}

	questionStore := question.NewStore(pool)
	if err := seedQuestions(ctx, questionStore, logger); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}
	catalog := question.NewCachedCatalog(questionStore, redisClient, 0, logger)

	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:             cfg.Leaderboard.TopN,
		StreamTopN:       cfg.Leaderboard.StreamTopN,
		SnapshotTopLimit: cfg.Leaderboard.SnapshotTopN,
	})
	snapshots := leaderboard.NewPostgresSnapshots(pool)
	wsHub := ws.NewHub(logger)

	auditLog := audit.NewLog(audit.NewPostgresSink(pool), cfg.Audit.BufferSize, cfg.Audit.WriteTimeout, logger)

	tokenMgr := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	})
	authSvc := auth.NewService(auth.NewPostgresUserRepository(pool), tokenMgr, states, leaderboardSvc, logger)

	quizSvc := quiz.NewService(
		states,
		catalog,
		adaptiveEngine,
		scoringEngine,
		ratelimit.New(redisClient, cfg.RateLimit.Window),
		idempotency.New(redisClient, idempotency.Options{
			TTL:         cfg.Idempotency.TTL,
			InFlightTTL: cfg.Idempotency.InFlightTTL,
		}),
		leaderboardSvc,
		auditLog,
		quiz.ServiceOptions{
			DefaultDifficulty: cfg.Adaptive.DefaultDifficulty,
			WaitBudget:        cfg.Idempotency.WaitBudget,
		},
		logger,
	)

	apiServer := server.NewHTTPServer(cfg, logger, server.Handlers{
		Auth:              auth.NewHTTPHandlers(authSvc, logger),
		Quiz:              quiz.NewHTTPHandler(quizSvc, logger),
		Leaderboard:       leaderboard.NewHTTPHandler(leaderboardSvc, snapshots, logger),
		LeaderboardStream: leaderboard.NewStreamHandler(leaderboardSvc, wsHub, authSvc, cfg.CORS.AllowedOrigins, logger),
		TokenValidator:    authSvc,
		Dependencies: map[string]server.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	workers := []worker{
		{name: "audit_log", run: auditLog.Run},
		{name: "leaderboard_broadcaster", run: leaderboard.NewBroadcaster(redisClient, leaderboardSvc, wsHub, cfg.Leaderboard.StreamInterval, logger).Run},
	}
	if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
		workers = append(workers, worker{
			name: "leaderboard_snapshot",
			run:  leaderboard.NewSnapshotWorker(leaderboardSvc, snapshots, interval, logger).Run,
		})
	}

	return &Application{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		redis:   redisClient,
		http:    apiServer,
		workers: workers,
	}, nil
}

func migrate(ctx context.Context, dsn string) error {
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	return db.MigrateUp(ctx, conn)
}

// seedQuestions loads the built-in bank into an empty questions table.
func seedQuestions(ctx context.Context, store *question.Store, logger zerolog.Logger) error {
	n, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if n > 0 {
		return nil
	}
	inserted, err := store.Upsert(ctx, question.Seed())
	if err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	logger.Info().Int("inserted", inserted).Msg("question bank seeded")
	return nil
}

// Run serves HTTP and background workers until a signal arrives or one of
// them fails. HTTP stops first so the audit log drains every committed answer.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	g, gctx := errgroup.WithContext(workerCtx)
	for _, w := range a.workers {
		g.Go(func() error {
			err := w.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("worker", w.name).Msg("background worker stopped")
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-gctx.Done():
		runErr = errors.New("background worker failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	cancelWorkers()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}
