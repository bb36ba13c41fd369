package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/brainbolt/internal/config"
	"github.com/gokatarajesh/brainbolt/internal/db"
	"github.com/gokatarajesh/brainbolt/internal/question"
	"github.com/gokatarajesh/brainbolt/internal/question/external"
)

var (
	envFile      string
	timeout      time.Duration
	importAmount int
	triviaAPIKey string
	flushCache   bool
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "migrator",
		Short:         "Manage the brainbolt database schema and question bank",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile == "" {
				return
			}
			if err := godotenv.Load(envFile); err != nil {
				log.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to load before reading PG_* variables")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the command")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withSQL(func(ctx context.Context, conn *sql.DB) error {
				if err := db.MigrateUp(ctx, conn); err != nil {
					return err
				}
				v, err := db.Version(ctx, conn)
				if err != nil {
					return err
				}
				log.Info().Int64("version", v).Msg("migrations applied successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withSQL(func(ctx context.Context, conn *sql.DB) error {
				if err := db.MigrateDown(ctx, conn); err != nil {
					return err
				}
				log.Info().Msg("migration rolled back successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print migration status",
			RunE:  withSQL(db.Status),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the built-in question bank",
			RunE:  withStore(seed),
		},
		importCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrator failed")
	}
}

func withSQL(fn func(ctx context.Context, conn *sql.DB) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		pg, err := config.LoadPostgres()
		if err != nil {
			return err
		}
		conn, err := db.Open(ctx, pg.DSN())
		if err != nil {
			return err
		}
		defer conn.Close()

		log.Info().
			Str("host", pg.Host).
			Int("port", pg.Port).
			Str("database", pg.Database).
			Msg("connected to database")
		return fn(ctx, conn)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import multiple-choice questions from public trivia banks",
		RunE: withStore(func(ctx context.Context, store *question.Store) error {
			imp := external.NewImporter(store, log.Logger,
				external.NewOpenTDBClient("", nil),
				external.NewTriviaAPIClient("", triviaAPIKey, nil),
			)
			if flushCache {
				client, err := redisClient()
				if err != nil {
					return err
				}
				defer client.Close()
				imp.WithPoolInvalidator(question.NewCachedCatalog(store, client, 0, log.Logger))
			}
			inserted, err := imp.Run(ctx, importAmount)
			if err != nil {
				return err
			}
			log.Info().Int("inserted", inserted).Msg("import finished")
			return nil
		}),
	}
	cmd.Flags().IntVar(&importAmount, "amount", 10, "questions to request per source and level")
	cmd.Flags().StringVar(&triviaAPIKey, "trivia-api-key", os.Getenv("TRIVIA_API_KEY"), "optional key for The Trivia API")
	cmd.Flags().BoolVar(&flushCache, "flush-cache", true, "drop cached question pools in Redis (REDIS_* variables) after importing")
	return cmd
}

func redisClient() (*redis.Client, error) {
	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, err
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

func withStore(fn func(ctx context.Context, store *question.Store) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		pg, err := config.LoadPostgres()
		if err != nil {
			return err
		}
		pool, err := pgxpool.New(ctx, pg.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, question.NewStore(pool))
	}
}

func seed(ctx context.Context, store *question.Store) error {
	inserted, err := store.Upsert(ctx, question.Seed())
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("inserted", inserted).Int("total", total).Msg("question bank seeded")
	return nil
}
