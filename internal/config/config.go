package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported state store backends.
const (
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"brainbolt"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:3001"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	State       State
	Adaptive    Adaptive
	Scoring     Scoring
	RateLimit   RateLimit
	Idempotency Idempotency
	Leaderboard Leaderboard
	Audit       Audit
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool `env:"PG_AUTO_MIGRATE" envDefault:"false"`
}

// DSN renders a libpq style connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache, ranking and state store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// State selects where per-user quiz state lives.
type State struct {
	Backend string `env:"STATE_BACKEND" envDefault:"redis"`
}

// Adaptive tunes the momentum/hysteresis difficulty engine.
type Adaptive struct {
	MinDifficulty     int     `env:"ADAPTIVE_MIN_DIFFICULTY" envDefault:"1"`
	MaxDifficulty     int     `env:"ADAPTIVE_MAX_DIFFICULTY" envDefault:"10"`
	DefaultDifficulty int     `env:"ADAPTIVE_DEFAULT_DIFFICULTY" envDefault:"5"`
	CorrectGain       float64 `env:"ADAPTIVE_CORRECT_GAIN" envDefault:"0.3"`
	WrongPenalty      float64 `env:"ADAPTIVE_WRONG_PENALTY" envDefault:"-0.4"`
	Decay             float64 `env:"ADAPTIVE_DECAY" envDefault:"0.9"`
	Threshold         float64 `env:"ADAPTIVE_THRESHOLD" envDefault:"0.7"`
}

// Scoring groups the score formula constants.
type Scoring struct {
	BaseMultiplier      int     `env:"SCORING_BASE_MULTIPLIER" envDefault:"10"`
	StreakRate          float64 `env:"SCORING_STREAK_RATE" envDefault:"0.1"`
	MaxStreakMultiplier float64 `env:"SCORING_MAX_STREAK_MULTIPLIER" envDefault:"3.0"`
}

// RateLimit bounds answer submissions per user.
type RateLimit struct {
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`
}

// Idempotency governs replay caching of answer responses.
type Idempotency struct {
	TTL         time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"5m"`
	InFlightTTL time.Duration `env:"IDEMPOTENCY_INFLIGHT_TTL" envDefault:"10s"`
	WaitBudget  time.Duration `env:"IDEMPOTENCY_WAIT_BUDGET" envDefault:"2s"`
}

// Leaderboard governs ranking queries, streaming and snapshotting.
type Leaderboard struct {
	TopN             int           `env:"LEADERBOARD_TOP_N" envDefault:"10"`
	StreamTopN       int           `env:"LEADERBOARD_STREAM_TOP_N" envDefault:"5"`
	StreamInterval   time.Duration `env:"LEADERBOARD_STREAM_INTERVAL" envDefault:"2s"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
}

// Audit sizes the asynchronous answer log writer.
type Audit struct {
	BufferSize   int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	WriteTimeout time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"3s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgres parses only the database section, for tools that need no
// other dependency.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	return pg, nil
}

// LoadRedis parses only the Redis section.
func LoadRedis() (Redis, error) {
	var r Redis
	if err := env.ParseWithOptions(&r, env.Options{RequiredIfNoDef: true}); err != nil {
		return Redis{}, fmt.Errorf("parse redis config: %w", err)
	}
	return r, nil
}

func (c *App) validate() error {
	switch c.State.Backend {
	case StateBackendRedis, StateBackendPostgres:
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	a := c.Adaptive
	if a.MinDifficulty < 1 || a.MinDifficulty > a.MaxDifficulty {
		return fmt.Errorf("invalid difficulty range [%d,%d]", a.MinDifficulty, a.MaxDifficulty)
	}
	if a.DefaultDifficulty < a.MinDifficulty || a.DefaultDifficulty > a.MaxDifficulty {
		return fmt.Errorf("default difficulty %d outside [%d,%d]", a.DefaultDifficulty, a.MinDifficulty, a.MaxDifficulty)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	return nil
}
