package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/brainbolt/internal/auth"
	"github.com/gokatarajesh/brainbolt/internal/config"
	"github.com/gokatarajesh/brainbolt/internal/leaderboard"
	"github.com/gokatarajesh/brainbolt/internal/quiz"
	httperrors "github.com/gokatarajesh/brainbolt/pkg/http/errors"
)

// Pinger checks one upstream dependency.
type Pinger func(ctx context.Context) error

// Handlers groups the route handlers the server exposes. Nil entries are
// left unrouted.
type Handlers struct {
	Auth              *auth.HTTPHandlers
	Quiz              *quiz.HTTPHandler
	Leaderboard       *leaderboard.HTTPHandler
	LeaderboardStream http.Handler
	TokenValidator    auth.TokenValidator
	Dependencies      map[string]Pinger
}

// NewHTTPServer wires every route behind logging and CORS middleware.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, logger, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the handler tree without binding a listener.
func NewRouter(cfg *config.App, logger zerolog.Logger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httperrors.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, ping := range h.Dependencies {
			if err := ping(ctx); err != nil {
				logger.Error().Err(err).Str("dependency", name).Msg("dependency ping failed")
				httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeServiceUnavailable, "upstream error")
				return
			}
		}
		httperrors.RespondJSON(w, http.StatusOK, map[string]bool{"pong": true})
	})

	if h.Auth != nil {
		mux.HandleFunc("/v1/auth/register", h.Auth.Register)
		mux.HandleFunc("/v1/auth/login", h.Auth.Login)
	}

	protect := func(next http.HandlerFunc) http.Handler {
		return auth.AuthMiddleware(h.TokenValidator, logger)(auth.RequireAuth(next))
	}

	if h.Quiz != nil && h.TokenValidator != nil {
		mux.Handle("/v1/quiz/next", protect(h.Quiz.HandleNext))
		mux.Handle("/v1/quiz/answer", protect(h.Quiz.HandleAnswer))
		mux.Handle("/v1/quiz/metrics", protect(h.Quiz.HandleMetrics))
	}

	if h.Leaderboard != nil && h.TokenValidator != nil {
		mux.Handle("/v1/leaderboard/", protect(h.Leaderboard.HandleGet))
	}

	if h.LeaderboardStream != nil {
		mux.Handle("/ws/leaderboard", h.LeaderboardStream)
	}

	return requestLogger(logger)(cors(cfg.CORS)(mux))
}
