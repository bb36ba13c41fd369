package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/brainbolt/internal/auth"
	httperrors "github.com/gokatarajesh/brainbolt/pkg/http/errors"
)

// Response is the body of GET /v1/leaderboard/{metric}.
type Response struct {
	Leaderboard []Entry `json:"leaderboard"`
	CurrentUser *Entry  `json:"currentUser"`
	Source      string  `json:"source"`
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       *Service
	snapshots SnapshotRepository
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. snapshots may be nil.
func NewHTTPHandler(svc *Service, snapshots SnapshotRepository, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the top entries and the caller's own position.
// Route: GET /v1/leaderboard/{score|streak}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	metric := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/leaderboard/"), "/")
	if !ValidMetric(metric) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownMetric, "Unknown leaderboard metric")
		return
	}

	limit := h.svc.topN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	resp := Response{Source: "redis"}

	entries, err := h.svc.Top(ctx, metric, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("metric", metric).Msg("redis leaderboard fetch failed")
		entries = h.snapshotFallback(ctx, metric, limit)
		if entries == nil {
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to get leaderboard")
			return
		}
		resp.Source = "snapshot"
	}
	resp.Leaderboard = entries
	for i := range resp.Leaderboard {
		if resp.Leaderboard[i].Username == "" {
			resp.Leaderboard[i].Username = "Unknown"
		}
	}

	if resp.Source == "redis" {
		resp.CurrentUser = h.currentUser(ctx, metric, claims.UserID, claims.Username)
	}

	httperrors.RespondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) currentUser(ctx context.Context, metric string, userID uuid.UUID, username string) *Entry {
	rank, ranked, err := h.svc.RankOf(ctx, metric, userID)
	if err != nil || !ranked {
		if err != nil {
			h.logger.Warn().Err(err).Msg("rank lookup failed")
		}
		return nil
	}
	value, _, err := h.svc.ValueOf(ctx, metric, userID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("value lookup failed")
		return nil
	}
	return &Entry{Rank: rank, UserID: userID, Username: username, Value: value}
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, metric string, limit int) []Entry {
	if h.snapshots == nil {
		return nil
	}
	raw, err := h.snapshots.LatestSnapshot(ctx, metric)
	if err != nil || raw == nil {
		if err != nil {
			h.logger.Warn().Err(err).Str("metric", metric).Msg("snapshot fetch failed")
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
