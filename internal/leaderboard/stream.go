package leaderboard

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/brainbolt/internal/auth"
	httperrors "github.com/gokatarajesh/brainbolt/pkg/http/errors"
	ws "github.com/gokatarajesh/brainbolt/pkg/http/ws"
)

// StreamHandler upgrades authenticated requests to a leaderboard push stream.
type StreamHandler struct {
	svc       *Service
	hub       *ws.Hub
	validator auth.TokenValidator
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// NewStreamHandler creates the /ws/leaderboard handler. An empty origin list
// accepts any origin.
func NewStreamHandler(svc *Service, hub *ws.Hub, validator auth.TokenValidator, allowedOrigins []string, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		svc:       svc,
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger: logger.With().Str("component", "leaderboard_stream").Logger(),
	}
}

// ServeHTTP handles GET /ws/leaderboard?token=<jwt>. Browsers cannot set
// headers on WebSocket requests, so the token rides in the query string.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or expired token")
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := ws.NewConnection(raw, claims.UserID, h.logger)
	id := h.hub.Register(conn)
	go conn.WritePump()

	// Initial view so clients do not wait for the first tick.
	if payload, err := h.svc.Boards(r.Context()); err == nil {
		if msg, err := ws.NewMessage(ws.TypeLeaderboardUpdate, payload); err == nil {
			_ = conn.Send(msg)
		}
	}

	conn.ReadPump(func(msg ws.Message) error {
		if msg.Type != ws.TypePing {
			return nil
		}
		pong, err := ws.NewMessage(ws.TypePong, struct{}{})
		if err != nil {
			return err
		}
		pong.RequestID = msg.RequestID
		return conn.Send(pong)
	})
	h.hub.Unregister(id)
}
