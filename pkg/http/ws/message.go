package ws

import "encoding/json"

// MessageType constants for the leaderboard stream protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// LeaderboardUpdatePayload carries the top entries of one or both rankings.
type LeaderboardUpdatePayload struct {
	Score       []LeaderboardEntry `json:"score,omitempty"`
	Streak      []LeaderboardEntry `json:"streak,omitempty"`
	GeneratedAt string             `json:"generated_at"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Value    int    `json:"value"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}
