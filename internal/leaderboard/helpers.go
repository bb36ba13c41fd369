package leaderboard

import ws "github.com/gokatarajesh/brainbolt/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:     e.Rank,
			UserID:   e.UserID.String(),
			Username: e.Username,
			Value:    e.Value,
		}
	}
	return result
}
