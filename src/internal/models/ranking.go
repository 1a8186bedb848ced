package models

import "time"

// RankingEntry is one row of the engaged-time leaderboard. Derived from
// stay intervals on demand; persisted only via an explicit snapshot.
type RankingEntry struct {
	UserID    string `json:"userId" bson:"user_id"`
	EngagedMs int64  `json:"engagedMs" bson:"engaged_ms"`
	Rank      int    `json:"rank" bson:"rank"`
}

// RankingSnapshot is a host-saved copy of the leaderboard. It is a cache
// for durability; the stay records remain the source of truth.
type RankingSnapshot struct {
	RoomID        string         `json:"roomId" bson:"_id"`
	Entries       []RankingEntry `json:"entries" bson:"entries"`
	WindowStartAt time.Time      `json:"windowStartAt" bson:"window_start_at"`
	WindowEndAt   time.Time      `json:"windowEndAt" bson:"window_end_at"`
	SavedBy       string         `json:"savedBy" bson:"saved_by"`
	CreatedAt     time.Time      `json:"createdAt" bson:"created_at"`
}

// RankPosition returns the 1-based position of userID in entries, or 0
// when the user is not ranked.
func RankPosition(entries []RankingEntry, userID string) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
