package ranking

import (
	"sort"
	"time"

	"studyhall-session-svc/src/internal/models"
)

// Aggregate merges stay intervals clipped to [windowStart, windowEnd] into
// per-user engaged totals and returns them ranked. Open stays are treated
// as ending at now, so a mid-session ranking is a lower-bound snapshot.
// Ordering is descending by engaged time with ties broken by ascending
// user id, so repeated calls over the same data are deterministic.
func Aggregate(stays []*models.Stay, windowStart, windowEnd, now time.Time) []models.RankingEntry {
	totals := make(map[string]int64)
	for _, stay := range stays {
		totals[stay.UserID] += stay.OverlapMs(windowStart, windowEnd, now)
	}

	entries := make([]models.RankingEntry, 0, len(totals))
	for userID, engaged := range totals {
		entries = append(entries, models.RankingEntry{UserID: userID, EngagedMs: engaged})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EngagedMs != entries[j].EngagedMs {
			return entries[i].EngagedMs > entries[j].EngagedMs
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}
