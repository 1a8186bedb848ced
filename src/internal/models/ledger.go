package models

import (
	"fmt"
	"time"
)

// LedgerEntry is an immutable audit record of a single reward credit.
// The document id is the idempotency key, so the unique _id index is what
// guarantees at-most-one entry per (room, window, user).
type LedgerEntry struct {
	ID                 string    `json:"id" bson:"_id"`
	RoomID             string    `json:"roomId" bson:"room_id"`
	UserID             string    `json:"userId" bson:"user_id"`
	XPAwarded          int       `json:"xpAwarded" bson:"xp_awarded"`
	CoinsAwarded       int       `json:"coinsAwarded" bson:"coins_awarded"`
	MinutesCounted     int       `json:"minutesCounted" bson:"minutes_counted"`
	MultipliersApplied []string  `json:"multipliersApplied" bson:"multipliers_applied"`
	CreatedAt          time.Time `json:"createdAt" bson:"created_at"`
}

// LedgerKey builds the deterministic idempotency key for one settlement.
func LedgerKey(roomID string, windowStart, windowEnd time.Time, userID string) string {
	return fmt.Sprintf("%s:%d-%d:%s", roomID, windowStart.UnixMilli(), windowEnd.UnixMilli(), userID)
}

// Wallet holds a user's running reward totals. Mutated only inside the
// transaction that creates the matching ledger entry.
type Wallet struct {
	UserID       string    `json:"userId" bson:"_id"`
	XP           int       `json:"xp" bson:"xp"`
	Coins        int       `json:"coins" bson:"coins"`
	Level        int       `json:"level" bson:"level"`
	SessionCount int       `json:"sessionCount" bson:"session_count"`
	TotalMinutes int       `json:"totalMinutes" bson:"total_minutes"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}
