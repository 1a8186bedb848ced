package models

import "time"

// Stay open/close reason constants (diagnostic only)
const (
	StayReasonFocus      = "focus"
	StayReasonBlur       = "blur"
	StayReasonForeground = "foreground"
	StayReasonBackground = "background"
)

// Stay is one contiguous presence interval of a user inside a room.
// Records are append-only: a stay is closed by setting end_at, never deleted.
type Stay struct {
	ID        string     `json:"id" bson:"_id"`
	RoomID    string     `json:"roomId" bson:"room_id"`
	UserID    string     `json:"userId" bson:"user_id"`
	StartAt   time.Time  `json:"startAt" bson:"start_at"`
	EndAt     *time.Time `json:"endAt,omitempty" bson:"end_at,omitempty"`
	Reason    string     `json:"reason" bson:"reason"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
}

// IsOpen checks if the stay has not been closed yet.
func (s *Stay) IsOpen() bool {
	return s.EndAt == nil
}

// OverlapMs returns the overlap of the stay with [windowStart, windowEnd]
// in milliseconds. Open stays are clipped at "now" by the caller passing it
// as the stay end.
func (s *Stay) OverlapMs(windowStart, windowEnd, now time.Time) int64 {
	start := s.StartAt
	end := now
	if s.EndAt != nil {
		end = *s.EndAt
	}
	if start.Before(windowStart) {
		start = windowStart
	}
	if end.After(windowEnd) {
		end = windowEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Milliseconds()
}

func IsValidStayReason(reason string) bool {
	switch reason {
	case StayReasonFocus, StayReasonBlur, StayReasonForeground, StayReasonBackground:
		return true
	}
	return false
}
