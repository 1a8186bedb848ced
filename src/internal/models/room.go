package models

import "time"

// Room status constants
const (
	RoomStatusActive = "active"
	RoomStatusEnded  = "ended"
)

// Termination trigger sources
const (
	SourceForced    = "forced"
	SourceScheduled = "scheduled"
	SourceExternal  = "external"
)

type Room struct {
	ID                         string     `json:"id" bson:"_id"`
	HostID                     string     `json:"hostId" bson:"host_id"`
	Tag                        string     `json:"tag,omitempty" bson:"tag,omitempty"`
	Members                    []string   `json:"members" bson:"members"`
	PlannedMinutes             int        `json:"plannedMinutes" bson:"planned_minutes"`
	Status                     string     `json:"status" bson:"status"`
	CreatedAt                  time.Time  `json:"createdAt" bson:"created_at"`
	StartedAt                  *time.Time `json:"startedAt,omitempty" bson:"started_at,omitempty"`
	ForcedEndAt                *time.Time `json:"forcedEndAt,omitempty" bson:"forced_end_at,omitempty"`
	ScheduledTerminationHandle *string    `json:"-" bson:"scheduled_termination_handle,omitempty"`
	TerminationSecret          string     `json:"-" bson:"termination_secret"`
}

// EffectiveStart returns the start of the billing window. StartedAt
// defaults to CreatedAt when the room was never explicitly started.
func (r *Room) EffectiveStart() time.Time {
	if r.StartedAt != nil {
		return *r.StartedAt
	}
	return r.CreatedAt
}

// PlannedEndAt is EffectiveStart + PlannedMinutes.
func (r *Room) PlannedEndAt() time.Time {
	return r.EffectiveStart().Add(time.Duration(r.PlannedMinutes) * time.Minute)
}

// EffectiveEnd is the earlier of ForcedEndAt and PlannedEndAt when the
// room was force-ended, otherwise PlannedEndAt.
func (r *Room) EffectiveEnd() time.Time {
	planned := r.PlannedEndAt()
	if r.ForcedEndAt != nil && r.ForcedEndAt.Before(planned) {
		return *r.ForcedEndAt
	}
	return planned
}

// EffectiveMinutes is the billable duration clamped to [0, PlannedMinutes].
// A forced end stamped before the start time degenerates to 0.
func (r *Room) EffectiveMinutes() int {
	minutes := int(r.EffectiveEnd().Sub(r.EffectiveStart()) / time.Minute)
	if minutes < 0 {
		return 0
	}
	if minutes > r.PlannedMinutes {
		return r.PlannedMinutes
	}
	return minutes
}

// IsEnded checks if the room has been terminated.
func (r *Room) IsEnded() bool {
	return r.Status == RoomStatusEnded
}

func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}
