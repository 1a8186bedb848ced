package models

import "time"

// TerminationTask is the payload of a deferred "end this room" dispatch.
// The token must match the room's stored termination secret because the
// dispatch channel is not inherently authenticated.
type TerminationTask struct {
	RoomID      string    `json:"room_id"`
	Token       string    `json:"token"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// RoomEndedMessage is published after termination to notify members.
// Delivery is fire-and-forget.
type RoomEndedMessage struct {
	RoomID    string    `json:"room_id"`
	HostID    string    `json:"host_id"`
	Members   []string  `json:"members"`
	Source    string    `json:"source"`
	EndedAt   time.Time `json:"ended_at"`
	Timestamp time.Time `json:"timestamp"`
}
