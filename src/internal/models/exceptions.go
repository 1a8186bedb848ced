package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyEnded  = errors.New("room already ended")
	ErrRoomNotEnded      = errors.New("room not ended")
	ErrNotRoomHost       = errors.New("user is not the room host")
	ErrNotRoomMember     = errors.New("user is not a room member")
	ErrInvalidDuration   = errors.New("invalid planned duration")
	ErrNoMembers         = errors.New("room has no members")
	ErrRoomFull          = errors.New("room member limit reached")
	ErrInvalidStayReason = errors.New("invalid stay reason")
)

var (
	ErrAlreadyScheduled  = errors.New("termination already scheduled")
	ErrScheduleSkipped   = errors.New("scheduling precondition not met")
	ErrInvalidTaskToken  = errors.New("invalid termination token")
	ErrTerminationFailed = errors.New("termination not confirmed")
)

var (
	ErrDatabaseQuery   = errors.New("database query error")
	ErrDatabaseInsert  = errors.New("database insert error")
	ErrDatabaseUpdate  = errors.New("database update error")
	ErrDuplicateRecord = errors.New("duplicate record")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrSnapshotExists  = errors.New("ranking snapshot already saved")
)
