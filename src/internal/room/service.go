package room

import (
	"context"
	"errors"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/ranking"
	"studyhall-session-svc/src/internal/settlement"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TerminationScheduler schedules the deferred end-of-room dispatch.
// Satisfied by scheduler.Scheduler.
type TerminationScheduler interface {
	ScheduleTermination(ctx context.Context, room *models.Room) (string, error)
}

// EndNotifier fans the room-ended event out to members. Satisfied by
// clients.Notifier.
type EndNotifier interface {
	PublishRoomEnded(room *models.Room, source string, endedAt time.Time) error
}

type Service interface {
	CreateRoom(ctx context.Context, hostID, tag string, plannedMinutes int) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	JoinRoom(ctx context.Context, roomID, userID string) error
	EndForced(ctx context.Context, roomID, actorID string) (bool, error)
	EndScheduled(ctx context.Context, roomID, token string) (bool, error)
	EndExternal(ctx context.Context, roomID, token string) (bool, error)
}

type roomService struct {
	repo       Repository
	scheduler  TerminationScheduler
	settlement settlement.Service
	ranking    ranking.Service
	notifier   EndNotifier
	cfg        *config.RoomsConfig
}

func NewRoomService(
	repo Repository,
	sched TerminationScheduler,
	settlementService settlement.Service,
	rankingService ranking.Service,
	notifier EndNotifier,
	cfg *config.Configuration,
) Service {
	return &roomService{
		repo:       repo,
		scheduler:  sched,
		settlement: settlementService,
		ranking:    rankingService,
		notifier:   notifier,
		cfg:        &cfg.Rooms,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, hostID, tag string, plannedMinutes int) (*models.Room, error) {
	if plannedMinutes < s.cfg.MinPlannedMinutes || plannedMinutes > s.cfg.MaxPlannedMinutes {
		return nil, models.ErrInvalidDuration
	}

	now := time.Now()
	room := &models.Room{
		ID:                uuid.NewString(),
		HostID:            hostID,
		Tag:               tag,
		Members:           []string{hostID},
		PlannedMinutes:    plannedMinutes,
		Status:            models.RoomStatusActive,
		CreatedAt:         now,
		StartedAt:         &now,
		TerminationSecret: uuid.NewString(),
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	handle, err := s.scheduler.ScheduleTermination(ctx, room)
	if err != nil && !errors.Is(err, models.ErrAlreadyScheduled) && !errors.Is(err, models.ErrScheduleSkipped) {
		// The room still works without the deferred task: the host can
		// force-end it and the external callback remains available.
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to schedule room termination")
	}
	if handle != "" {
		room.ScheduledTerminationHandle = &handle
	}

	logrus.WithFields(logrus.Fields{
		"room_id":         room.ID,
		"host_id":         hostID,
		"planned_minutes": plannedMinutes,
	}).Info("Room created")

	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.repo.GetByID(ctx, roomID)
}

func (s *roomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsEnded() {
		return models.ErrRoomAlreadyEnded
	}
	if len(room.Members) >= s.cfg.MaxMembers && !room.HasMember(userID) {
		return models.ErrRoomFull
	}

	if err := s.repo.AddMember(ctx, roomID, userID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
	}).Info("Member joined room")

	return nil
}

// EndForced is the host pressing "end". Stamps forced_end_at.
func (s *roomService) EndForced(ctx context.Context, roomID, actorID string) (bool, error) {
	return s.endRoom(ctx, roomID, models.SourceForced, func(room *models.Room) error {
		if room.HostID != actorID {
			return models.ErrNotRoomHost
		}
		return nil
	})
}

// EndScheduled is the deferred task firing.
func (s *roomService) EndScheduled(ctx context.Context, roomID, token string) (bool, error) {
	return s.endRoom(ctx, roomID, models.SourceScheduled, validateToken(token))
}

// EndExternal is a settlement request arriving over the HTTP callback.
func (s *roomService) EndExternal(ctx context.Context, roomID, token string) (bool, error) {
	return s.endRoom(ctx, roomID, models.SourceExternal, validateToken(token))
}

func validateToken(token string) func(*models.Room) error {
	return func(room *models.Room) error {
		if token == "" || token != room.TerminationSecret {
			return models.ErrInvalidTaskToken
		}
		return nil
	}
}

// endRoom is the termination gate. All trigger paths funnel through here:
// validate the caller, flip status exactly once, then settle and notify.
// Settlement runs even when the gate reports alreadyEnded so a retried
// trigger can heal a previously interrupted fan-out; the ledger keys make
// that harmless for members who were already credited.
func (s *roomService) endRoom(ctx context.Context, roomID, source string, validate func(*models.Room) error) (bool, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return false, err
	}

	if err := validate(room); err != nil {
		return false, err
	}

	now := time.Now()
	forced := source == models.SourceForced

	ended, alreadyEnded, err := s.repo.MarkEnded(ctx, roomID, forced, now)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"source":  source,
		}).Error("Termination not confirmed")
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":       roomID,
		"source":        source,
		"already_ended": alreadyEnded,
	}).Info("Room termination confirmed")

	if len(ended.Members) == 0 {
		logrus.WithField("room_id", roomID).Warn("Ended room has no members, nothing to settle")
		return alreadyEnded, nil
	}

	// Freeze the ranking over the effective window before fanning out, so
	// rank bonuses are identical across retries.
	entries, err := s.ranking.BuildRanking(ctx, ended.ID, ended.EffectiveStart(), ended.EffectiveEnd())
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to build settlement ranking")
		return alreadyEnded, err
	}

	results := s.settlement.SettleAll(ctx, ended, entries)

	credited, failed := 0, 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		} else if result.Credited {
			credited++
		}
	}

	logrus.WithFields(logrus.Fields{
		"room_id":  roomID,
		"credited": credited,
		"skipped":  len(results) - credited - failed,
		"failed":   failed,
	}).Info("Settlement fan-out finished")

	if !alreadyEnded {
		if err := s.notifier.PublishRoomEnded(ended, source, ended.EffectiveEnd()); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to publish room ended notification")
		}
	}

	return alreadyEnded, nil
}
