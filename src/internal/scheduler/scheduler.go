package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// HandleStore guards against duplicate scheduling by atomically recording
// the task handle on the room document. Satisfied by room.Repository.
type HandleStore interface {
	ClaimTerminationHandle(ctx context.Context, roomID, handle string) (bool, error)
	ReleaseTerminationHandle(ctx context.Context, roomID, handle string) error
}

// Publisher is the slice of amqp.Channel the scheduler needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Scheduler publishes deferred termination tasks. A task is a message
// with a per-message TTL sitting in the delay queue; on expiry it
// dead-letters into the termination queue and fires.
type Scheduler struct {
	channel Publisher
	store   HandleStore
	cfg     *config.RabbitMQConfig
}

func NewScheduler(channel Publisher, store HandleStore, cfg *config.Configuration) *Scheduler {
	return &Scheduler{
		channel: channel,
		store:   store,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

// ScheduleTermination schedules exactly one future end-of-room dispatch.
// Scheduling is skipped when the room has no usable start time or
// duration (precondition, not a hard error) and aborts as a no-op when a
// handle already exists. The claim is taken before publishing and
// released if the publish fails.
func (s *Scheduler) ScheduleTermination(ctx context.Context, room *models.Room) (string, error) {
	if room.PlannedMinutes <= 0 || room.EffectiveStart().IsZero() {
		logrus.WithFields(logrus.Fields{
			"room_id":         room.ID,
			"planned_minutes": room.PlannedMinutes,
		}).Warn("Skipping termination scheduling, room has no valid start time or duration")
		return "", models.ErrScheduleSkipped
	}

	if room.ScheduledTerminationHandle != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": room.ID,
			"handle":  *room.ScheduledTerminationHandle,
		}).Debug("Termination already scheduled, skipping")
		return "", models.ErrAlreadyScheduled
	}

	handle := uuid.NewString()

	claimed, err := s.store.ClaimTerminationHandle(ctx, room.ID, handle)
	if err != nil {
		return "", err
	}
	if !claimed {
		logrus.WithField("room_id", room.ID).Debug("Lost termination scheduling race, skipping")
		return "", models.ErrAlreadyScheduled
	}

	task := models.TerminationTask{
		RoomID:      room.ID,
		Token:       room.TerminationSecret,
		ScheduledAt: room.PlannedEndAt(),
	}

	body, err := json.Marshal(task)
	if err != nil {
		s.releaseClaim(ctx, room.ID, handle)
		return "", err
	}

	delay := time.Until(room.PlannedEndAt())
	if delay < 0 {
		delay = 0
	}

	err = s.channel.Publish(
		"", // default exchange, straight to the delay queue
		s.cfg.DelayQueue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   handle,
			Body:        body,
			Expiration:  strconv.FormatInt(delay.Milliseconds(), 10),
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to publish termination task")
		s.releaseClaim(ctx, room.ID, handle)
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"handle":   handle,
		"fires_at": room.PlannedEndAt().Unix(),
		"delay_ms": delay.Milliseconds(),
	}).Info("Termination scheduled")

	return handle, nil
}

func (s *Scheduler) releaseClaim(ctx context.Context, roomID, handle string) {
	if err := s.store.ReleaseTerminationHandle(ctx, roomID, handle); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to release termination handle after publish failure")
	}
}
