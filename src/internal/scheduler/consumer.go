package scheduler

import (
	"context"
	"encoding/json"
	"errors"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Terminator is the gate the scheduled-fire path funnels through.
// Satisfied by room.Service.
type Terminator interface {
	EndScheduled(ctx context.Context, roomID, token string) (bool, error)
}

// Consumer drains the termination queue. Delivery is at-least-once; the
// gate's idempotency makes redeliveries and late firings safe no-ops.
type Consumer struct {
	channel    *amqp.Channel
	terminator Terminator
	cfg        *config.RabbitMQConfig
}

func NewConsumer(channel *amqp.Channel, terminator Terminator, cfg *config.Configuration) *Consumer {
	return &Consumer{
		channel:    channel,
		terminator: terminator,
		cfg:        &cfg.Queue.RabbitMQ,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.cfg.TerminationQueue,
		c.cfg.Consumer,
		c.cfg.AutoAck,
		c.cfg.Exclusive,
		false, // no-local
		c.cfg.NoWait,
		nil,
	)
	if err != nil {
		logrus.WithError(err).Error("Failed to start termination consumer")
		return err
	}

	go c.loop(ctx, deliveries)

	logrus.WithField("queue", c.cfg.TerminationQueue).Info("Termination consumer started")
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Termination consumer stopping")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				logrus.Warn("Termination delivery channel closed")
				return
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var task models.TerminationTask
	if err := json.Unmarshal(delivery.Body, &task); err != nil {
		logrus.WithError(err).Error("Failed to decode termination task, dropping")
		delivery.Nack(false, false)
		return
	}

	logrus.WithFields(logrus.Fields{
		"room_id":    task.RoomID,
		"message_id": delivery.MessageId,
	}).Info("Termination task fired")

	alreadyEnded, err := c.terminator.EndScheduled(ctx, task.RoomID, task.Token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTaskToken):
			logrus.WithField("room_id", task.RoomID).Warn("Termination task with invalid token, dropping")
			delivery.Nack(false, false)
		case errors.Is(err, models.ErrRoomNotFound):
			logrus.WithField("room_id", task.RoomID).Warn("Termination task for unknown room, dropping")
			delivery.Nack(false, false)
		default:
			logrus.WithError(err).WithField("room_id", task.RoomID).Error("Termination task failed, requeueing")
			delivery.Nack(false, true)
		}
		return
	}

	if alreadyEnded {
		logrus.WithField("room_id", task.RoomID).Debug("Room already ended when task fired")
	}

	delivery.Ack(false)
}
