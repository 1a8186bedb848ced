package clients

import (
	"encoding/json"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Notifier publishes member-facing events to the message exchange.
// Downstream push delivery is an external collaborator; publishing is
// fire-and-forget and failures are logged only.
type Notifier struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewNotifier(cfg *config.Configuration, channel *amqp.Channel) *Notifier {
	return &Notifier{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

// PublishRoomEnded notifies members that their room has been terminated.
func (n *Notifier) PublishRoomEnded(room *models.Room, source string, endedAt time.Time) error {
	message := models.RoomEndedMessage{
		RoomID:    room.ID,
		HostID:    room.HostID,
		Members:   room.Members,
		Source:    source,
		EndedAt:   endedAt,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	err = n.channel.Publish(
		n.cfg.Exchange,
		n.cfg.NotificationKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to publish room ended message")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":     room.ID,
		"members":     len(room.Members),
		"source":      source,
		"exchange":    n.cfg.Exchange,
		"routing_key": n.cfg.NotificationKey,
	}).Debug("Room ended message published")

	return nil
}
