package clients

import (
	"fmt"

	"studyhall-session-svc/src/internal/config"

	"github.com/streadway/amqp"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	cfg     *config.QueueConfig
}

func NewRabbitMQ(cfg *config.QueueConfig) (*RabbitMQ, error) {
	log.WithField("url", "url:"+cfg.RabbitMQ.Url).Info("Connecting to RabbitMQ...")
	conn, err := amqp.Dial(cfg.RabbitMQ.Url)
	if err != nil {
		log.WithError(err).Errorf("Failed to connect to RabbitMQ: %v", err)
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		log.WithError(err).Errorf("Failed to open a channel: %v", err)
		return nil, err
	}

	log.Infof("Connected to RabbitMQ at %s", cfg.RabbitMQ.Url)

	return &RabbitMQ{
		Conn:    conn,
		Channel: channel,
		cfg:     cfg,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			log.WithError(err).Error("Failed to close RabbitMQ channel")
			return err
		}
		log.Info("RabbitMQ channel closed")
	}

	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			log.WithError(err).Error("Failed to close RabbitMQ connection")
			return err
		}
		log.Info("RabbitMQ connection closed")
	}

	return nil
}

// SetupTopology declares the exchange, the delay queue and the termination
// queue. Deferred terminations are published to the delay queue with a
// per-message TTL; expired messages dead-letter into the exchange with the
// termination routing key and land on the termination queue this service
// consumes.
func (r *RabbitMQ) SetupTopology() error {
	mq := r.cfg.RabbitMQ

	err := r.Channel.ExchangeDeclare(
		mq.Exchange,
		mq.ExchangeType,
		mq.Durable,
		mq.AutoDelete,
		mq.Internal,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %v", err)
	}

	_, err = r.Channel.QueueDeclare(
		mq.DelayQueue,
		mq.Durable,
		mq.AutoDelete,
		mq.Exclusive,
		mq.NoWait,
		amqp.Table{
			"x-dead-letter-exchange":    mq.Exchange,
			"x-dead-letter-routing-key": mq.TerminationKey,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare delay queue: %v", err)
	}

	_, err = r.Channel.QueueDeclare(
		mq.TerminationQueue,
		mq.Durable,
		mq.AutoDelete,
		mq.Exclusive,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare termination queue: %v", err)
	}

	err = r.Channel.QueueBind(
		mq.TerminationQueue,
		mq.TerminationKey,
		mq.Exchange,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind termination queue: %v", err)
	}

	if err := r.Channel.Qos(mq.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set channel QoS: %v", err)
	}

	return nil
}
