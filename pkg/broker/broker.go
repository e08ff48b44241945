// Package broker is the RabbitMQ adapter between the dispatcher and the
// worker fleets.
//
// The topology is deliberately plain: durable queues on the default
// exchange, one queue per fleet, routed by queue name. Persistent
// deliveries plus manual acks give at-least-once semantics end to end;
// the worker runtime makes redelivery safe.
//
// Publishing reconnects lazily. The API server can ride out a broker
// restart without its own supervision loop: the next publish redials and
// redeclares the topology before sending.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/config"
)

// ErrBrokerUnavailable is returned when the broker cannot be reached.
// Readiness probes report it as a dependency failure.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Metrics records broker events. Implementations must be safe for
// concurrent use. A nil Metrics disables collection.
type Metrics interface {
	// IncPublished counts one successful publish to a queue.
	IncPublished(queue string)
}

// Broker owns one AMQP connection and the channel used for publishing.
// Consumers get their own channel per Consume call so prefetch limits and
// acks never interfere with publishes. Safe for concurrent use.
type Broker struct {
	cfg     config.BrokerConfig
	metrics Metrics

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and declares the full queue topology. Metrics
// may be nil.
func Connect(cfg config.BrokerConfig, m Metrics) (*Broker, error) {
	b := &Broker{cfg: cfg, metrics: m}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) connect() error {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     b.cfg.Host,
		Port:     b.cfg.Port,
		Username: b.cfg.User,
		Password: b.cfg.Password,
		Vhost:    b.cfg.VHost,
	}

	conn, err := amqp.DialConfig(uri.String(), amqp.Config{
		Heartbeat: b.cfg.Heartbeat,
		Dial:      amqp.DefaultDial(b.cfg.DialTimeout),
	})
	if err != nil {
		return fmt.Errorf("%w: dial %s:%d: %v", ErrBrokerUnavailable, b.cfg.Host, b.cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, b.cfg.DLX.Enabled); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	b.conn = conn
	b.ch = ch

	logger.Info("Connected to message broker",
		"host", b.cfg.Host,
		"port", b.cfg.Port,
		"vhost", b.cfg.VHost,
	)
	return nil
}

// declareTopology declares every work queue, and with dead-lettering
// enabled, the dead-letter exchange plus one bound dead queue per work
// queue. Declarations are idempotent as long as arguments never change.
func declareTopology(ch *amqp.Channel, dlx bool) error {
	if dlx {
		if err := ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", DeadLetterExchange, err)
		}
	}

	for _, queue := range AllQueues() {
		var args amqp.Table
		if dlx {
			dead := DeadQueueName(queue)
			if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", dead, err)
			}
			if err := ch.QueueBind(dead, dead, DeadLetterExchange, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue %s: %w", dead, err)
			}
			args = amqp.Table{
				"x-dead-letter-exchange":    DeadLetterExchange,
				"x-dead-letter-routing-key": dead,
			}
		}

		if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	return nil
}

// ensureConnectedLocked redials when the connection is gone. Callers must
// hold b.mu.
func (b *Broker) ensureConnectedLocked() error {
	if b.conn != nil && !b.conn.IsClosed() {
		return nil
	}

	logger.Warn("Broker connection lost, reconnecting",
		"host", b.cfg.Host,
		"port", b.cfg.Port,
	)
	return b.connect()
}

// Publish sends one envelope to a work queue as a persistent JSON
// message. A dead connection is redialed first, mirroring how the rest of
// the platform treats the broker as something that restarts under it.
func (b *Broker) Publish(ctx context.Context, queue string, env *Envelope) error {
	ctx, span := telemetry.StartPublishSpan(ctx, queue, env.JobID, telemetry.JobAction(env.Type))
	defer span.End()

	body, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope for job %s: %w", env.JobID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureConnectedLocked(); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	err = b.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		MessageId:    env.JobID,
		Body:         body,
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to publish job %s to %s: %w", env.JobID, queue, err)
	}

	if b.metrics != nil {
		b.metrics.IncPublished(queue)
	}
	logger.InfoCtx(ctx, "Published job",
		logger.Queue(queue),
		logger.JobID(env.JobID),
		logger.Action(env.Type),
	)
	return nil
}

// Consume opens a dedicated channel on the shared connection and starts a
// manual-ack consumer. The configured prefetch bounds in-flight work; the
// default of 1 gives strictly one job at a time per worker process.
//
// The returned stream closes when the connection drops. Callers are
// expected to loop: handle deliveries until the channel closes, then call
// Consume again to trigger a reconnect.
func (b *Broker) Consume(ctx context.Context, queue, consumerTag string) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureConnectedLocked(); err != nil {
		return nil, err
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch %d: %w", b.cfg.Prefetch, err)
	}

	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	logger.InfoCtx(ctx, "Consuming from queue",
		logger.Queue(queue),
		"consumer_tag", consumerTag,
		"prefetch", b.cfg.Prefetch,
	)
	return deliveries, nil
}

// Ping reports whether the broker connection is alive. It never redials;
// readiness should observe the current state, not repair it.
func (b *Broker) Ping() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		return ErrBrokerUnavailable
	}
	return nil
}

// Close shuts the publishing channel and the connection. Consumer
// channels die with the connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}

	if b.ch != nil {
		b.ch.Close()
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}
	return nil
}
