package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

const (
	defaultAMQPQueue = "mikan.events"
	maxReconnectWait = 30 * time.Second
)

// AMQPConfig configures the RabbitMQ transport.
type AMQPConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// AMQPBus publishes envelopes to a durable RabbitMQ queue and re-dispatches
// consumed deliveries to handlers registered on a local MemoryBus. Several API
// replicas can share the queue; each event is handled by exactly one of them.
type AMQPBus struct {
	cfg   AMQPConfig
	local *MemoryBus
	now   func() time.Time
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel

	cancel   context.CancelFunc
	consumer sync.WaitGroup
}

// NewAMQPBus connects to the broker, declares the queue and starts consuming.
func NewAMQPBus(ctx context.Context, cfg AMQPConfig, local *MemoryBus) (*AMQPBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("events: amqp url is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultAMQPQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	if local == nil {
		local = NewMemoryBus()
	}

	bus := &AMQPBus{
		cfg:   cfg,
		local: local,
		now:   time.Now,
		log:   logger.WithModule("events.amqp"),
	}
	if _, err := bus.channel(); err != nil {
		return nil, err
	}

	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	bus.cancel = cancel
	bus.consumer.Add(1)
	go bus.consumeForever(consumeCtx)
	return bus, nil
}

// Subscribe registers h on the local dispatcher.
func (b *AMQPBus) Subscribe(name string, h Handler) func() {
	return b.local.Subscribe(name, h)
}

// Publish sends the event to the broker as a persistent JSON message.
func (b *AMQPBus) Publish(ctx context.Context, name string, payload any) error {
	evt, err := NewEvent(name, payload, b.now())
	if err != nil {
		return err
	}
	err = b.publish(ctx, evt)
	metrics.EventsPublished.WithLabelValues(name, metrics.Result(err)).Inc()
	return err
}

func (b *AMQPBus) publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: encode envelope: %w", err)
	}

	ch, err := b.channel()
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	err = ch.PublishWithContext(ctx, "", b.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Type:         evt.Name,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	if err != nil {
		b.resetChannel()
		return fmt.Errorf("events: publish %s: %w", evt.Name, err)
	}
	return nil
}

// channel returns the shared publishing channel, dialing when needed.
func (b *AMQPBus) channel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pub != nil && !b.pub.IsClosed() {
		return b.pub, nil
	}
	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("events: dial broker: %w", err)
		}
		b.conn = conn
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("events: declare queue: %w", err)
	}
	b.pub = ch
	return ch, nil
}

// Ping reports whether the broker connection is usable, redialing if needed.
func (b *AMQPBus) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.channel()
	return err
}

func (b *AMQPBus) resetChannel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pub != nil {
		_ = b.pub.Close()
		b.pub = nil
	}
}

func (b *AMQPBus) consumeForever(ctx context.Context) {
	defer b.consumer.Done()

	backoff := time.Second
	for {
		err := b.consumeOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		b.log.Warn("consumer stopped, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxReconnectWait {
			backoff *= 2
		}
	}
}

func (b *AMQPBus) consumeOnce(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		if _, err := b.channel(); err != nil {
			return err
		}
		b.mu.Lock()
		conn = b.conn
		b.mu.Unlock()
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, b.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := b.handleDelivery(ctx, d.Body); err != nil {
				b.log.Warn("dropping undecodable event", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *AMQPBus) handleDelivery(ctx context.Context, body []byte) error {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if evt.Name == "" {
		return errors.New("envelope without event name")
	}
	return b.local.Dispatch(ctx, evt)
}

// Close stops the consumer, waits for local handlers and closes the connection.
func (b *AMQPBus) Close(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}
	b.consumer.Wait()

	err := b.local.Close(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pub != nil {
		_ = b.pub.Close()
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if cerr := b.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
