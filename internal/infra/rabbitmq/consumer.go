package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const maxBackoff = 60 * time.Second

type MessageHandler func(ctx context.Context, body []byte) error

// acknowledger is the subset of amqp.Delivery the consumer settles messages with.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type retrier interface {
	retry(ctx context.Context, body []byte, attempt int) error
}

type deadLetterer interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queue       string
	workerCount int
	maxAttempts int
	baseDelay   time.Duration
	handler     MessageHandler
	retries     retrier
	dlq         deadLetterer
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	URL         string
	Queue       string
	Exchange    string
	DLQ         string
	Prefetch    int
	WorkerCount int
	BaseDelayMs int
	// MaxAttempts bounds deliveries of a failing task before it is dead-lettered.
	MaxAttempts int
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	pub, err := NewPublisher(conn, cfg.Exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       cfg.Queue,
		workerCount: cfg.WorkerCount,
		maxAttempts: maxAttempts,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:     handler,
		retries:     NewJobQueue(pub),
		dlq:         NewDLQPublisher(pub, cfg.DLQ),
		logger:      logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range []string{cfg.Queue, cfg.DLQ} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	if err := ch.QueueBind(cfg.Queue, ProcessingRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind processing queue: %w", err)
	}
	return nil
}

// Connection is shared with the publishers that enqueue tasks and emit events.
func (c *Consumer) Connection() *amqp.Connection {
	return c.conn
}

// Start consumes until ctx is cancelled and then waits for in-flight tasks.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue),
	)

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, waiting for workers to finish")
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, d.Body, attemptFromHeaders(d.Headers), log.With(zap.Uint64("delivery_tag", d.DeliveryTag)))
		}
	}
}

// processDelivery settles one message. The handler runs to completion even
// when ctx is cancelled; only the retry backoff observes ctx.
func (c *Consumer) processDelivery(ctx context.Context, d acknowledger, body []byte, attempt int, log *zap.Logger) {
	err := c.handler(context.WithoutCancel(ctx), body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if errors.Is(err, port.ErrMalformedMessage) {
		log.Error("discarding malformed message", zap.Error(err))
		c.deadLetter(ctx, d, body, err.Error(), log)
		return
	}

	if attempt >= c.maxAttempts {
		log.Error("message failed on final attempt", zap.Int("attempt", attempt), zap.Error(err))
		c.deadLetter(ctx, d, body, fmt.Sprintf("max attempts exceeded: %v", err), log)
		return
	}

	delay := c.calculateBackoff(attempt)
	log.Warn("message processing failed, retrying",
		zap.Error(err),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	if err := c.retries.retry(ctx, body, attempt+1); err != nil {
		log.Error("failed to republish message, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) deadLetter(ctx context.Context, d acknowledger, body []byte, reason string, log *zap.Logger) {
	if err := c.dlq.PublishToDLQ(context.WithoutCancel(ctx), body, reason); err != nil {
		log.Error("failed to publish to DLQ", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// attemptFromHeaders reads the delivery attempt, counting 1 for messages
// published without the header.
func attemptFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 1
	}
	switch v := headers[attemptHeader].(type) {
	case int32:
		return max(int(v), 1)
	case int64:
		return max(int(v), 1)
	case int:
		return max(v, 1)
	}
	if xDeath, ok := headers["x-death"]; ok {
		if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
			return len(deaths) + 1
		}
	}
	return 1
}

func (c *Consumer) calculateBackoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > maxBackoff || delay < 0 {
		delay = maxBackoff
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
