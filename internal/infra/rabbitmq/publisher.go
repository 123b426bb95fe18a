package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// ProcessingRoutingKey routes processing tasks to the worker queue.
const ProcessingRoutingKey = "video.processing"

const attemptHeader = "x-attempt"

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

// DeclareExchange makes sure the task exchange exists before anything is enqueued.
func (p *Publisher) DeclareExchange() error {
	if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	return p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		},
	)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// JobQueue enqueues processing tasks on the video exchange.
type JobQueue struct {
	pub *Publisher
}

func NewJobQueue(pub *Publisher) *JobQueue {
	return &JobQueue{pub: pub}
}

func (q *JobQueue) Enqueue(ctx context.Context, videoID uuid.UUID, tenantID string) error {
	body, err := json.Marshal(entity.ProcessVideoMessage{VideoID: videoID, TenantID: tenantID})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.pub.publish(ctx, q.pub.exchange, ProcessingRoutingKey, body, amqp.Table{attemptHeader: int32(1)}); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// retry republishes a failed task with its attempt counter advanced.
func (q *JobQueue) retry(ctx context.Context, body []byte, attempt int) error {
	return q.pub.publish(ctx, q.pub.exchange, ProcessingRoutingKey, body, amqp.Table{attemptHeader: int32(attempt)})
}

// Notifier fans events out on a topic exchange. Gateways bind one queue per
// connected user with the pattern "user.<id>.#".
type Notifier struct {
	pub      *Publisher
	exchange string
}

func NewNotifier(pub *Publisher, eventsExchange string) (*Notifier, error) {
	if err := pub.channel.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &Notifier{pub: pub, exchange: eventsExchange}, nil
}

func (n *Notifier) Emit(ctx context.Context, recipientID, event string, payload any) error {
	body, err := json.Marshal(entity.NewEnvelope(recipientID, event, payload))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.pub.publish(ctx, n.exchange, RecipientRoutingKey(recipientID, event), body, nil); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// RecipientRoutingKey builds "user.<recipient>.<event>". Dots inside the
// recipient id would split the topic segment and are replaced.
func RecipientRoutingKey(recipientID, event string) string {
	return "user." + strings.ReplaceAll(recipientID, ".", "_") + "." + event
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx, "", dp.queue, msg, amqp.Table{"x-dlq-reason": reason})
}
