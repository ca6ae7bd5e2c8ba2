package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"dompet/internal/auth"
)

// Publisher sends a message body to the queue named by routingKey.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// EventPublisher forwards sync notifications to a queue. It satisfies
// syncstatus.Observer; publish failures are logged and never reach the writer.
type EventPublisher struct {
	pub   Publisher
	queue string
	now   func() time.Time
}

func NewEventPublisher(pub Publisher, queue string) *EventPublisher {
	return &EventPublisher{pub: pub, queue: queue, now: time.Now}
}

func (p *EventPublisher) SyncStart(ctx context.Context) {
	p.send(ctx, EventSyncStart, nil)
}

func (p *EventPublisher) SyncComplete(ctx context.Context) {
	p.send(ctx, EventSyncComplete, nil)
}

func (p *EventPublisher) SyncError(ctx context.Context, err error) {
	p.send(ctx, EventSyncError, err)
}

func (p *EventPublisher) send(ctx context.Context, event string, cause error) {
	msg := SyncEventMessage{Event: event, Timestamp: p.now()}
	if u, ok := auth.UserFromContext(ctx); ok {
		msg.UserID = u.ID
	}
	if cause != nil {
		msg.Error = cause.Error()
	}
	body, err := msg.ToJSON()
	if err == nil {
		err = p.pub.Publish(context.WithoutCancel(ctx), p.queue, body)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish sync event",
			"component", "amqp",
			"event", event,
			"error", err)
	}
}

// ExportQueue carries export jobs from the API to the worker.
type ExportQueue struct {
	pub   Publisher
	queue string
}

func NewExportQueue(pub Publisher, queue string) *ExportQueue {
	return &ExportQueue{pub: pub, queue: queue}
}

// Enqueue publishes job.
func (q *ExportQueue) Enqueue(ctx context.Context, job *ExportJobMessage) error {
	body, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.pub.Publish(ctx, q.queue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published export job",
		"component", "amqp",
		"job_id", job.JobID,
		"month", job.Month,
		"format", job.Format,
		"queue", q.queue)
	return nil
}

// ConsumeExportJobs runs handler for every export job until ctx is done.
// A job gets one retry: a redelivered job that fails again is dropped.
func (c *Client) ConsumeExportJobs(ctx context.Context, queue string, handler func(context.Context, *ExportJobMessage) error) error {
	return c.Consume(ctx, queue, func(ctx context.Context, d amqp091.Delivery) error {
		return giveUpOnRedelivery(HandleExportDelivery(ctx, d.Body, handler), d.Redelivered)
	})
}

func giveUpOnRedelivery(err error, redelivered bool) error {
	if err == nil || !redelivered || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: failed after redelivery: %v", ErrPermanent, err)
}

// HandleExportDelivery decodes body and runs handler on the job.
func HandleExportDelivery(ctx context.Context, body []byte, handler func(context.Context, *ExportJobMessage) error) error {
	msg, err := ExportJobMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "component", "amqp", "error", err)
		return err
	}
	slog.InfoContext(ctx, "Processing export job", "component", "amqp", "job_id", msg.JobID, "month", msg.Month)
	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle export job",
			"component", "amqp",
			"job_id", msg.JobID,
			"error", err)
		return err
	}
	slog.InfoContext(ctx, "Successfully processed export job", "component", "amqp", "job_id", msg.JobID)
	return nil
}
