// Package amqp carries recurring-transaction tasks between the daily
// scheduler and the processing worker over RabbitMQ. Delivery is
// at-least-once; the processor's due-ness re-check makes redelivery safe.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// maxDeferSleep bounds how long the consumer pauses before requeueing a
// throttled task, so one hot user cannot stall the whole queue for a full
// rate-limit window.
const maxDeferSleep = 2 * time.Second

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishRecurringTask publishes one processing task for a due template.
func (c *Client) PublishRecurringTask(ctx context.Context, msg *RecurringTaskMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published recurring task",
		"message_id", msg.MessageID,
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	return nil
}

// TaskHandler processes one recurring task. Returning nil acknowledges
// the delivery; a *DeferredError requeues it after a bounded pause; any
// other error requeues it for a retry.
type TaskHandler func(ctx context.Context, msg *RecurringTaskMessage) error

// ConsumeRecurringTasks delivers tasks to handler until ctx is done.
// Malformed payloads are rejected without requeue; a failed unit is
// requeued and never aborts its siblings.
func (c *Client) ConsumeRecurringTasks(ctx context.Context, handler TaskHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming recurring tasks", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping task consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler TaskHandler) {
	msg, err := RecurringTaskMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal task", "error", err)
		delivery.Nack(false, false) // malformed, do not requeue
		return
	}
	if err := msg.Validate(); err != nil {
		slog.ErrorContext(ctx, "Invalid task payload", "error", err, "message_id", msg.MessageID)
		delivery.Nack(false, false)
		return
	}

	err = handler(ctx, msg)

	var deferred *DeferredError
	switch {
	case err == nil:
		delivery.Ack(false)
	case errors.As(err, &deferred):
		slog.InfoContext(ctx, "Task deferred by throttle",
			"message_id", msg.MessageID,
			"user_id", msg.UserID,
			"retry_after", deferred.RetryAfter)
		sleepWithContext(ctx, deferSleep(deferred.RetryAfter))
		delivery.Nack(false, true) // requeue, never drop
	default:
		slog.ErrorContext(ctx, "Failed to handle task",
			"error", err,
			"message_id", msg.MessageID,
			"transaction_id", msg.TransactionID)
		delivery.Nack(false, true) // retryable: due-ness is re-checked on redelivery
	}
}

// deferSleep caps the pre-requeue pause for throttled tasks.
func deferSleep(retryAfter time.Duration) time.Duration {
	if retryAfter <= 0 {
		return 0
	}
	if retryAfter > maxDeferSleep {
		return maxDeferSleep
	}
	return retryAfter
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
