package rabbitmq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const retriesHeader = "x-retries"

type Consumer struct {
	conn  *amqp.Connection
	queue string

	MaxRetries int
	RetryDelay time.Duration

	mu sync.Mutex
	ch *amqp.Channel
}

// NewConsumer declares the same topology as the publisher and limits unacked
// deliveries to prefetch.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{
		conn:       conn,
		ch:         ch,
		queue:      queue,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
	}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, "", false, false, false, false, nil)
}

type action int

const (
	actionAck action = iota
	actionRetry
	actionReject
)

func decide(err error, retries, maxRetries int) action {
	switch {
	case err == nil:
		return actionAck
	case errors.Is(err, ErrBadEvent):
		return actionReject
	case retries < maxRetries:
		return actionRetry
	default:
		return actionReject
	}
}

// Settle acks a handled delivery. Failed deliveries go to the retry queue
// until MaxRetries, then to the DLQ; malformed ones go to the DLQ at once.
func (c *Consumer) Settle(ctx context.Context, d amqp.Delivery, handleErr error) error {
	retries := retryCount(d.Headers)
	switch decide(handleErr, retries, c.MaxRetries) {
	case actionAck:
		return d.Ack(false)
	case actionRetry:
		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers[retriesHeader] = int32(retries + 1)
		if err := c.publish(ctx, retryQueue(c.queue), amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Type:         d.Type,
			MessageId:    d.MessageId,
			Headers:      headers,
			Body:         d.Body,
			Expiration:   strconv.FormatInt(c.RetryDelay.Milliseconds(), 10),
			Timestamp:    time.Now(),
		}); err != nil {
			return d.Nack(false, true)
		}
		return d.Ack(false)
	default:
		return d.Nack(false, false)
	}
}

func (c *Consumer) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.PublishWithContext(cctx, "", queue, false, false, msg)
}

func retryCount(h amqp.Table) int {
	switch v := h[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
