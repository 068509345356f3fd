// Package queue provides the AMQP wake-up channel for the background worker.
//
// The database queue (ai_processing_queue) is the source of truth: a task is
// only ever handed out by the compare-and-swap claim in the repo layer. AMQP
// carries nothing but a nudge so that idle workers pick up new work without
// waiting for the next poll tick. Losing a message therefore costs latency,
// never correctness, and the broker is entirely optional.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// publishTimeout bounds a single notify round-trip to the broker.
const publishTimeout = 5 * time.Second

// wakeMessage is the JSON body of a wake-up nudge.
type wakeMessage struct {
	TaskID string `json:"task_id"`
}

// AMQPNotifier publishes wake-up nudges to a durable broker queue and lets
// workers subscribe to them.
type AMQPNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   zerolog.Logger
}

// NewAMQPNotifier dials the broker and declares the durable wake-up queue.
func NewAMQPNotifier(url, queueName string, log zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPNotifier{conn: conn, ch: ch, queue: queueName, log: log}, nil
}

// Notify publishes a nudge for taskID. Errors are returned but callers treat
// them as non-fatal.
func (n *AMQPNotifier) Notify(ctx context.Context, taskID string) error {
	body, err := json.Marshal(wakeMessage{TaskID: taskID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return n.ch.PublishWithContext(cctx,
		"",      // default exchange
		n.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// Wake returns a channel that receives one signal per published nudge. The
// channel closes when the broker connection drops or ctx is cancelled; the
// worker falls back to its poll ticker either way.
func (n *AMQPNotifier) Wake(ctx context.Context) (<-chan struct{}, error) {
	msgs, err := n.ch.Consume(n.queue, "", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					n.log.Warn().Msg("amqp wake channel closed, reverting to polling")
					return
				}
				var m wakeMessage
				if err := json.Unmarshal(d.Body, &m); err != nil {
					n.log.Debug().Err(err).Msg("discarding malformed wake message")
					continue
				}
				// Coalesce: one pending signal is enough.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close tears down the channel and connection.
func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// NopNotifier is the notifier used when no broker is configured.
type NopNotifier struct{}

// Notify does nothing and never fails.
func (NopNotifier) Notify(context.Context, string) error { return nil }
