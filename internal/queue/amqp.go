package queue

import (
	"context"
	"time"

	"expensebot/internal/amqp"
)

// Broker publishes payloads to RabbitMQ for a separate worker process.
type Broker struct {
	client *amqp.Client
}

func NewBroker(client *amqp.Client) *Broker {
	return &Broker{client: client}
}

func (b *Broker) Enqueue(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, amqp.NewMessage(payload))
}

func (b *Broker) Close(context.Context) error {
	return b.client.Close()
}

// Consume feeds broker deliveries to handler until ctx is cancelled.
func Consume(ctx context.Context, client *amqp.Client, handler Handler) error {
	return client.Consume(ctx, func(ctx context.Context, m amqp.Message) error {
		start := time.Now()
		err := handler(ctx, Job{ID: m.ID, Payload: m.Body, ReceivedAt: m.ReceivedAt})
		jobDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			jobsTotal.WithLabelValues(outcomeError).Inc()
			return err
		}
		jobsTotal.WithLabelValues(outcomeOK).Inc()
		return nil
	})
}
