package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
)

// AMQPIntakeQueue реализует очередь пакетов контента через RabbitMQ (AMQP 0-9-1).
type AMQPIntakeQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewAMQPIntakeQueue подключается к брокеру и объявляет durable-очередь.
func NewAMQPIntakeQueue(amqpURL, queue string) (*AMQPIntakeQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &AMQPIntakeQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует пакет в очередь.
func (q *AMQPIntakeQueue) Enqueue(ctx context.Context, job domain.IntakeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает пакет из очереди. Сообщение подтверждается после
// успешной десериализации; битый payload отбрасывается без requeue.
func (q *AMQPIntakeQueue) Pop(ctx context.Context) (domain.IntakeJob, error) {
	if q.deliveries == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.IntakeJob{}, fmt.Errorf("подписка на очередь: %w", err)
		}
		q.deliveries = deliveries
	}
	for {
		select {
		case <-ctx.Done():
			return domain.IntakeJob{}, ctx.Err()
		case msg, ok := <-q.deliveries:
			if !ok {
				return domain.IntakeJob{}, errors.New("amqp queue: канал доставки закрыт")
			}
			var job domain.IntakeJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				_ = msg.Nack(false, false)
				return domain.IntakeJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := msg.Ack(false); err != nil {
				return domain.IntakeJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *AMQPIntakeQueue) Close() error {
	var errs []error
	if q.ch != nil {
		if err := q.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if q.conn != nil {
		if err := q.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
