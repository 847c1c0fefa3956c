package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"content-factory/internal/domain"
)

// RedisIntakeQueue реализует очередь пакетов контента на базе Redis lists.
// Используется в окружениях без RabbitMQ.
type RedisIntakeQueue struct {
	client *redis.Client
	key    string
}

// NewRedisIntakeQueue создаёт очередь по указанному ключу.
func NewRedisIntakeQueue(client *redis.Client, key string) *RedisIntakeQueue {
	return &RedisIntakeQueue{client: client, key: key}
}

// Enqueue публикует пакет в очередь.
func (q *RedisIntakeQueue) Enqueue(ctx context.Context, job domain.IntakeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает пакет из очереди.
func (q *RedisIntakeQueue) Pop(ctx context.Context) (domain.IntakeJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.IntakeJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.IntakeJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.IntakeJob{}, err
		}
		if len(res) != 2 {
			return domain.IntakeJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.IntakeJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.IntakeJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
