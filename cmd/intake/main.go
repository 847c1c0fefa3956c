package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"content-factory/internal/adapters/repo"
	"content-factory/internal/domain"
	"content-factory/internal/infra/cache"
	"content-factory/internal/infra/config"
	"content-factory/internal/infra/db"
	applog "content-factory/internal/infra/log"
	"content-factory/internal/infra/metrics"
	infraqueue "content-factory/internal/infra/queue"
	"content-factory/internal/usecase/intake"
)

func main() {
	cfg := config.Load()
	log := applog.NewLogger(cfg.AppEnv, "intake")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("intake: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var appCache domain.Cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		appCache = cache.NewRedis(redisClient)
	}

	var intakeQueue domain.IntakeQueue
	switch {
	case cfg.AMQPURL != "":
		amqpQueue, err := infraqueue.NewAMQPIntakeQueue(cfg.AMQPURL, cfg.Queues.Intake)
		if err != nil {
			log.Fatal().Err(err).Msg("intake: не удалось подключить очередь")
		}
		defer amqpQueue.Close()
		intakeQueue = amqpQueue
	case redisClient != nil:
		intakeQueue = infraqueue.NewRedisIntakeQueue(redisClient, cfg.Queues.Intake)
	default:
		log.Fatal().Msg("intake: не настроен ни AMQP_URL, ни REDIS_ADDR")
	}

	intakeService := intake.NewService(repoAdapter, repoAdapter, appCache)

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	log.Info().Str("queue", cfg.Queues.Intake).Msg("intake: старт")

	for {
		job, err := intakeQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("intake: остановка")
				return
			}
			log.Error().Err(err).Msg("intake: ошибка чтения очереди")
			continue
		}
		posts, err := intakeService.Register(ctx, job)
		if err != nil {
			log.Error().Err(err).Str("batch", job.BatchID).Msg("intake: регистрация пакета не удалась")
			continue
		}
		log.Info().Str("batch", job.BatchID).Int("posts", len(posts)).Msg("intake: пакет зарегистрирован")
	}
}
