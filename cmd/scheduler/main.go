package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"content-factory/internal/adapters/notifier"
	"content-factory/internal/adapters/repo"
	"content-factory/internal/adapters/scorer"
	"content-factory/internal/domain"
	"content-factory/internal/infra/cache"
	"content-factory/internal/infra/config"
	"content-factory/internal/infra/db"
	applog "content-factory/internal/infra/log"
	"content-factory/internal/infra/metrics"
	"content-factory/internal/usecase/calendar"
	"content-factory/internal/usecase/schedule"
)

// runLockTTL удерживает суточный замок дольше суток, чтобы реплика,
// проснувшаяся позже, не повторила прогон.
const runLockTTL = 36 * time.Hour

func main() {
	cfg := config.Load()
	log := applog.NewLogger(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var runOnce domain.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		runOnce = cache.NewRedis(redisClient)
	}

	var scheduleNotifier domain.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: не удалось создать telegram-бота")
		}
		scheduleNotifier = notifier.NewTelegram(bot, cfg.Telegram.ChatID, log.With().Str("component", "notifier").Logger())
	}

	scorerAdapter := scorer.NewSimple(scorer.Weights{
		Quality:    cfg.Scoring.QualityWeight,
		Freshness:  cfg.Scoring.FreshnessWeight,
		Pillar:     cfg.Scoring.PillarWeight,
		ChannelFit: cfg.Scoring.ChannelFitWeight,
	}, cfg.Scoring.MaxStaleDays, cfg.Policy.PillarWindowDays)
	validator := calendar.NewValidator(calendar.Policy{
		WindowDays:       cfg.Policy.CalendarWindowDays,
		HeavyPerWeek:     cfg.Policy.HeavyPerWeek,
		PillarWindowDays: cfg.Policy.PillarWindowDays,
		PillarMaxShare:   cfg.Policy.PillarMaxShare,
	})
	planner := schedule.NewPlanner(schedule.Policy{
		WindowDays:   cfg.Policy.ScheduleWindowDays,
		HeavyPerWeek: cfg.Policy.HeavyPerWeek,
	})
	scheduleService := schedule.NewService(
		repoAdapter, repoAdapter, repoAdapter, repoAdapter,
		scorerAdapter, planner, validator, scheduleNotifier,
		log.With().Str("component", "schedule").Logger(),
	)

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	log.Info().Int("hour_utc", cfg.Scheduler.DailyHourUTC).Msg("scheduler: старт")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	var lastRun string
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: остановка")
			return
		case now := <-ticker.C:
			now = now.UTC()
			if !shouldRun(now, cfg.Scheduler.DailyHourUTC, lastRun) {
				continue
			}
			run := func() error { return runDaily(ctx, log, scheduleService, repoAdapter, scheduleNotifier, now) }
			var err error
			if runOnce != nil {
				key := "schedule:run:" + now.Format("2006-01-02")
				err = runOnce.Once(key, runLockTTL, run)
			} else {
				err = run()
			}
			if err != nil {
				log.Error().Err(err).Msg("scheduler: суточный прогон не удался")
				continue
			}
			lastRun = now.Format("2006-01-02")
		}
	}
}

// shouldRun сообщает, пора ли запускать суточный прогон: наступил нужный час
// и за эту дату прогон ещё не выполнялся.
func shouldRun(now time.Time, hourUTC int, lastRun string) bool {
	if now.Hour() != hourUTC {
		return false
	}
	return now.Format("2006-01-02") != lastRun
}

func runDaily(ctx context.Context, log zerolog.Logger, svc *schedule.Service, posts domain.PostRepo, ntf domain.Notifier, now time.Time) error {
	result, err := svc.RunAutoSchedule(ctx, now)
	if err != nil {
		return err
	}
	log.Info().
		Int("placed", len(result.Assignments)).
		Int("unplaced", len(result.Unplaced)).
		Int("conflicts", len(result.Conflicts)).
		Msg("scheduler: прогон завершён")

	if ntf != nil {
		backlog, err := posts.ListByStatus(domain.PostStatusReview)
		if err != nil {
			log.Error().Err(err).Msg("scheduler: выборка постов на ревью")
			return nil
		}
		if len(backlog) > 0 {
			if err := ntf.NotifyReviewBacklog(ctx, backlog); err != nil {
				log.Error().Err(err).Msg("scheduler: не удалось отправить напоминание о ревью")
			}
		}
	}
	return nil
}
