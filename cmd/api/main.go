package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"content-factory/internal/adapters/notifier"
	"content-factory/internal/adapters/repo"
	"content-factory/internal/adapters/scorer"
	"content-factory/internal/domain"
	"content-factory/internal/infra/cache"
	"content-factory/internal/infra/config"
	"content-factory/internal/infra/db"
	httpinfra "content-factory/internal/infra/http"
	applog "content-factory/internal/infra/log"
	"content-factory/internal/infra/metrics"
	infraqueue "content-factory/internal/infra/queue"
	"content-factory/internal/usecase/calendar"
	"content-factory/internal/usecase/intake"
	"content-factory/internal/usecase/queue"
	"content-factory/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	log := applog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
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

	var scheduleNotifier domain.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("api: не удалось создать telegram-бота")
		}
		scheduleNotifier = notifier.NewTelegram(bot, cfg.Telegram.ChatID, log.With().Str("component", "notifier").Logger())
	}

	var intakeQueue domain.IntakeQueue
	switch {
	case cfg.AMQPURL != "":
		amqpQueue, err := infraqueue.NewAMQPIntakeQueue(cfg.AMQPURL, cfg.Queues.Intake)
		if err != nil {
			log.Fatal().Err(err).Msg("api: не удалось подключить очередь приёмки")
		}
		defer amqpQueue.Close()
		intakeQueue = amqpQueue
	case redisClient != nil:
		intakeQueue = infraqueue.NewRedisIntakeQueue(redisClient, cfg.Queues.Intake)
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

	queueService := queue.NewService(repoAdapter, appCache)
	intakeService := intake.NewService(repoAdapter, repoAdapter, appCache)
	scheduleService := schedule.NewService(
		repoAdapter, repoAdapter, repoAdapter, repoAdapter,
		scorerAdapter, planner, validator, scheduleNotifier,
		log.With().Str("component", "schedule").Logger(),
	)

	srv := httpinfra.NewServer(log)
	r := srv.Router

	r.Get("/api/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		var posts []domain.Post
		var err error
		if status := r.URL.Query().Get("status"); status != "" {
			posts, err = repoAdapter.ListByStatus(domain.PostStatus(status))
		} else {
			posts, err = repoAdapter.ListAllPosts()
		}
		if err != nil {
			log.Error().Err(err).Msg("api: выборка постов")
			writeError(w, http.StatusInternalServerError, "failed to list posts")
			return
		}
		out := make([]postDTO, 0, len(posts))
		for _, p := range posts {
			out = append(out, toPostDTO(p))
		}
		writeJSON(w, map[string]any{"posts": out})
	})

	r.Get("/api/v1/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		post, err := repoAdapter.GetPost(chiParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrPostNotFound) {
				writeError(w, http.StatusNotFound, "post not found")
				return
			}
			log.Error().Err(err).Msg("api: выборка поста")
			writeError(w, http.StatusInternalServerError, "failed to load post")
			return
		}
		writeJSON(w, toPostDTO(post))
	})

	r.Get("/api/v1/posts/{id}/valid-next", func(w http.ResponseWriter, r *http.Request) {
		next, err := queueService.ValidNext(r.Context(), chiParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrPostNotFound) {
				writeError(w, http.StatusNotFound, "post not found")
				return
			}
			log.Error().Err(err).Msg("api: допустимые переходы")
			writeError(w, http.StatusInternalServerError, "failed to load transitions")
			return
		}
		writeJSON(w, map[string]any{"valid_next": next})
	})

	r.Post("/api/v1/posts/{id}/transition", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.To == "" {
			writeError(w, http.StatusBadRequest, "to is required")
			return
		}
		changed, err := queueService.Transition(r.Context(), chiParam(r, "id"), domain.PostStatus(req.To))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrPostNotFound):
				writeError(w, http.StatusNotFound, "post not found")
			case errors.Is(err, queue.ErrDateRequired):
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			case errors.Is(err, domain.ErrInvalidTransition):
				writeError(w, http.StatusConflict, err.Error())
			default:
				log.Error().Err(err).Msg("api: переход статуса")
				writeError(w, http.StatusInternalServerError, "failed to apply transition")
			}
			return
		}
		out := make([]postDTO, 0, len(changed))
		for _, p := range changed {
			out = append(out, toPostDTO(p))
		}
		writeJSON(w, map[string]any{"changed": out})
	})

	r.Post("/api/v1/posts/{id}/schedule", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		scheduled, err := queueService.Schedule(r.Context(), chiParam(r, "id"), date)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrPostNotFound):
				writeError(w, http.StatusNotFound, "post not found")
			case errors.Is(err, domain.ErrInvalidTransition):
				writeError(w, http.StatusConflict, err.Error())
			default:
				log.Error().Err(err).Msg("api: ручная постановка в календарь")
				writeError(w, http.StatusInternalServerError, "failed to schedule post")
			}
			return
		}
		writeJSON(w, toPostDTO(scheduled))
	})

	r.Get("/api/v1/queue/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := queueService.Stats(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: статистика очереди")
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		writeJSON(w, map[string]any{"stats": stats})
	})

	r.Post("/api/v1/schedule/run", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		start := time.Now().UTC()
		var req scheduleRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Start != "" {
			parsed, err := time.Parse("2006-01-02", req.Start)
			if err != nil {
				writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
				return
			}
			start = parsed
		}
		result, err := scheduleService.RunAutoSchedule(r.Context(), start)
		if err != nil {
			log.Error().Err(err).Msg("api: прогон планировщика")
			writeError(w, http.StatusInternalServerError, "failed to run scheduler")
			return
		}
		writeJSON(w, toScheduleResultDTO(result))
	})

	r.Get("/api/v1/calendar/conflicts", func(w http.ResponseWriter, r *http.Request) {
		conflicts, err := scheduleService.ValidateCalendar(r.Context(), time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Msg("api: проверка календаря")
			writeError(w, http.StatusInternalServerError, "failed to validate calendar")
			return
		}
		writeJSON(w, map[string]any{"conflicts": toConflictDTOs(conflicts)})
	})

	r.Get("/api/v1/slots", func(w http.ResponseWriter, r *http.Request) {
		templates, err := repoAdapter.ListSlotTemplates()
		if err != nil {
			log.Error().Err(err).Msg("api: выборка слотов")
			writeError(w, http.StatusInternalServerError, "failed to list slots")
			return
		}
		out := make([]slotDTO, 0, len(templates))
		for _, t := range templates {
			out = append(out, toSlotDTO(t))
		}
		writeJSON(w, map[string]any{"slots": out})
	})

	r.Put("/api/v1/slots", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req struct {
			Slots []slotDTO `json:"slots"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		templates := make([]domain.WeeklySlotTemplate, 0, len(req.Slots))
		for _, s := range req.Slots {
			if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
				writeError(w, http.StatusBadRequest, "day_of_week must be 0..6")
				return
			}
			templates = append(templates, fromSlotDTO(s))
		}
		if err := repoAdapter.ReplaceSlotTemplates(templates); err != nil {
			log.Error().Err(err).Msg("api: обновление слотов")
			writeError(w, http.StatusInternalServerError, "failed to replace slots")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/pillars", func(w http.ResponseWriter, r *http.Request) {
		pillars, err := repoAdapter.ListPillars()
		if err != nil {
			log.Error().Err(err).Msg("api: выборка рубрик")
			writeError(w, http.StatusInternalServerError, "failed to list pillars")
			return
		}
		out := make([]pillarDTO, 0, len(pillars))
		for _, p := range pillars {
			out = append(out, pillarDTO{ID: p.ID, Name: p.Name, Description: p.Description})
		}
		writeJSON(w, map[string]any{"pillars": out})
	})

	r.Put("/api/v1/pillars/{id}", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req pillarDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		pillar := domain.Pillar{ID: chiParam(r, "id"), Name: req.Name, Description: req.Description}
		saved, err := repoAdapter.UpsertPillar(pillar)
		if err != nil {
			log.Error().Err(err).Msg("api: обновление рубрики")
			writeError(w, http.StatusInternalServerError, "failed to upsert pillar")
			return
		}
		writeJSON(w, pillarDTO{ID: saved.ID, Name: saved.Name, Description: saved.Description})
	})

	r.Post("/api/v1/intake", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var job domain.IntakeJob
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if job.RequestedAt.IsZero() {
			job.RequestedAt = time.Now().UTC()
		}
		// Если очередь настроена, пакет уходит воркеру; иначе регистрируем сразу.
		if intakeQueue != nil {
			if err := intakeQueue.Enqueue(r.Context(), job); err != nil {
				log.Error().Err(err).Str("batch", job.BatchID).Msg("api: постановка пакета в очередь")
				writeError(w, http.StatusInternalServerError, "failed to enqueue batch")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued", "batch_id": job.BatchID})
			return
		}
		posts, err := intakeService.Register(r.Context(), job)
		if err != nil {
			switch {
			case errors.Is(err, intake.ErrEmptyBatch), errors.Is(err, intake.ErrChannelMissing):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				log.Error().Err(err).Str("batch", job.BatchID).Msg("api: регистрация пакета")
				writeError(w, http.StatusInternalServerError, "failed to register batch")
			}
			return
		}
		out := make([]postDTO, 0, len(posts))
		for _, p := range posts {
			out = append(out, toPostDTO(p))
		}
		writeJSON(w, map[string]any{"status": "registered", "posts": out})
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		if err := srv.Start(addrFromPort(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
