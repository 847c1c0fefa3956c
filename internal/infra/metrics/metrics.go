package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "post_transitions_total",
		Help: "Количество переходов постов по статусам",
	}, []string{"to"})

	InvalidTransitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "post_invalid_transitions_total",
		Help: "Отклонённые переходы жизненного цикла",
	})

	CascadeRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "post_cascade_rejections_total",
		Help: "Производные посты, отклонённые каскадом",
	})

	ScheduleRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_run_seconds",
		Help:    "Время прогона автопланировщика",
		Buckets: prometheus.DefBuckets,
	})

	SchedulePlacementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_placements_total",
		Help: "Посты, поставленные в календарь автопланировщиком",
	})

	ScheduleUnplacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_unplaced_total",
		Help: "Посты, не поместившиеся в окно планирования",
	})

	CalendarConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_conflicts_total",
		Help: "Найденные проблемы календаря по типам",
	}, []string{"kind"})

	IntakeBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_batches_total",
		Help: "Принятые пакеты контента от генератора",
	})

	IntakePostsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_posts_total",
		Help: "Посты, зарегистрированные через приём",
	})

	NotifierSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_send_errors_total",
		Help: "Ошибки отправки уведомлений в чат маркетинга",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		TransitionsTotal,
		InvalidTransitionsTotal,
		CascadeRejectionsTotal,
		ScheduleRunSeconds,
		SchedulePlacementsTotal,
		ScheduleUnplacedTotal,
		CalendarConflictsTotal,
		IntakeBatchesTotal,
		IntakePostsTotal,
		NotifierSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// IncTransition фиксирует успешный переход в указанный статус.
func IncTransition(to string) {
	TransitionsTotal.WithLabelValues(to).Inc()
}

// IncConflicts фиксирует найденные проблемы календаря.
func IncConflicts(kind string, count int) {
	if count <= 0 {
		return
	}
	CalendarConflictsTotal.WithLabelValues(kind).Add(float64(count))
}
