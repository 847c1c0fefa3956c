package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов контент-завода.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9091"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_MARKETING_CHAT_ID"`
	} `envconfig:""`

	Queues struct {
		Intake string `envconfig:"INTAKE_QUEUE_KEY" default:"content_intake"`
	} `envconfig:""`

	// Policy — редакционные пороги. Значения по умолчанию предварительные,
	// до подтверждения продуктом.
	Policy struct {
		CalendarWindowDays int     `envconfig:"CALENDAR_WINDOW_DAYS" default:"30"`
		ScheduleWindowDays int     `envconfig:"SCHEDULE_WINDOW_DAYS" default:"14"`
		HeavyPerWeek       int     `envconfig:"HEAVY_PER_WEEK" default:"1"`
		PillarWindowDays   int     `envconfig:"PILLAR_WINDOW_DAYS" default:"14"`
		PillarMaxShare     float64 `envconfig:"PILLAR_MAX_SHARE" default:"0.6"`
	} `envconfig:""`

	Scoring struct {
		QualityWeight    float64 `envconfig:"SCORE_QUALITY_WEIGHT" default:"0.4"`
		FreshnessWeight  float64 `envconfig:"SCORE_FRESHNESS_WEIGHT" default:"0.2"`
		PillarWeight     float64 `envconfig:"SCORE_PILLAR_WEIGHT" default:"0.25"`
		ChannelFitWeight float64 `envconfig:"SCORE_CHANNEL_FIT_WEIGHT" default:"0.15"`
		MaxStaleDays     float64 `envconfig:"SCORE_MAX_STALE_DAYS" default:"30"`
	} `envconfig:""`

	Scheduler struct {
		DailyHourUTC int `envconfig:"SCHEDULE_DAILY_HOUR_UTC" default:"6"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
