package domain

import (
	"context"
	"errors"
	"time"
)

// ErrPostNotFound возвращается репозиторием, если пост отсутствует.
var ErrPostNotFound = errors.New("пост не найден")

// ErrPostNotApproved возвращается при попытке применить назначение к посту,
// который уже не в статусе approved.
var ErrPostNotApproved = errors.New("пост не в статусе approved")

// PostRepo управляет постами контент-завода.
type PostRepo interface {
	SavePosts(posts []Post) error
	GetPost(id string) (Post, error)
	ListAllPosts() ([]Post, error)
	ListByStatus(statuses ...PostStatus) ([]Post, error)
	ListDerivatives(coreID string) ([]Post, error)
	// UpdatePosts применяет изменения атомарно: либо все, либо ни одного.
	UpdatePosts(posts ...Post) error
	// ApplyAssignments атомарно переводит посты в scheduled с установкой даты.
	ApplyAssignments(assignments []Assignment) error
}

// AssetRepo хранит метаданные исходных материалов.
type AssetRepo interface {
	SaveAsset(asset Asset) error
	GetAsset(id string) (Asset, error)
}

// StrategyRepo выдаёт редакционную стратегию студии.
type StrategyRepo interface {
	ListPillars() ([]Pillar, error)
	UpsertPillar(pillar Pillar) (Pillar, error)
}

// SlotRepo управляет шаблонами еженедельных слотов.
type SlotRepo interface {
	ListSlotTemplates() ([]WeeklySlotTemplate, error)
	ReplaceSlotTemplates(templates []WeeklySlotTemplate) error
}

// Scorer оценивает пригодность поста к публикации по шкале 0–100.
// now — момент оценки: при одинаковых аргументах результат воспроизводим.
type Scorer interface {
	Score(post Post, asset Asset, all []Post, dna EditorialDNA, now time.Time) int
}

// Notifier доставляет итоги планирования в рабочий чат маркетинга.
type Notifier interface {
	NotifySchedule(ctx context.Context, result ScheduleResult) error
	NotifyReviewBacklog(ctx context.Context, posts []Post) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
