package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
)

const statsCacheKey = "queue:stats"
const statsCacheTTL = 30 * time.Second

// ErrDateRequired возвращается при попытке перевести пост в scheduled без даты
// публикации: постановку в календарь выполняет планировщик или метод Schedule.
var ErrDateRequired = errors.New("перевод в scheduled требует даты публикации")

// Service реализует ручные действия ревью над очередью контента.
type Service struct {
	posts domain.PostRepo
	cache domain.Cache
}

// NewService создаёт сервис очереди. cache может быть nil.
func NewService(posts domain.PostRepo, cache domain.Cache) *Service {
	return &Service{posts: posts, cache: cache}
}

// Transition применяет переход жизненного цикла к посту. При отклонении
// корневого поста каскадно отклоняются производные, и все изменения
// сохраняются атомарно. Возвращает все изменённые посты.
func (s *Service) Transition(ctx context.Context, postID string, next domain.PostStatus) ([]domain.Post, error) {
	// Статус scheduled без даты нарушил бы инвариант календаря.
	if next == domain.PostStatusScheduled {
		return nil, fmt.Errorf("пост %s: %w", postID, ErrDateRequired)
	}
	post, err := s.posts.GetPost(postID)
	if err != nil {
		return nil, fmt.Errorf("получение поста: %w", err)
	}

	updated, err := domain.ApplyTransition(post, next)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			metrics.InvalidTransitionsTotal.Inc()
		}
		return nil, err
	}

	changed := []domain.Post{updated}
	if next == domain.PostStatusRejected && updated.IsCore {
		derivatives, err := s.posts.ListDerivatives(updated.ID)
		if err != nil {
			return nil, fmt.Errorf("выборка производных: %w", err)
		}
		cascaded := domain.CascadeRejection(updated, derivatives)
		metrics.CascadeRejectionsTotal.Add(float64(len(cascaded)))
		changed = append(changed, cascaded...)
	}

	if err := s.posts.UpdatePosts(changed...); err != nil {
		return nil, fmt.Errorf("сохранение переходов: %w", err)
	}
	metrics.IncTransition(string(next))
	return changed, nil
}

// Schedule ставит пост на конкретную дату вручную, минуя автопланировщик.
func (s *Service) Schedule(ctx context.Context, postID string, date time.Time) (domain.Post, error) {
	post, err := s.posts.GetPost(postID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение поста: %w", err)
	}
	updated, err := domain.Schedule(post, date)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			metrics.InvalidTransitionsTotal.Inc()
		}
		return domain.Post{}, err
	}
	if err := s.posts.UpdatePosts(updated); err != nil {
		return domain.Post{}, fmt.Errorf("сохранение перехода: %w", err)
	}
	metrics.IncTransition(string(domain.PostStatusScheduled))
	return updated, nil
}

// ValidNext возвращает допустимые следующие статусы поста.
func (s *Service) ValidNext(ctx context.Context, postID string) ([]domain.PostStatus, error) {
	post, err := s.posts.GetPost(postID)
	if err != nil {
		return nil, fmt.Errorf("получение поста: %w", err)
	}
	return domain.ValidTransitions(post.Status), nil
}

// Stats возвращает распределение очереди по статусам. Результат ненадолго
// кэшируется для дашборда.
func (s *Service) Stats(ctx context.Context) (map[domain.PostStatus]int, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(statsCacheKey); err == nil && len(raw) > 0 {
			var cached map[domain.PostStatus]int
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	posts, err := s.posts.ListAllPosts()
	if err != nil {
		return nil, fmt.Errorf("выборка коллекции постов: %w", err)
	}
	stats := domain.QueueStats(posts)

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(statsCacheKey, raw, statsCacheTTL)
		}
	}
	return stats, nil
}
