package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
)

// ErrEmptyBatch возвращается для пакета без корневого поста.
var ErrEmptyBatch = errors.New("пустой пакет контента")

// ErrChannelMissing возвращается, если у поста не указана площадка.
var ErrChannelMissing = errors.New("у поста не указана площадка")

const batchDedupTTL = 24 * time.Hour

// Service регистрирует пакеты контента от внешнего генератора: один корневой
// пост и производные от того же материала.
type Service struct {
	posts  domain.PostRepo
	assets domain.AssetRepo
	cache  domain.Cache
}

// NewService создаёт сервис приёма. cache используется для дедупликации
// пакетов по batch_id и может быть nil.
func NewService(posts domain.PostRepo, assets domain.AssetRepo, cache domain.Cache) *Service {
	return &Service{posts: posts, assets: assets, cache: cache}
}

// Register сохраняет пакет в очередь в статусе inbox. Повторный пакет с тем же
// batch_id пропускается без ошибки: возвращается пустой список.
func (s *Service) Register(ctx context.Context, job domain.IntakeJob) ([]domain.Post, error) {
	if err := validate(job); err != nil {
		return nil, err
	}

	var created []domain.Post
	register := func() error {
		posts, err := s.register(job)
		if err != nil {
			return err
		}
		created = posts
		return nil
	}

	if s.cache != nil && job.BatchID != "" {
		if err := s.cache.Once("intake:batch:"+job.BatchID, batchDedupTTL, register); err != nil {
			return nil, err
		}
	} else {
		if err := register(); err != nil {
			return nil, err
		}
	}

	if len(created) > 0 {
		metrics.IntakeBatchesTotal.Inc()
		metrics.IntakePostsTotal.Add(float64(len(created)))
	}
	return created, nil
}

func (s *Service) register(job domain.IntakeJob) ([]domain.Post, error) {
	if s.assets != nil && job.Asset.ID != "" {
		if err := s.assets.SaveAsset(job.Asset); err != nil {
			return nil, fmt.Errorf("сохранение материала: %w", err)
		}
	}

	now := time.Now().UTC()
	core := buildPost(job.Core, job.Asset, now)
	core.IsCore = true

	posts := make([]domain.Post, 0, 1+len(job.Derivatives))
	for _, d := range job.Derivatives {
		derivative := buildPost(d, job.Asset, now)
		derivative.ParentPostID = core.ID
		core.DerivativeIDs = append(core.DerivativeIDs, derivative.ID)
		posts = append(posts, derivative)
	}
	posts = append([]domain.Post{core}, posts...)

	if err := s.posts.SavePosts(posts); err != nil {
		return nil, fmt.Errorf("сохранение пакета: %w", err)
	}
	return posts, nil
}

func buildPost(in domain.IntakePost, asset domain.Asset, now time.Time) domain.Post {
	post := domain.Post{
		ID:          uuid.NewString(),
		AssetID:     asset.ID,
		Channel:     in.Channel,
		Format:      in.Format,
		Status:      domain.PostStatusInbox,
		Weight:      in.Weight,
		PillarID:    in.PillarID,
		PayloadJSON: in.Payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Weight == "" {
		post.Weight = domain.ClassifyWeight(post, asset)
	}
	return post
}

func validate(job domain.IntakeJob) error {
	if job.Core.Channel == "" && len(job.Derivatives) == 0 {
		return ErrEmptyBatch
	}
	if job.Core.Channel == "" {
		return fmt.Errorf("корневой пост: %w", ErrChannelMissing)
	}
	for i, d := range job.Derivatives {
		if d.Channel == "" {
			return fmt.Errorf("производный пост %d: %w", i, ErrChannelMissing)
		}
	}
	return nil
}
