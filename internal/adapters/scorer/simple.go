package scorer

import (
	"math"
	"time"

	"content-factory/internal/domain"
)

// Weights задаёт веса компонент оценки. Значения — редакционная политика,
// структурный контракт только один: оценка монотонна по качеству материала.
type Weights struct {
	Quality    float64
	Freshness  float64
	Pillar     float64
	ChannelFit float64
}

// DefaultWeights — веса по умолчанию до подтверждения продуктом.
func DefaultWeights() Weights {
	return Weights{Quality: 0.4, Freshness: 0.2, Pillar: 0.25, ChannelFit: 0.15}
}

// SimpleScorer применяет эвристический скоринг 0–100.
type SimpleScorer struct {
	weights          Weights
	maxStaleDays     float64
	pillarWindowDays int
}

var _ domain.Scorer = (*SimpleScorer)(nil)

// NewSimple создаёт скорер. maxStaleDays ограничивает штраф за залёживание,
// pillarWindowDays — окно оценки покрытия рубрик.
func NewSimple(weights Weights, maxStaleDays float64, pillarWindowDays int) *SimpleScorer {
	return &SimpleScorer{weights: weights, maxStaleDays: maxStaleDays, pillarWindowDays: pillarWindowDays}
}

// preferredChannels задаёт соответствие формата площадке.
var preferredChannels = map[domain.AssetFormat][]domain.Channel{
	domain.FormatReel:        {domain.ChannelReels, domain.ChannelIGStories},
	domain.FormatLongVideo:   {domain.ChannelYouTube},
	domain.FormatCarousel:    {domain.ChannelIGFeed, domain.ChannelLinkedIn},
	domain.FormatSingleImage: {domain.ChannelIGFeed, domain.ChannelIGStories, domain.ChannelLinkedIn, domain.ChannelTelegram},
	domain.FormatStory:       {domain.ChannelIGStories},
	domain.FormatText:        {domain.ChannelLinkedIn, domain.ChannelTelegram},
}

// Score возвращает оценку поста в диапазоне [0,100] на момент now.
// Функция чистая: ничего не мутирует и не падает.
func (s *SimpleScorer) Score(post domain.Post, asset domain.Asset, all []domain.Post, dna domain.EditorialDNA, now time.Time) int {
	quality := 0.5
	if asset.Quality != nil {
		quality = clamp01(*asset.Quality)
	}

	fresh := 1.0
	if !post.CreatedAt.IsZero() && s.maxStaleDays > 0 {
		ageDays := now.UTC().Sub(post.CreatedAt).Hours() / 24
		if ageDays > 0 {
			fresh = 1 - math.Min(ageDays/s.maxStaleDays, 1)
		}
	}

	pillar := s.pillarCoverage(post, all, dna, now)
	fit := channelFit(post)

	total := s.weights.Quality + s.weights.Freshness + s.weights.Pillar + s.weights.ChannelFit
	if total <= 0 {
		return 0
	}
	composite := (s.weights.Quality*quality + s.weights.Freshness*fresh + s.weights.Pillar*pillar + s.weights.ChannelFit*fit) / total
	score := int(math.Round(composite * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// pillarCoverage поощряет рубрики, недопредставленные среди недавно
// запланированных постов: чем меньше доля рубрики, тем выше компонента.
func (s *SimpleScorer) pillarCoverage(post domain.Post, all []domain.Post, dna domain.EditorialDNA, now time.Time) float64 {
	if post.PillarID == "" {
		return 0.5
	}
	if _, ok := dna.PillarByID(post.PillarID); !ok {
		return 0.5
	}
	since := now.UTC().AddDate(0, 0, -s.pillarWindowDays)
	recent := 0
	samePillar := 0
	for _, p := range all {
		if p.ScheduledDate == nil || p.ScheduledDate.Before(since) {
			continue
		}
		switch p.Status {
		case domain.PostStatusScheduled, domain.PostStatusPublished, domain.PostStatusMeasured:
		default:
			continue
		}
		recent++
		if p.PillarID == post.PillarID {
			samePillar++
		}
	}
	if recent == 0 {
		return 1
	}
	return 1 - float64(samePillar)/float64(recent)
}

func channelFit(post domain.Post) float64 {
	for _, ch := range preferredChannels[post.Format] {
		if ch == post.Channel {
			return 1
		}
	}
	return 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
