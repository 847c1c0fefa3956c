package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
	"content-factory/internal/usecase/calendar"
)

// Service отвечает за прогон автопланировщика: загрузка очереди, скоринг,
// раскладка по слотам, атомарное применение и контрольная валидация.
type Service struct {
	posts     domain.PostRepo
	assets    domain.AssetRepo
	strategy  domain.StrategyRepo
	slots     domain.SlotRepo
	scorer    domain.Scorer
	planner   *Planner
	validator *calendar.Validator
	notifier  domain.Notifier
	log       zerolog.Logger
}

// NewService создаёт сервис планирования. notifier может быть nil.
func NewService(posts domain.PostRepo, assets domain.AssetRepo, strategy domain.StrategyRepo, slots domain.SlotRepo, scorer domain.Scorer, planner *Planner, validator *calendar.Validator, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		posts:     posts,
		assets:    assets,
		strategy:  strategy,
		slots:     slots,
		scorer:    scorer,
		planner:   planner,
		validator: validator,
		notifier:  notifier,
		log:       logger,
	}
}

// RunAutoSchedule выполняет один прогон планировщика от указанной даты.
// Неразмещённые посты не считаются ошибкой: они возвращаются в результате.
func (s *Service) RunAutoSchedule(ctx context.Context, start time.Time) (domain.ScheduleResult, error) {
	began := time.Now()
	defer func() { metrics.ScheduleRunSeconds.Observe(time.Since(began).Seconds()) }()

	approved, err := s.posts.ListByStatus(domain.PostStatusApproved)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("выборка одобренных постов: %w", err)
	}
	committed, err := s.posts.ListByStatus(domain.PostStatusScheduled, domain.PostStatusPublished, domain.PostStatusMeasured)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("выборка календаря: %w", err)
	}
	all, err := s.posts.ListAllPosts()
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("выборка коллекции постов: %w", err)
	}
	templates, err := s.slots.ListSlotTemplates()
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("выборка шаблонов слотов: %w", err)
	}
	pillars, err := s.strategy.ListPillars()
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("выборка рубрик: %w", err)
	}
	dna := domain.EditorialDNA{Pillars: pillars}

	approved, err = s.ensureScores(approved, all, dna, start)
	if err != nil {
		return domain.ScheduleResult{}, err
	}

	assignments := s.planner.Plan(approved, committed, templates, start)
	if err := s.posts.ApplyAssignments(assignments); err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("применение назначений: %w", err)
	}
	metrics.SchedulePlacementsTotal.Add(float64(len(assignments)))

	placed := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		placed[a.PostID] = true
	}
	var unplaced []domain.Post
	for _, p := range approved {
		if !placed[p.ID] {
			unplaced = append(unplaced, p)
		}
	}
	metrics.ScheduleUnplacedTotal.Add(float64(len(unplaced)))

	conflicts := s.validator.Validate(applyInMemory(all, assignments), start)
	countConflicts(conflicts)

	result := domain.ScheduleResult{
		Assignments: assignments,
		Unplaced:    unplaced,
		Conflicts:   conflicts,
		RunAt:       began.UTC(),
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySchedule(ctx, result); err != nil {
			s.log.Error().Err(err).Msg("schedule: не удалось отправить итоги в чат")
		}
	}
	return result, nil
}

// ValidateCalendar запускает валидатор по текущей коллекции постов.
func (s *Service) ValidateCalendar(ctx context.Context, now time.Time) ([]domain.ConflictReport, error) {
	all, err := s.posts.ListAllPosts()
	if err != nil {
		return nil, fmt.Errorf("выборка коллекции постов: %w", err)
	}
	conflicts := s.validator.Validate(all, now)
	countConflicts(conflicts)
	return conflicts, nil
}

// ensureScores досчитывает оценку постам без неё и сохраняет результат.
// now фиксирует момент оценки, чтобы прогон был воспроизводим.
func (s *Service) ensureScores(approved, all []domain.Post, dna domain.EditorialDNA, now time.Time) ([]domain.Post, error) {
	var scored []domain.Post
	for i, post := range approved {
		if post.Score != nil {
			continue
		}
		asset := domain.Asset{}
		if post.AssetID != "" {
			if found, err := s.assets.GetAsset(post.AssetID); err == nil {
				asset = found
			}
		}
		value := s.scorer.Score(post, asset, all, dna, now)
		approved[i].Score = &value
		scored = append(scored, approved[i])
	}
	if len(scored) == 0 {
		return approved, nil
	}
	if err := s.posts.UpdatePosts(scored...); err != nil {
		return nil, fmt.Errorf("сохранение оценок: %w", err)
	}
	return approved, nil
}

// applyInMemory строит коллекцию, какой она станет после применения назначений,
// чтобы контрольная валидация видела свежие размещения без повторного чтения.
func applyInMemory(all []domain.Post, assignments []domain.Assignment) []domain.Post {
	if len(assignments) == 0 {
		return all
	}
	byID := make(map[string]domain.Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.PostID] = a
	}
	updated := make([]domain.Post, len(all))
	for i, p := range all {
		if a, ok := byID[p.ID]; ok {
			date := a.ScheduledDate
			p.Status = domain.PostStatusScheduled
			p.ScheduledDate = &date
		}
		updated[i] = p
	}
	return updated
}

func countConflicts(conflicts []domain.ConflictReport) {
	byKind := make(map[domain.ConflictKind]int)
	for _, c := range conflicts {
		byKind[c.Kind]++
	}
	for kind, count := range byKind {
		metrics.IncConflicts(string(kind), count)
	}
}
