package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"content-factory/internal/domain"
	"content-factory/internal/usecase/calendar"
)

type stubRepo struct {
	posts       map[string]domain.Post
	templates   []domain.WeeklySlotTemplate
	pillars     []domain.Pillar
	assets      map[string]domain.Asset
	applied     [][]domain.Assignment
	applyErr    error
	scoredSaves int
}

func newStubRepo(posts ...domain.Post) *stubRepo {
	repo := &stubRepo{posts: make(map[string]domain.Post), assets: make(map[string]domain.Asset)}
	for _, p := range posts {
		repo.posts[p.ID] = p
	}
	return repo
}

func (r *stubRepo) SavePosts(posts []domain.Post) error {
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return nil
}

func (r *stubRepo) GetPost(id string) (domain.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrPostNotFound
	}
	return post, nil
}

func (r *stubRepo) ListAllPosts() ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range r.posts {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubRepo) ListByStatus(statuses ...domain.PostStatus) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range r.posts {
		for _, status := range statuses {
			if p.Status == status {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (r *stubRepo) ListDerivatives(coreID string) ([]domain.Post, error) { return nil, nil }

func (r *stubRepo) UpdatePosts(posts ...domain.Post) error {
	r.scoredSaves++
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return nil
}

func (r *stubRepo) ApplyAssignments(assignments []domain.Assignment) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	r.applied = append(r.applied, assignments)
	for _, a := range assignments {
		post := r.posts[a.PostID]
		date := a.ScheduledDate
		post.Status = domain.PostStatusScheduled
		post.ScheduledDate = &date
		r.posts[a.PostID] = post
	}
	return nil
}

func (r *stubRepo) SaveAsset(asset domain.Asset) error {
	r.assets[asset.ID] = asset
	return nil
}

func (r *stubRepo) GetAsset(id string) (domain.Asset, error) { return r.assets[id], nil }

func (r *stubRepo) ListPillars() ([]domain.Pillar, error) { return r.pillars, nil }

func (r *stubRepo) UpsertPillar(pillar domain.Pillar) (domain.Pillar, error) { return pillar, nil }

func (r *stubRepo) ListSlotTemplates() ([]domain.WeeklySlotTemplate, error) { return r.templates, nil }

func (r *stubRepo) ReplaceSlotTemplates(templates []domain.WeeklySlotTemplate) error {
	r.templates = templates
	return nil
}

type fixedScorer struct {
	scores map[string]int
}

func (f *fixedScorer) Score(post domain.Post, _ domain.Asset, _ []domain.Post, _ domain.EditorialDNA, _ time.Time) int {
	return f.scores[post.ID]
}

type captureNotifier struct {
	results []domain.ScheduleResult
}

func (n *captureNotifier) NotifySchedule(_ context.Context, result domain.ScheduleResult) error {
	n.results = append(n.results, result)
	return nil
}

func (n *captureNotifier) NotifyReviewBacklog(context.Context, []domain.Post) error { return nil }

func newTestService(repo *stubRepo, scorer domain.Scorer, notifier domain.Notifier) *Service {
	return NewService(repo, repo, repo, repo, scorer, NewPlanner(DefaultPolicy()), calendar.NewValidator(calendar.DefaultPolicy()), notifier, zerolog.Nop())
}

func TestRunAutoSchedulePlacesApproved(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubRepo(
		domain.Post{ID: "a", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start.Add(-time.Hour)},
		domain.Post{ID: "b", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start.Add(-2 * time.Hour)},
	)
	repo.templates = []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed}},
	}
	notifier := &captureNotifier{}
	service := newTestService(repo, &fixedScorer{scores: map[string]int{"a": 90, "b": 40}}, notifier)

	result, err := service.RunAutoSchedule(context.Background(), start)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(result.Assignments) != 2 {
		t.Fatalf("ожидали 2 назначения, получили %d", len(result.Assignments))
	}
	if len(repo.applied) != 1 {
		t.Fatalf("назначения применяются одним атомарным вызовом")
	}
	if repo.posts["a"].Status != domain.PostStatusScheduled || repo.posts["a"].ScheduledDate == nil {
		t.Fatalf("пост a должен стать scheduled с датой")
	}
	if result.Assignments[0].PostID != "a" {
		t.Fatalf("первым размещается пост с большей оценкой")
	}
	if len(notifier.results) != 1 {
		t.Fatalf("итоги прогона должны уходить в чат")
	}
}

func TestRunAutoScheduleComputesMissingScores(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubRepo(
		domain.Post{ID: "a", AssetID: "asset-1", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start},
	)
	repo.assets["asset-1"] = domain.Asset{ID: "asset-1"}
	repo.templates = []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed}},
	}
	service := newTestService(repo, &fixedScorer{scores: map[string]int{"a": 77}}, nil)

	if _, err := service.RunAutoSchedule(context.Background(), start); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.scoredSaves != 1 {
		t.Fatalf("недостающие оценки должны сохраняться")
	}
	if repo.posts["a"].Score == nil || *repo.posts["a"].Score != 77 {
		t.Fatalf("ожидали сохранённую оценку 77, получили %v", repo.posts["a"].Score)
	}
}

func TestRunAutoScheduleReportsUnplaced(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubRepo(
		domain.Post{ID: "yt", Status: domain.PostStatusApproved, Channel: domain.ChannelYouTube, Weight: domain.WeightHeavy, CreatedAt: start},
	)
	repo.templates = []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed}},
	}
	service := newTestService(repo, &fixedScorer{scores: map[string]int{"yt": 99}}, nil)

	result, err := service.RunAutoSchedule(context.Background(), start)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(result.Assignments) != 0 {
		t.Fatalf("постам без подходящего слота не назначается дата")
	}
	if len(result.Unplaced) != 1 || result.Unplaced[0].ID != "yt" {
		t.Fatalf("неразмещённый пост должен попасть в итог: %+v", result.Unplaced)
	}
	if repo.posts["yt"].Status != domain.PostStatusApproved {
		t.Fatalf("неразмещённый пост остаётся approved")
	}
}

func TestRunAutoScheduleSurfacesAssignmentConflict(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubRepo(
		domain.Post{ID: "a", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start},
	)
	repo.templates = []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed}},
	}
	// Пост успел уйти из approved между чтением и применением.
	repo.applyErr = fmt.Errorf("пост a в статусе review: %w", domain.ErrPostNotApproved)
	service := newTestService(repo, &fixedScorer{scores: map[string]int{"a": 90}}, nil)

	_, err := service.RunAutoSchedule(context.Background(), start)
	if !errors.Is(err, domain.ErrPostNotApproved) {
		t.Fatalf("ожидали ErrPostNotApproved, получили %v", err)
	}
}

func TestRunAutoScheduleSelfConsistent(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubRepo(
		domain.Post{ID: "a", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start},
		domain.Post{ID: "b", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, CreatedAt: start},
		domain.Post{ID: "c", Status: domain.PostStatusApproved, Channel: domain.ChannelLinkedIn, Weight: domain.WeightLight, CreatedAt: start},
	)
	repo.templates = []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed, domain.ChannelLinkedIn}},
		{DayOfWeek: time.Thursday, Label: "Четверг", Channels: []domain.Channel{domain.ChannelIGFeed}},
	}
	service := newTestService(repo, &fixedScorer{scores: map[string]int{"a": 90, "b": 80, "c": 70}}, nil)

	result, err := service.RunAutoSchedule(context.Background(), start)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, c := range result.Conflicts {
		if c.Kind == domain.ConflictChannelCollision {
			t.Fatalf("прогон планировщика не должен создавать коллизий: %v", c)
		}
	}
}
