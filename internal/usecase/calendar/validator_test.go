package calendar

import (
	"testing"
	"time"

	"content-factory/internal/domain"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestValidateChannelCollision(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
		{ID: "c", Status: domain.PostStatusScheduled, Channel: domain.ChannelLinkedIn, ScheduledDate: datePtr(day)},
	}
	reports := NewValidator(DefaultPolicy()).Validate(posts, now)
	collisions := filterKind(reports, domain.ConflictChannelCollision)
	if len(collisions) != 1 {
		t.Fatalf("ожидали 1 коллизию, получили %d: %v", len(collisions), reports)
	}
	if !collisions[0].Date.Equal(day) {
		t.Fatalf("ожидали дату %v, получили %v", day, collisions[0].Date)
	}
}

func TestValidateIgnoresUncommitted(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
	}
	if reports := NewValidator(DefaultPolicy()).Validate(posts, now); len(reports) != 0 {
		t.Fatalf("approved не участвует в календаре, получили %v", reports)
	}
}

func TestValidateIgnoresOutsideWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	far := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(far)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(far)},
	}
	if reports := NewValidator(DefaultPolicy()).Validate(posts, now); len(reports) != 0 {
		t.Fatalf("посты вне окна не проверяются, получили %v", reports)
	}
}

func TestValidateWeightOverload(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	wed := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelReels, Weight: domain.WeightHeavy, ScheduledDate: datePtr(mon)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelYouTube, Weight: domain.WeightHeavy, ScheduledDate: datePtr(wed)},
	}
	reports := NewValidator(DefaultPolicy()).Validate(posts, now)
	overloads := filterKind(reports, domain.ConflictWeightOverload)
	if len(overloads) != 1 {
		t.Fatalf("ожидали 1 перегрузку недели, получили %d: %v", len(overloads), reports)
	}
	if !overloads[0].Date.Equal(mon) {
		t.Fatalf("ожидали понедельник недели %v, получили %v", mon, overloads[0].Date)
	}
}

func TestValidateWeightUnderCeiling(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	nextMon := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelReels, Weight: domain.WeightHeavy, ScheduledDate: datePtr(mon)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelReels, Weight: domain.WeightHeavy, ScheduledDate: datePtr(nextMon)},
	}
	reports := NewValidator(DefaultPolicy()).Validate(posts, now)
	if overloads := filterKind(reports, domain.ConflictWeightOverload); len(overloads) != 0 {
		t.Fatalf("по одному тяжёлому посту в неделю — не перегрузка: %v", overloads)
	}
}

func TestValidatePillarImbalance(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, PillarID: "objects", ScheduledDate: datePtr(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelLinkedIn, PillarID: "objects", ScheduledDate: datePtr(time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC))},
		{ID: "c", Status: domain.PostStatusScheduled, Channel: domain.ChannelTelegram, PillarID: "objects", ScheduledDate: datePtr(time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC))},
		{ID: "d", Status: domain.PostStatusScheduled, Channel: domain.ChannelReels, PillarID: "process", ScheduledDate: datePtr(time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC))},
	}
	reports := NewValidator(DefaultPolicy()).Validate(posts, now)
	imbalances := filterKind(reports, domain.ConflictPillarImbalance)
	if len(imbalances) != 1 {
		t.Fatalf("ожидали 1 перекос рубрики, получили %d: %v", len(imbalances), reports)
	}
}

func TestValidatePillarBalancedQuiet(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, PillarID: "objects", ScheduledDate: datePtr(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelLinkedIn, PillarID: "process", ScheduledDate: datePtr(time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC))},
		{ID: "c", Status: domain.PostStatusScheduled, Channel: domain.ChannelTelegram, PillarID: "people", ScheduledDate: datePtr(time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC))},
	}
	reports := NewValidator(DefaultPolicy()).Validate(posts, now)
	if imbalances := filterKind(reports, domain.ConflictPillarImbalance); len(imbalances) != 0 {
		t.Fatalf("сбалансированное окно не должно давать перекосов: %v", imbalances)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	posts := []domain.Post{
		{ID: "a", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
		{ID: "b", Status: domain.PostStatusScheduled, Channel: domain.ChannelIGFeed, ScheduledDate: datePtr(day)},
	}
	NewValidator(DefaultPolicy()).Validate(posts, now)
	if posts[0].Status != domain.PostStatusScheduled || posts[1].ID != "b" {
		t.Fatalf("валидатор не должен менять входные посты")
	}
}

func filterKind(reports []domain.ConflictReport, kind domain.ConflictKind) []domain.ConflictReport {
	var out []domain.ConflictReport
	for _, r := range reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
