package schedule

import (
	"fmt"
	"testing"
	"time"

	"content-factory/internal/domain"
	"content-factory/internal/usecase/calendar"
)

func intPtr(v int) *int { return &v }

// start — вторник, первый понедельник окна 2026-09-07.
var testStart = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func mondayTemplate() []domain.WeeklySlotTemplate {
	return []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed, domain.ChannelLinkedIn}},
	}
}

func TestPlanPlacesByScoreOnEligibleDates(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	approved := []domain.Post{
		{ID: "low", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, Score: intPtr(40), CreatedAt: testStart.Add(-time.Hour)},
		{ID: "high", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, Score: intPtr(90), CreatedAt: testStart.Add(-2 * time.Hour)},
	}
	assignments := planner.Plan(approved, nil, mondayTemplate(), testStart)
	if len(assignments) != 2 {
		t.Fatalf("ожидали 2 назначения, получили %d", len(assignments))
	}
	firstMonday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	secondMonday := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	if assignments[0].PostID != "high" || !assignments[0].ScheduledDate.Equal(firstMonday) {
		t.Fatalf("пост с оценкой 90 должен занять первый понедельник: %+v", assignments[0])
	}
	if assignments[1].PostID != "low" || !assignments[1].ScheduledDate.Equal(secondMonday) {
		t.Fatalf("пост с оценкой 40 должен уйти на следующий понедельник: %+v", assignments[1])
	}
	for _, a := range assignments {
		if a.Status != domain.PostStatusScheduled {
			t.Fatalf("назначение должно переводить в scheduled, получили %s", a.Status)
		}
	}
}

func TestPlanNeverDuplicatesSlot(t *testing.T) {
	planner := NewPlanner(Policy{WindowDays: 28, HeavyPerWeek: 1})
	var approved []domain.Post
	for i := 0; i < 10; i++ {
		approved = append(approved, domain.Post{
			ID:        fmt.Sprintf("p%02d", i),
			Status:    domain.PostStatusApproved,
			Channel:   domain.ChannelIGFeed,
			Weight:    domain.WeightLight,
			Score:     intPtr(50),
			CreatedAt: testStart.Add(time.Duration(i) * time.Minute),
		})
	}
	assignments := planner.Plan(approved, nil, mondayTemplate(), testStart)
	seen := make(map[string]bool)
	for _, a := range assignments {
		key := domain.DateKey(a.ScheduledDate) + "/" + string(domain.ChannelIGFeed)
		if seen[key] {
			t.Fatalf("слот %s занят дважды", key)
		}
		seen[key] = true
	}
	// в окне 28 дней четыре понедельника
	if len(assignments) != 4 {
		t.Fatalf("ожидали 4 размещения, получили %d", len(assignments))
	}
}

func TestPlanStaysInsideWindow(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	var approved []domain.Post
	for i := 0; i < 6; i++ {
		approved = append(approved, domain.Post{
			ID:        fmt.Sprintf("p%d", i),
			Status:    domain.PostStatusApproved,
			Channel:   domain.ChannelIGFeed,
			Weight:    domain.WeightLight,
			Score:     intPtr(50),
			CreatedAt: testStart,
		})
	}
	assignments := planner.Plan(approved, nil, mondayTemplate(), testStart)
	windowEnd := testStart.UTC().Truncate(24 * time.Hour).AddDate(0, 0, DefaultPolicy().WindowDays)
	for _, a := range assignments {
		if a.ScheduledDate.Before(testStart.UTC().Truncate(24*time.Hour)) || !a.ScheduledDate.Before(windowEnd) {
			t.Fatalf("назначение %v выходит за окно", a.ScheduledDate)
		}
	}
}

func TestPlanRespectsHeavyCeilingAcrossExisting(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	// окно стартует в понедельник, неделя которого уже занята тяжёлым постом
	start := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	existingDate := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	scheduled := []domain.Post{
		{ID: "old", Status: domain.PostStatusScheduled, Channel: domain.ChannelReels, Weight: domain.WeightHeavy, ScheduledDate: &existingDate},
	}
	templates := []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelReels}},
		{DayOfWeek: time.Wednesday, Label: "Среда", Channels: []domain.Channel{domain.ChannelReels}},
	}
	approved := []domain.Post{
		{ID: "new", Status: domain.PostStatusApproved, Channel: domain.ChannelReels, Weight: domain.WeightHeavy, Score: intPtr(80), CreatedAt: start},
	}
	assignments := planner.Plan(approved, scheduled, templates, start)
	if len(assignments) != 1 {
		t.Fatalf("ожидали 1 назначение, получили %d", len(assignments))
	}
	nextMonday := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	if !assignments[0].ScheduledDate.Equal(nextMonday) {
		t.Fatalf("тяжёлый пост должен уйти на следующую неделю, получили %v", assignments[0].ScheduledDate)
	}
}

func TestPlanTieBreakByCreatedAt(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	approved := []domain.Post{
		{ID: "young", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, Score: intPtr(70), CreatedAt: testStart},
		{ID: "old", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, Score: intPtr(70), CreatedAt: testStart.Add(-48 * time.Hour)},
	}
	assignments := planner.Plan(approved, nil, mondayTemplate(), testStart)
	if len(assignments) != 2 {
		t.Fatalf("ожидали 2 назначения, получили %d", len(assignments))
	}
	if assignments[0].PostID != "old" {
		t.Fatalf("при равной оценке первым размещается более старый пост")
	}
}

func TestPlanOmitsUnplaceable(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	approved := []domain.Post{
		{ID: "yt", Status: domain.PostStatusApproved, Channel: domain.ChannelYouTube, Weight: domain.WeightHeavy, Score: intPtr(95), CreatedAt: testStart},
		{ID: "feed", Status: domain.PostStatusApproved, Channel: domain.ChannelIGFeed, Weight: domain.WeightLight, Score: intPtr(10), CreatedAt: testStart},
	}
	assignments := planner.Plan(approved, nil, mondayTemplate(), testStart)
	if len(assignments) != 1 {
		t.Fatalf("непомещаемый пост опускается без ошибки, получили %d назначений", len(assignments))
	}
	if assignments[0].PostID != "feed" {
		t.Fatalf("ожидали размещение только ig-feed поста")
	}
}

func TestPlanOutputPassesValidator(t *testing.T) {
	planner := NewPlanner(DefaultPolicy())
	templates := []domain.WeeklySlotTemplate{
		{DayOfWeek: time.Monday, Label: "Понедельник", Channels: []domain.Channel{domain.ChannelIGFeed, domain.ChannelLinkedIn}},
		{DayOfWeek: time.Thursday, Label: "Четверг", Channels: []domain.Channel{domain.ChannelIGFeed, domain.ChannelTelegram}},
	}
	var approved []domain.Post
	for i := 0; i < 8; i++ {
		channel := domain.ChannelIGFeed
		if i%2 == 0 {
			channel = domain.ChannelLinkedIn
		}
		approved = append(approved, domain.Post{
			ID:        fmt.Sprintf("p%d", i),
			Status:    domain.PostStatusApproved,
			Channel:   channel,
			Weight:    domain.WeightLight,
			Score:     intPtr(100 - i),
			CreatedAt: testStart,
		})
	}
	assignments := planner.Plan(approved, nil, templates, testStart)

	byID := make(map[string]domain.Assignment)
	for _, a := range assignments {
		byID[a.PostID] = a
	}
	var committed []domain.Post
	for _, p := range approved {
		a, ok := byID[p.ID]
		if !ok {
			continue
		}
		date := a.ScheduledDate
		p.Status = domain.PostStatusScheduled
		p.ScheduledDate = &date
		committed = append(committed, p)
	}

	reports := calendar.NewValidator(calendar.DefaultPolicy()).Validate(committed, testStart)
	for _, r := range reports {
		if r.Kind == domain.ConflictChannelCollision {
			t.Fatalf("вывод планировщика не должен содержать коллизий: %v", r)
		}
	}
}
