package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"content-factory/internal/domain"
)

// Policy задаёт редакционные пороги валидации. Значения по умолчанию —
// предмет подтверждения продуктом, поэтому вынесены в конфигурацию.
type Policy struct {
	WindowDays       int
	HeavyPerWeek     int
	PillarWindowDays int
	PillarMaxShare   float64
}

// DefaultPolicy возвращает пороги по умолчанию.
func DefaultPolicy() Policy {
	return Policy{WindowDays: 30, HeavyPerWeek: 1, PillarWindowDays: 14, PillarMaxShare: 0.6}
}

// минимум постов в под-окне, ниже которого доля рубрики не показательна
const pillarMinSample = 3

// Validator проверяет календарь публикаций и возвращает рекомендательные
// отчёты. Валидатор ничего не мутирует: конфликты решает человек.
type Validator struct {
	policy Policy
}

// NewValidator создаёт валидатор.
func NewValidator(policy Policy) *Validator {
	if policy.WindowDays <= 0 {
		policy.WindowDays = DefaultPolicy().WindowDays
	}
	return &Validator{policy: policy}
}

// Validate сканирует окно ±WindowDays от now и возвращает список проблем.
func (v *Validator) Validate(posts []domain.Post, now time.Time) []domain.ConflictReport {
	committed := committedInWindow(posts, now, v.policy.WindowDays)

	var reports []domain.ConflictReport
	reports = append(reports, channelCollisions(committed)...)
	reports = append(reports, weightOverloads(committed, v.policy.HeavyPerWeek)...)
	reports = append(reports, pillarImbalances(committed, v.policy)...)

	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].Date.Equal(reports[j].Date) {
			return reports[i].Date.Before(reports[j].Date)
		}
		return reports[i].Kind < reports[j].Kind
	})
	return reports
}

func committedInWindow(posts []domain.Post, now time.Time, windowDays int) []domain.Post {
	from := now.UTC().AddDate(0, 0, -windowDays)
	to := now.UTC().AddDate(0, 0, windowDays)
	var committed []domain.Post
	for _, p := range posts {
		switch p.Status {
		case domain.PostStatusScheduled, domain.PostStatusPublished, domain.PostStatusMeasured:
		default:
			continue
		}
		if p.ScheduledDate == nil {
			continue
		}
		if p.ScheduledDate.Before(from) || p.ScheduledDate.After(to) {
			continue
		}
		committed = append(committed, p)
	}
	return committed
}

func channelCollisions(posts []domain.Post) []domain.ConflictReport {
	type slot struct {
		date    string
		channel domain.Channel
	}
	grouped := make(map[slot][]domain.Post)
	for _, p := range posts {
		key := slot{date: domain.DateKey(*p.ScheduledDate), channel: p.Channel}
		grouped[key] = append(grouped[key], p)
	}

	var reports []domain.ConflictReport
	for key, group := range grouped {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		ids := make([]string, 0, len(group))
		for _, p := range group {
			ids = append(ids, p.ID)
		}
		reports = append(reports, domain.ConflictReport{
			Kind:    domain.ConflictChannelCollision,
			Date:    *group[0].ScheduledDate,
			Message: fmt.Sprintf("площадка %s занята %d постами на %s: %s", key.channel, len(group), key.date, strings.Join(ids, ", ")),
		})
	}
	return reports
}

func weightOverloads(posts []domain.Post, ceiling int) []domain.ConflictReport {
	if ceiling <= 0 {
		ceiling = DefaultPolicy().HeavyPerWeek
	}
	heavyByWeek := make(map[string]int)
	weekDates := make(map[string]time.Time)
	for _, p := range posts {
		if p.Weight != domain.WeightHeavy {
			continue
		}
		week := domain.ISOWeekKey(*p.ScheduledDate)
		heavyByWeek[week]++
		weekDates[week] = domain.WeekStart(*p.ScheduledDate)
	}

	var reports []domain.ConflictReport
	for week, count := range heavyByWeek {
		if count <= ceiling {
			continue
		}
		reports = append(reports, domain.ConflictReport{
			Kind:    domain.ConflictWeightOverload,
			Date:    weekDates[week],
			Message: fmt.Sprintf("неделя %s перегружена: %d тяжёлых постов при потолке %d", week, count, ceiling),
		})
	}
	return reports
}

// pillarImbalances двигает под-окно по дням и ищет рубрики, занимающие долю
// выше порога. На каждую рубрику выдаётся один отчёт — первое нарушающее окно.
func pillarImbalances(posts []domain.Post, policy Policy) []domain.ConflictReport {
	if len(posts) == 0 || policy.PillarWindowDays <= 0 || policy.PillarMaxShare <= 0 {
		return nil
	}

	minDate := *posts[0].ScheduledDate
	maxDate := *posts[0].ScheduledDate
	for _, p := range posts[1:] {
		if p.ScheduledDate.Before(minDate) {
			minDate = *p.ScheduledDate
		}
		if p.ScheduledDate.After(maxDate) {
			maxDate = *p.ScheduledDate
		}
	}

	reported := make(map[string]bool)
	var reports []domain.ConflictReport
	for start := minDate; !start.After(maxDate); start = start.AddDate(0, 0, 1) {
		end := start.AddDate(0, 0, policy.PillarWindowDays)
		total := 0
		byPillar := make(map[string]int)
		for _, p := range posts {
			if p.ScheduledDate.Before(start) || !p.ScheduledDate.Before(end) {
				continue
			}
			total++
			if p.PillarID != "" {
				byPillar[p.PillarID]++
			}
		}
		if total < pillarMinSample {
			continue
		}
		for pillar, count := range byPillar {
			if reported[pillar] {
				continue
			}
			share := float64(count) / float64(total)
			if share <= policy.PillarMaxShare {
				continue
			}
			reported[pillar] = true
			reports = append(reports, domain.ConflictReport{
				Kind:    domain.ConflictPillarImbalance,
				Date:    start,
				Message: fmt.Sprintf("рубрика %s занимает %.0f%% окна с %s при пороге %.0f%%", pillar, share*100, domain.DateKey(start), policy.PillarMaxShare*100),
			})
		}
	}
	return reports
}
