package schedule

import (
	"sort"
	"time"

	"content-factory/internal/domain"
)

// Policy задаёт пределы планирования.
type Policy struct {
	WindowDays   int
	HeavyPerWeek int
}

// DefaultPolicy возвращает пределы по умолчанию.
func DefaultPolicy() Policy {
	return Policy{WindowDays: 14, HeavyPerWeek: 1}
}

// Planner раскладывает одобренные посты по календарю: жадный детерминированный
// проход в один заход. Планировщик ничего не мутирует и никогда не падает:
// неразмещённый пост просто отсутствует в результате.
type Planner struct {
	policy Policy
}

// NewPlanner создаёт планировщик.
func NewPlanner(policy Policy) *Planner {
	if policy.WindowDays <= 0 {
		policy.WindowDays = DefaultPolicy().WindowDays
	}
	if policy.HeavyPerWeek <= 0 {
		policy.HeavyPerWeek = DefaultPolicy().HeavyPerWeek
	}
	return &Planner{policy: policy}
}

type slotKey struct {
	date    string
	channel domain.Channel
}

// Plan назначает даты одобренным постам. Уже запланированные посты неподвижны
// и участвуют только в проверках занятости и недельного потолка.
func (p *Planner) Plan(approved, scheduled []domain.Post, templates []domain.WeeklySlotTemplate, start time.Time) []domain.Assignment {
	if len(approved) == 0 || len(templates) == 0 {
		return nil
	}

	queue := append([]domain.Post(nil), approved...)
	sort.SliceStable(queue, func(i, j int) bool {
		si, sj := scoreOf(queue[i]), scoreOf(queue[j])
		if si != sj {
			return si > sj
		}
		if !queue[i].CreatedAt.Equal(queue[j].CreatedAt) {
			return queue[i].CreatedAt.Before(queue[j].CreatedAt)
		}
		return queue[i].ID < queue[j].ID
	})

	occupied := make(map[slotKey]bool)
	heavyByWeek := make(map[string]int)
	for _, post := range scheduled {
		if post.ScheduledDate == nil {
			continue
		}
		occupied[slotKey{date: domain.DateKey(*post.ScheduledDate), channel: post.Channel}] = true
		if post.Weight == domain.WeightHeavy {
			heavyByWeek[domain.ISOWeekKey(*post.ScheduledDate)]++
		}
	}

	byWeekday := make(map[time.Weekday][]domain.WeeklySlotTemplate)
	for _, tpl := range templates {
		byWeekday[tpl.DayOfWeek] = append(byWeekday[tpl.DayOfWeek], tpl)
	}

	first := start.UTC().Truncate(24 * time.Hour)
	var assignments []domain.Assignment
	for _, post := range queue {
		for offset := 0; offset < p.policy.WindowDays; offset++ {
			date := first.AddDate(0, 0, offset)
			if !channelPermitted(byWeekday[date.Weekday()], post.Channel) {
				continue
			}
			key := slotKey{date: domain.DateKey(date), channel: post.Channel}
			if occupied[key] {
				continue
			}
			week := domain.ISOWeekKey(date)
			if post.Weight == domain.WeightHeavy && heavyByWeek[week]+1 > p.policy.HeavyPerWeek {
				continue
			}
			occupied[key] = true
			if post.Weight == domain.WeightHeavy {
				heavyByWeek[week]++
			}
			assignments = append(assignments, domain.Assignment{
				PostID:        post.ID,
				ScheduledDate: date,
				Status:        domain.PostStatusScheduled,
			})
			break
		}
	}
	return assignments
}

func scoreOf(post domain.Post) int {
	if post.Score == nil {
		return 0
	}
	return *post.Score
}

func channelPermitted(templates []domain.WeeklySlotTemplate, channel domain.Channel) bool {
	for _, tpl := range templates {
		if tpl.Permits(channel) {
			return true
		}
	}
	return false
}
