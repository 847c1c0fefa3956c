package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition возвращается при попытке недопустимого перехода статуса.
var ErrInvalidTransition = errors.New("недопустимый переход статуса")

// transitions задаёт граф жизненного цикла как данные: статус → допустимые следующие.
var transitions = map[PostStatus][]PostStatus{
	PostStatusInbox:     {PostStatusGenerated},
	PostStatusGenerated: {PostStatusReview},
	PostStatusReview:    {PostStatusApproved, PostStatusRejected},
	PostStatusApproved:  {PostStatusScheduled, PostStatusRejected},
	PostStatusScheduled: {PostStatusPublished, PostStatusRejected},
	PostStatusPublished: {PostStatusMeasured},
	PostStatusMeasured:  {},
	PostStatusRejected:  {},
}

// ValidTransitions возвращает допустимые следующие статусы. Для терминальных — пусто.
func ValidTransitions(status PostStatus) []PostStatus {
	next, ok := transitions[status]
	if !ok {
		return nil
	}
	return append([]PostStatus(nil), next...)
}

// CanTransition проверяет, является ли переход ребром графа жизненного цикла.
func CanTransition(from, to PostStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyTransition переводит пост в следующий статус. Ничего не сохраняет:
// вызывающий отвечает за персистентность. Переход в scheduled выполняется
// через Schedule, поскольку требует даты.
func ApplyTransition(post Post, next PostStatus) (Post, error) {
	if !CanTransition(post.Status, next) {
		return Post{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, post.Status, next)
	}
	post.Status = next
	if next == PostStatusRejected {
		post.ScheduledDate = nil
		if post.RejectReason == "" {
			post.RejectReason = RejectReasonManual
		}
	}
	post.UpdatedAt = time.Now().UTC()
	return post, nil
}

// Schedule ставит пост на дату: переход approved → scheduled плюс установка даты.
func Schedule(post Post, date time.Time) (Post, error) {
	updated, err := ApplyTransition(post, PostStatusScheduled)
	if err != nil {
		return Post{}, err
	}
	day := date.UTC().Truncate(24 * time.Hour)
	updated.ScheduledDate = &day
	return updated, nil
}

// CascadeRejection применяет каскад отклонения корневого поста к производным.
// Производные в published/measured не трогаются: история неизменяема.
// Возвращает только изменённые посты; вызывающий применяет их атомарно.
func CascadeRejection(core Post, derivatives []Post) []Post {
	if !core.IsCore {
		return nil
	}
	var updated []Post
	for _, d := range derivatives {
		if d.ParentPostID != core.ID {
			continue
		}
		switch d.Status {
		case PostStatusPublished, PostStatusMeasured, PostStatusRejected:
			continue
		}
		d.Status = PostStatusRejected
		d.RejectReason = RejectReasonCascade
		d.ScheduledDate = nil
		d.UpdatedAt = time.Now().UTC()
		updated = append(updated, d)
	}
	return updated
}

// QueueStats считает посты по статусам. Сумма равна размеру коллекции.
func QueueStats(posts []Post) map[PostStatus]int {
	stats := make(map[PostStatus]int, len(AllStatuses))
	for _, status := range AllStatuses {
		stats[status] = 0
	}
	for _, p := range posts {
		stats[p.Status]++
	}
	return stats
}
