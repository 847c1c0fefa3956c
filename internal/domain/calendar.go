package domain

import (
	"fmt"
	"time"
)

// ISOWeekKey возвращает ключ ISO-недели вида "2026-W37".
func ISOWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeekStart возвращает понедельник ISO-недели указанной даты.
func WeekStart(t time.Time) time.Time {
	day := t.UTC().Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DateKey возвращает дату в формате YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
