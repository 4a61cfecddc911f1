// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: деньги, работа с датами, маскировка и форматирование.
package common

import (
	"strings"
	"time"
)

// DateLayout — формат календарной даты, в котором хранятся
// last_distributed_date и last_check_in_date.
const DateLayout = "2006-01-02"

// Clock отдаёт текущее время. В тестах подменяется на фиксированное.
type Clock func() time.Time

// PlatformClock возвращает часы в часовом поясе платформы.
func PlatformClock(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// FixedClock всегда возвращает t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// DateString возвращает календарную дату t в её собственном часовом поясе.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween считает, сколько календарных дней прошло между датами
// вида 2006-01-02. Если from пустая или битая, ok = false.
func DaysBetween(from, to string) (days int, ok bool) {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, false
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, false
	}
	// Обе даты в UTC, поэтому 24 часа на день без сюрпризов с переходом на летнее время
	return int(b.Sub(a).Hours() / 24), true
}

// MaskPhone прячет середину номера: 9876543210 → 98******10.
// Так номера рефералов показываются в команде.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}

// FormatDateTime форматирует время как "02 Jan 2006 15:04" в поясе loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02 Jan 2006 15:04")
}
