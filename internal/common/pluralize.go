// Package common — pluralize.go: склонение и форматирование сумм
// для описаний транзакций.
package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pluralize возвращает форму слова для числа n: 1 → one, иначе many.
//
//	Pluralize(1, "Coin", "Coins") → "Coin"
//	Pluralize(3, "Coin", "Coins") → "Coins"
func Pluralize(n int, one, many string) string {
	if n == 1 || n == -1 {
		return one
	}
	return many
}

// FormatRupees форматирует сумму с индийской разбивкой разрядов
// и знаком рупии. Копейки печатаются, только если они есть.
//
//	FormatRupees(500)      → "₹500"
//	FormatRupees(1234567)  → "₹12,34,567"
//	FormatRupees(47.5)     → "₹47.50"
func FormatRupees(d decimal.Decimal) string {
	d = Round2(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole := d.Truncate(0)
	frac := d.Sub(whole)

	s := sign + "₹" + FormatNumber(whole.IntPart())
	if !frac.IsZero() {
		s += "." + fmt.Sprintf("%02d", frac.Shift(MoneyPlaces).IntPart())
	}
	return s
}

// FormatNumber расставляет разделители в индийском стиле:
// последние три цифры, дальше группами по две.
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	digits := fmt.Sprintf("%d", n)
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
