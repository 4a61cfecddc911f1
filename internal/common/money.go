// Package common — money.go: денежные примитивы.
// Все суммы в decimal с двумя знаками, округление half-away-from-zero
// перед записью в БД.
package common

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces — сколько знаков после запятой храним.
const MoneyPlaces = 2

// Round2 округляет сумму до копеек (пайсов).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// SplitFee считает комиссию и сумму к выплате:
//
//	fee = round2(gross * rate)
//	net = round2(gross - fee)
//
// Пример: SplitFee(1000, 0.05) → 50, 950.
func SplitFee(gross, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = Round2(gross.Mul(rate))
	net = Round2(gross.Sub(fee))
	return fee, net
}

// ClampNonNegative возвращает max(d, 0) и флаг, было ли обрезание.
func ClampNonNegative(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d, false
}

// ValidAmount проверяет, что сумма положительная и не длиннее копеек.
func ValidAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(Round2(d)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount разбирает сумму из строки запроса.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
