// Package checkin — ежедневная отметка с наградой за серию дней.
// rewards.go содержит чистую логику серии и таблицу наград.
package checkin

import (
	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
)

// CycleDays — длина цикла. После 14-го дня серия начинается заново.
const CycleDays = 14

// Таблица наград:
//
//	День 7:  ₹20
//	День 14: ₹50
//	Остальные дни: ₹10
var (
	baseReward = decimal.NewFromInt(10)
	milestones = map[int]decimal.Decimal{
		7:  decimal.NewFromInt(20),
		14: decimal.NewFromInt(50),
	}
)

// Step — результат одной отметки.
type Step struct {
	Streak    int             // Новое значение серии, уже с учётом цикла
	RewardDay int             // День цикла, за который платим
	Reward    decimal.Decimal
}

// Next считает серию и награду для отметки в день today.
// Вызывающий уже проверил, что today != last.
//
//	last пустая или пропуск > 1 дня → день 1
//	вчера                           → streak + 1
//	после 14-го дня                 → серия 1, но награда за день 14
func Next(streak int, last, today string) Step {
	day := 1
	if gap, ok := common.DaysBetween(last, today); ok && gap == 1 {
		day = streak + 1
	}

	rewardDay := min(day, CycleDays)
	next := day
	if next > CycleDays {
		next = 1
	}
	return Step{Streak: next, RewardDay: rewardDay, Reward: Reward(rewardDay)}
}

// Reward — награда за день цикла.
func Reward(day int) decimal.Decimal {
	if r, ok := milestones[day]; ok {
		return r
	}
	return baseReward
}
