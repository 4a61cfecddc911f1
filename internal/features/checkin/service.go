package checkin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
)

type Service struct {
	store    ledger.Store
	activity activity.Recorder
	now      common.Clock
}

func NewService(store ledger.Store, rec activity.Recorder, clock common.Clock) *Service {
	return &Service{store: store, activity: rec, now: clock}
}

// Result — итог отметки.
type Result struct {
	Reward  decimal.Decimal `json:"reward"`
	Streak  int             `json:"streak"`
	Account *ledger.Account `json:"account"`
}

// CheckIn отмечает пользователя сегодня. Вторая отметка за день — ErrAlreadyCheckedIn.
func (s *Service) CheckIn(ctx context.Context, userID int64) (*Result, error) {
	today := common.DateString(s.now())

	var step Step
	acc, err := s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if b.Account.LastCheckInDate == today {
			return common.ErrAlreadyCheckedIn
		}
		step = Next(b.Account.CheckInStreak, b.Account.LastCheckInDate, today)

		b.Account.CheckInStreak = step.Streak
		b.Account.LastCheckInDate = today
		b.Credit(ledger.KindReward, step.Reward, fmt.Sprintf("Day %d Check-in Reward", step.RewardDay))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"streak":  step.Streak,
		"reward":  step.Reward.String(),
	}).Debug("Отметка за день")
	s.activity.Record(ctx, acc.Name, activity.ActionCheckIn,
		fmt.Sprintf("Day %d check-in, %s", step.RewardDay, common.FormatRupees(step.Reward)))

	return &Result{Reward: step.Reward, Streak: step.Streak, Account: acc}, nil
}
