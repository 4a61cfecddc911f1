// Package distribution — ежедневное начисление дохода по инвестициям.
//
// Запуск можно повторять сколько угодно раз в день: каждая инвестиция
// помечается датой выплаты, и вторая выплата за ту же дату не делается.
// Прерванный запуск безопасно продолжить: аккаунты обрабатываются
// независимо, каждый своей транзакцией.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/lock"
)

// runLockKey — ключ блокировки запуска, общий для всех инстансов.
const runLockKey = "distribution:run"

// errNothingDue откатывает единицу работы, в которой нечего платить.
var errNothingDue = errors.New("nothing due")

// Result — итог запуска.
type Result struct {
	Date        string          `json:"date"`
	Paid        int             `json:"paid"` // Сколько инвестиций получили выплату
	Accounts    int             `json:"accounts"`
	Amount      decimal.Decimal `json:"amount"`
	AlreadyPaid int             `json:"alreadyPaid"`
	Expired     int             `json:"expired"`
	Failed      int             `json:"failed"` // Аккаунты, на которых запуск упал
}

// Service — планировщик начислений.
type Service struct {
	store    ledger.Store
	locker   lock.Locker
	lockTTL  time.Duration
	activity activity.Recorder
	now      common.Clock
}

func NewService(store ledger.Store, locker lock.Locker, lockTTL time.Duration, rec activity.Recorder, clock common.Clock) *Service {
	return &Service{
		store:    store,
		locker:   locker,
		lockTTL:  lockTTL,
		activity: rec,
		now:      clock,
	}
}

// Run начисляет дневной доход всем действующим инвестициям.
// Если другой запуск ещё идёт — ErrRunInProgress.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	release, ok, err := s.locker.TryLock(ctx, runLockKey, s.lockTTL)
	if err != nil {
		return nil, common.StorageError("distribution lock", err)
	}
	if !ok {
		return nil, common.ErrRunInProgress
	}
	defer release()

	// Одно чтение часов на весь запуск
	now := s.now()
	res := &Result{Date: common.DateString(now), Amount: decimal.Zero}

	ids, err := s.store.InvestorIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		var paid, already, expired int
		var amount decimal.Decimal

		_, err := s.store.Update(ctx, id, func(b *ledger.Book) error {
			paid, already, expired, amount = 0, 0, 0, decimal.Zero
			for _, inv := range b.Investments {
				switch {
				case inv.LastDistributedDate == res.Date:
					already++
				case inv.Expired(now):
					expired++
				default:
					pay(b, inv, res.Date)
					amount = amount.Add(inv.DailyEarnings)
					paid++
				}
			}
			if paid == 0 {
				return errNothingDue
			}
			return nil
		})

		res.AlreadyPaid += already
		res.Expired += expired
		switch {
		case errors.Is(err, errNothingDue):
		case err != nil:
			res.Failed++
			log.WithError(err).WithField("user_id", id).Error("Начисление по аккаунту не выполнено")
		default:
			res.Paid += paid
			res.Accounts++
			res.Amount = res.Amount.Add(amount)
		}
	}

	log.WithFields(log.Fields{
		"date":         res.Date,
		"paid":         res.Paid,
		"accounts":     res.Accounts,
		"amount":       res.Amount.String(),
		"already_paid": res.AlreadyPaid,
		"expired":      res.Expired,
		"failed":       res.Failed,
	}).Info("Начисление дохода завершено")
	s.activity.Record(ctx, "system", activity.ActionDistribution,
		fmt.Sprintf("Paid %d %s for %s (%s)", res.Paid, common.Pluralize(res.Paid, "investment", "investments"),
			res.Date, common.FormatRupees(res.Amount)))

	return res, nil
}

// pay начисляет один день по инвестиции и ставит отметку даты.
func pay(b *ledger.Book, inv *ledger.Investment, today string) {
	b.Credit(ledger.KindReward, inv.DailyEarnings, "Daily Return: "+inv.PlanName)
	b.Account.TotalReturns = b.Account.TotalReturns.Add(inv.DailyEarnings)
	inv.TotalRevenue = inv.TotalRevenue.Add(inv.DailyEarnings)
	inv.LastDistributedDate = today
	b.Touch(inv)
}
