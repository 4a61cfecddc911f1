// Package investments — покупка планов и реферальные комиссии.
//
// Покупка атомарна только для самого инвестора: списание, инвестиция,
// попытки колеса, записи в историю и строка комиссии в outbox
// сохраняются одной транзакцией. Комиссия рефереру выплачивается
// отдельным шагом под его собственной блокировкой.
package investments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/features/plans"
	"wealthfund.in/platform/internal/ledger"
)

// Catalog — откуда берутся планы.
type Catalog interface {
	Get(ctx context.Context, id int64) (*plans.Plan, error)
}

// Service — движок инвестиций.
type Service struct {
	store     ledger.Store
	catalog   Catalog
	referrals *Referrals
	activity  activity.Recorder
	now       common.Clock
}

func NewService(store ledger.Store, catalog Catalog, referrals *Referrals, rec activity.Recorder, clock common.Clock) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		referrals: referrals,
		activity:  rec,
		now:       clock,
	}
}

// Result — итог покупки.
type Result struct {
	Account    *ledger.Account    `json:"account"`
	Investment *ledger.Investment `json:"investment"`
}

// Invest покупает quantity единиц плана planID.
func (s *Service) Invest(ctx context.Context, userID, planID int64, quantity int) (*Result, error) {
	if quantity < 1 {
		return nil, common.ErrInvalidQuantity
	}

	plan, err := s.catalog.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := plan.Purchasable(s.now()); err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	cost := common.Round2(plan.MinInvestment.Mul(qty))

	var (
		inv        *ledger.Investment
		commission *ledger.Commission
	)
	acc, err := s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if _, err := b.Debit(ledger.KindInvestment, cost, "Invested in "+plan.Name); err != nil {
			return err
		}

		// Каждая купленная единица даёт одну попытку колеса
		b.Account.LuckyDrawChances += quantity

		inv = &ledger.Investment{
			PlanID:         plan.ID,
			PlanName:       plan.Name,
			Category:       plan.Category,
			InvestedAmount: cost,
			DailyEarnings:  common.Round2(plan.DailyReturn.Mul(qty)),
			RevenueDays:    plan.DurationDays,
			Quantity:       quantity,
			TotalRevenue:   decimal.Zero,
		}
		b.AddInvestment(inv)

		b.Note(ledger.KindSystem, decimal.Zero, fmt.Sprintf("Received %d Lucky Spin %s for investment",
			quantity, common.Pluralize(quantity, "Coin", "Coins")))

		if b.Account.ReferrerID != nil {
			commission = b.EnqueueCommission(*b.Account.ReferrerID, inv, s.referrals.Amount(cost))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"plan_id":  plan.ID,
		"quantity": quantity,
		"cost":     cost.String(),
	}).Info("Инвестиция создана")
	s.activity.Record(ctx, acc.Name, activity.ActionInvest, fmt.Sprintf("Invested in %s (%s)", plan.Name, common.FormatRupees(cost)))

	// Сбой здесь не отменяет покупку: строка останется pending и её подберёт крон
	if commission != nil {
		if err := s.referrals.Settle(ctx, commission.ID); err != nil {
			log.WithError(err).WithField("commission_id", commission.ID).
				Warn("Комиссия не выплачена сразу, повторим по расписанию")
		}
	}

	return &Result{Account: acc, Investment: inv}, nil
}

// List возвращает инвестиции пользователя, новые сверху.
func (s *Service) List(ctx context.Context, userID int64) ([]ledger.Investment, error) {
	return s.store.Investments(ctx, userID)
}
