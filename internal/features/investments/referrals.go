package investments

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// batchSize — сколько строк outbox разбираем за один проход крона.
const batchSize = 100

// Referrals выплачивает комиссии из outbox. Доставка at-least-once,
// повторная выплата отсекается проверкой статуса строки под блокировкой.
type Referrals struct {
	store       ledger.Store
	rate        decimal.Decimal
	maxAttempts int
}

func NewReferrals(store ledger.Store, rate decimal.Decimal, maxAttempts int) *Referrals {
	return &Referrals{store: store, rate: rate, maxAttempts: maxAttempts}
}

// Amount — комиссия с суммы инвестиции.
func (r *Referrals) Amount(invested decimal.Decimal) decimal.Decimal {
	return common.Round2(invested.Mul(r.rate))
}

// Settle выплачивает одну комиссию. При ошибке попытка засчитывается.
func (r *Referrals) Settle(ctx context.Context, id int64) error {
	err := r.store.SettleCommission(ctx, id, func(b *ledger.Book, c *ledger.Commission) error {
		b.Credit(ledger.KindCommission, c.Amount, "Commission from "+c.InvestorName)
		b.Account.TeamIncome = b.Account.TeamIncome.Add(c.Amount)
		return nil
	})
	if err != nil {
		if ferr := r.store.FailCommission(ctx, id, err.Error(), r.maxAttempts); ferr != nil {
			log.WithError(ferr).WithField("commission_id", id).Error("Не удалось записать неудачную попытку")
		}
		return err
	}
	return nil
}

// RetryPending проходит по невыплаченным комиссиям. Возвращает,
// сколько выплачено и сколько снова упало.
func (r *Referrals) RetryPending(ctx context.Context) (paid, failed int, err error) {
	pending, err := r.store.PendingCommissions(ctx, batchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range pending {
		if err := r.Settle(ctx, c.ID); err != nil {
			failed++
			log.WithError(err).WithFields(log.Fields{
				"commission_id": c.ID,
				"referrer_id":   c.ReferrerID,
				"attempt":       c.Attempts + 1,
			}).Warn("Повторная выплата комиссии не удалась")
			continue
		}
		paid++
	}
	return paid, failed, nil
}
