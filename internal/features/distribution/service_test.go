package distribution

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/ledger/ledgertest"
	"wealthfund.in/platform/internal/lock"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var ist = time.FixedZone("IST", 5*3600+1800)

type fixture struct {
	svc    *Service
	store  *ledgertest.Store
	locker *lock.Redis
	now    time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &fixture{
		store:  ledgertest.New(),
		locker: lock.NewRedis(rdb),
		now:    time.Date(2024, 6, 1, 10, 0, 0, 0, ist),
	}
	clock := func() time.Time { return f.now }
	f.store.Now = clock
	rec := activity.RecorderFunc(func(context.Context, string, string, string) {})
	f.svc = NewService(f.store, f.locker, time.Minute, rec, clock)
	return f
}

// invest кладёт инвестицию напрямую, минуя каталог.
func (f *fixture) invest(t *testing.T, userID int64, name string, daily string, days int, start time.Time) {
	t.Helper()
	_, err := f.store.Update(context.Background(), userID, func(b *ledger.Book) error {
		b.AddInvestment(&ledger.Investment{
			PlanName:       name,
			InvestedAmount: dec("500"),
			DailyEarnings:  dec(daily),
			RevenueDays:    days,
			Quantity:       1,
			TotalRevenue:   decimal.Zero,
			StartDate:      start,
		})
		return nil
	})
	require.NoError(t, err)
}

func TestRunIsIdempotentWithinDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Ravi"})
	f.invest(t, user.ID, "Starter Plan", "40", 10, f.now)

	res, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paid)
	assert.Equal(t, 1, res.Accounts)
	assert.Equal(t, "2024-06-01", res.Date)
	assert.True(t, res.Amount.Equal(dec("40")))

	f.now = f.now.Add(5 * time.Hour)
	res, err = f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Paid)
	assert.Equal(t, 1, res.AlreadyPaid)

	acc, err := f.store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("40")))
	assert.True(t, acc.TotalReturns.Equal(dec("40")))

	invs, err := f.store.Investments(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.True(t, invs[0].TotalRevenue.Equal(dec("40")))
	assert.Equal(t, "2024-06-01", invs[0].LastDistributedDate)

	txs, err := f.store.Transactions(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.KindReward, txs[0].Kind)
	assert.Equal(t, "Daily Return: Starter Plan", txs[0].Description)
}

func TestRunPaysAgainNextDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Ravi"})
	f.invest(t, user.ID, "Starter Plan", "35", 20, f.now)

	_, err := f.svc.Run(ctx)
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, 1)
	res, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paid)

	acc, err := f.store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("70")))
}

func TestRunSkipsExpiredInvestments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Meena"})
	// Срок закончился вчера, выплат не было ни разу
	f.invest(t, user.ID, "Short Term Plan", "40", 7, f.now.AddDate(0, 0, -8))
	f.invest(t, user.ID, "Growth Plan", "100", 45, f.now.AddDate(0, 0, -3))

	res, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paid)
	assert.Equal(t, 1, res.Expired)

	acc, err := f.store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("100")))

	invs, err := f.store.Investments(ctx, user.ID)
	require.NoError(t, err)
	for _, inv := range invs {
		if inv.PlanName == "Short Term Plan" {
			assert.True(t, inv.TotalRevenue.IsZero())
			assert.Empty(t, inv.LastDistributedDate)
		}
	}
}

func TestRunPaysOnLastDayOfTerm(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Meena"})
	f.invest(t, user.ID, "Short Term Plan", "40", 7, f.now.AddDate(0, 0, -7))

	res, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paid, "start + days is still inside the term")

	f.now = f.now.Add(time.Minute)
	res, err = f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Paid)
}

func TestRunRefusesOverlap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Ravi"})
	f.invest(t, user.ID, "Starter Plan", "40", 10, f.now)

	release, ok, err := f.locker.TryLock(ctx, runLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Run(ctx)
	assert.ErrorIs(t, err, common.ErrRunInProgress)

	acc, err := f.store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())

	release()
	res, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paid)
}

func TestDepositInvestDistributeScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.store.Seed(ledger.Account{Name: "Kiran", Phone: "9000000009"})

	// Пополнение одобрено: баланс 500
	_, err := f.store.Update(ctx, user.ID, func(b *ledger.Book) error {
		b.Request("", dec("500"), "Deposit Request", "proofs/1/a.png")
		return nil
	})
	require.NoError(t, err)
	reqs, err := f.store.Requests(ctx, ledger.RequestFilter{Status: ledger.StatusPending})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	_, _, err = f.store.UpdateRequest(ctx, reqs[0].ID, func(b *ledger.Book, req *ledger.Transaction) error {
		b.Settle(req, ledger.StatusSuccess, req.Amount)
		return nil
	})
	require.NoError(t, err)

	// Покупка плана за 500 на 10 дней по 40
	_, err = f.store.Update(ctx, user.ID, func(b *ledger.Book) error {
		if _, err := b.Debit(ledger.KindInvestment, dec("500"), "Invested in Ten Day Plan"); err != nil {
			return err
		}
		b.AddInvestment(&ledger.Investment{PlanName: "Ten Day Plan", InvestedAmount: dec("500"),
			DailyEarnings: dec("40"), RevenueDays: 10, Quantity: 1})
		return nil
	})
	require.NoError(t, err)

	acc, err := f.store.Get(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, acc.Balance.IsZero())

	for i := 0; i < 2; i++ {
		_, err = f.svc.Run(ctx)
		require.NoError(t, err)
		acc, err = f.store.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, acc.Balance.Equal(dec("40")), "run %d", i+1)
	}
}

func TestRunHandler(t *testing.T) {
	f := setup(t)
	user := f.store.Seed(ledger.Account{Name: "Ravi"})
	f.invest(t, user.ID, "Starter Plan", "40", 10, f.now)

	r := mux.NewRouter()
	NewHandler(f.svc).RegisterAdmin(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/distribution/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid":1`)

	_, ok, err := f.locker.TryLock(context.Background(), runLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/distribution/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunUsesOneDateAcrossMidnight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, ist)
	var ids []int64
	for _, name := range []string{"Ravi", "Meena", "Kiran"} {
		u := f.store.Seed(ledger.Account{Name: name})
		f.invest(t, u.ID, "Starter Plan", "40", 10, start)
		ids = append(ids, u.ID)
	}

	// Каждое чтение часов сдвигает время на минуту: запуск начинается
	// в 23:59 и заканчивается уже 2 июня
	tick := time.Date(2024, 6, 1, 23, 59, 0, 0, ist)
	var mu sync.Mutex
	moving := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur := tick
		tick = tick.Add(time.Minute)
		return cur
	}
	f.store.Now = moving
	rec := activity.RecorderFunc(func(context.Context, string, string, string) {})
	svc := NewService(f.store, f.locker, time.Minute, rec, moving)

	res, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", res.Date)
	assert.Equal(t, 3, res.Paid)

	for _, id := range ids {
		invs, err := f.store.Investments(ctx, id)
		require.NoError(t, err)
		require.Len(t, invs, 1)
		assert.Equal(t, "2024-06-01", invs[0].LastDistributedDate)
	}

	// Следующий запуск уже 2 июня и платит снова
	res, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", res.Date)
	assert.Equal(t, 3, res.Paid)
}
