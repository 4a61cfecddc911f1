package finance

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/ledger/ledgertest"
	"wealthfund.in/platform/internal/storage"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type memChannels struct {
	mu   sync.Mutex
	list []Channel
}

func (m *memChannels) List(_ context.Context, activeOnly bool) ([]Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Channel
	for _, c := range m.list {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memChannels) Get(_ context.Context, id int64) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, common.ErrPaymentChannelNotFound
}

func (m *memChannels) Create(_ context.Context, c *Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = int64(len(m.list) + 1)
	m.list = append(m.list, *c)
	return nil
}

func (m *memChannels) Save(_ context.Context, c *Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == c.ID {
			m.list[i] = *c
		}
	}
	return nil
}

func (m *memChannels) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return common.ErrPaymentChannelNotFound
}

type recordingNotifier struct {
	mu   sync.Mutex
	reqs []*ledger.Transaction
}

func (n *recordingNotifier) RequestCreated(req *ledger.Transaction, _, _ string) {
	n.mu.Lock()
	n.reqs = append(n.reqs, req)
	n.mu.Unlock()
}

type fixture struct {
	svc      *Service
	store    *ledgertest.Store
	channels *memChannels
	proofs   *storage.Memory
	notifier *recordingNotifier
	cfg      *config.Config
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		ProofMaxBytes: 1 << 20,
		Finance: config.FinanceParams{
			DepositMin:      dec("200"),
			WithdrawMin:     dec("200"),
			WithdrawFeeRate: dec("0.05"),
			CommissionRate:  dec("0.10"),
		},
	}
	f := &fixture{
		store:    ledgertest.New(),
		channels: &memChannels{},
		proofs:   storage.NewMemory(),
		notifier: &recordingNotifier{},
		cfg:      cfg,
	}
	rec := activity.RecorderFunc(func(context.Context, string, string, string) {})
	f.svc = NewService(f.store, f.channels, f.proofs, f.notifier, rec, cfg)
	f.svc.pick = func(int) int { return 0 }
	return f
}

func (f *fixture) user(t *testing.T, balance string) *ledger.Account {
	t.Helper()
	return f.store.Seed(ledger.Account{
		Name:        "Ravi",
		Phone:       "9876543210",
		Balance:     dec(balance),
		BankAccount: &ledger.BankAccount{Holder: "Ravi Kumar", Number: "123456789012", IFSC: "SBIN0000001"},
		IsActive:    true,
		AppAccess:   true,
	})
}

func (f *fixture) balance(t *testing.T, id int64) *ledger.Account {
	t.Helper()
	acc, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func proof() *Proof {
	return &Proof{Filename: "pay.png", Size: 3, Body: bytes.NewReader([]byte{1, 2, 3})}
}

func TestWithdrawFeeAndApprove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "1500")

	req, err := f.svc.Withdraw(ctx, u.ID, dec("1000"), "")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.True(t, req.Amount.Equal(dec("-1000")))
	assert.True(t, req.Fee.Equal(dec("50")))
	assert.True(t, req.Net.Equal(dec("950")))
	assert.Equal(t, "Withdraw: ₹1,000 | Fee: ₹50 | Net: ₹950", req.Description)
	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("500")))
	require.Len(t, f.notifier.reqs, 1)

	d, err := f.svc.Approve(ctx, req.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, d.Request.Status)
	acc := f.balance(t, u.ID)
	assert.True(t, acc.Balance.Equal(dec("500")), "approval does not move balance")
	assert.True(t, acc.Withdrawals.Equal(dec("1000")))

	_, err = f.svc.Approve(ctx, req.ID, "admin")
	assert.ErrorIs(t, err, common.ErrRequestSettled)
	_, err = f.svc.Reject(ctx, req.ID, "admin")
	assert.ErrorIs(t, err, common.ErrRequestSettled)
	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("500")))
}

func TestWithdrawRejectRefunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "300")

	req, err := f.svc.Withdraw(ctx, u.ID, dec("300"), "")
	require.NoError(t, err)
	assert.True(t, f.balance(t, u.ID).Balance.IsZero())

	queue, err := f.svc.Queue(ctx, ledger.KindWithdrawal)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "Ravi", queue[0].UserName)

	_, err = f.svc.Reject(ctx, req.ID, "admin")
	require.NoError(t, err)
	acc := f.balance(t, u.ID)
	assert.True(t, acc.Balance.Equal(dec("300")))
	assert.True(t, acc.Withdrawals.IsZero())

	queue, err = f.svc.Queue(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestWithdrawRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "1000")

	_, err := f.svc.Withdraw(ctx, u.ID, dec("199.99"), "")
	assert.ErrorIs(t, err, common.ErrBelowMinimum)
	assert.EqualError(t, err, "minimum withdrawal is ₹200")
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = f.svc.Withdraw(ctx, u.ID, dec("1000.01"), "")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	_, err = f.svc.Withdraw(ctx, u.ID, dec("250.005"), "")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	noBank := f.store.Seed(ledger.Account{Name: "Meena", Balance: dec("1000")})
	_, err = f.svc.Withdraw(ctx, noBank.ID, dec("500"), "")
	assert.ErrorIs(t, err, common.ErrBankAccountRequired)

	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("1000")))
}

func TestWithdrawFundPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "1000")

	// Пароль не задан и не обязателен: любое значение проходит
	_, err := f.svc.Withdraw(ctx, u.ID, dec("200"), "")
	require.NoError(t, err)
	_, err = f.svc.Withdraw(ctx, u.ID, dec("200"), "whatever")
	require.NoError(t, err)
	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("600")))

	f.cfg.WithdrawRequireFundPassword = true
	_, err = f.svc.Withdraw(ctx, u.ID, dec("200"), "")
	assert.ErrorIs(t, err, common.ErrFundPasswordRequired)

	hash, err := auth.HashPassword("4321")
	require.NoError(t, err)
	_, err = f.store.Update(ctx, u.ID, func(b *ledger.Book) error {
		b.Account.FundPasswordHash = &hash
		return nil
	})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, u.ID, dec("200"), "0000")
	assert.ErrorIs(t, err, common.ErrBadFundPassword)

	_, err = f.svc.Withdraw(ctx, u.ID, dec("200"), "4321")
	require.NoError(t, err)
	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("400")))
}

func TestDepositApproveCredits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "0")
	_, err := f.svc.CreateChannel(ctx, ChannelInput{Name: "Main", UPIID: "wealth@upi"})
	require.NoError(t, err)

	instr, err := f.svc.InitiateDeposit(ctx, dec("500"), 0)
	require.NoError(t, err)
	assert.Equal(t, "wealth@upi", instr.UPIID)
	_, err = uuid.Parse(instr.TransactionID)
	require.NoError(t, err)

	req, err := f.svc.SubmitDeposit(ctx, u.ID, instr.TransactionID, dec("500"), proof())
	require.NoError(t, err)
	assert.Equal(t, instr.TransactionID, req.ID)
	assert.Equal(t, ledger.StatusPending, req.Status)
	assert.True(t, f.balance(t, u.ID).Balance.IsZero(), "deposit is credited only on approval")

	stored, ok := f.proofs.Object(req.ProofKey)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, stored)
	assert.Equal(t, "proofs/1/"+req.ID+".png", req.ProofKey)

	url, err := f.svc.ProofURL(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+req.ProofKey, url)

	_, err = f.svc.SubmitDeposit(ctx, u.ID, instr.TransactionID, dec("500"), proof())
	assert.ErrorIs(t, err, common.ErrDuplicateRequest)

	_, err = f.svc.Approve(ctx, req.ID, "admin")
	require.NoError(t, err)
	acc := f.balance(t, u.ID)
	assert.True(t, acc.Balance.Equal(dec("500")))
	assert.True(t, acc.RechargeAmount.Equal(dec("500")))

	history, err := f.svc.History(ctx, ledger.RequestFilter{Status: ledger.StatusSuccess})
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestDepositRejectKeepsBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "100")

	req, err := f.svc.SubmitDeposit(ctx, u.ID, uuid.NewString(), dec("250"), proof())
	require.NoError(t, err)

	d, err := f.svc.Reject(ctx, req.ID, "employee1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, d.Request.Status)
	assert.True(t, f.balance(t, u.ID).Balance.Equal(dec("100")))
}

func TestDepositValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.user(t, "0")

	_, err := f.svc.InitiateDeposit(ctx, dec("500"), 0)
	assert.ErrorIs(t, err, common.ErrNoPaymentChannel)

	_, err = f.svc.InitiateDeposit(ctx, dec("199"), 0)
	assert.ErrorIs(t, err, common.ErrBelowMinimum)
	assert.EqualError(t, err, "minimum deposit is ₹200")

	off := false
	ch, err := f.svc.CreateChannel(ctx, ChannelInput{Name: "Old", UPIID: "old@upi", IsActive: &off})
	require.NoError(t, err)
	_, err = f.svc.InitiateDeposit(ctx, dec("500"), ch.ID)
	assert.ErrorIs(t, err, common.ErrPaymentChannelNotFound)

	_, err = f.svc.SubmitDeposit(ctx, u.ID, "not-a-uuid", dec("500"), proof())
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = f.svc.SubmitDeposit(ctx, u.ID, uuid.NewString(), dec("500"), nil)
	assert.ErrorIs(t, err, common.ErrProofRequired)

	_, err = f.svc.Approve(ctx, uuid.NewString(), "admin")
	assert.ErrorIs(t, err, common.ErrRequestNotFound)
}

func TestSubmitDepositHandler(t *testing.T) {
	f := setup(t)
	u := f.user(t, "0")

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithUserID(req.Context(), u.ID)))
		})
	})
	NewHandler(f.svc, f.cfg.ProofMaxBytes).RegisterUser(r)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("transaction_id", uuid.NewString()))
	require.NoError(t, mw.WriteField("amount", "750"))
	part, err := mw.CreateFormFile("proof", "Receipt.JPG")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpegdata"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/deposits", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	pending, err := f.svc.Queue(context.Background(), ledger.KindDeposit)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Amount.Equal(dec("750")))

	// Без файла
	body.Reset()
	mw = multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("transaction_id", uuid.NewString()))
	require.NoError(t, mw.WriteField("amount", "750"))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/deposits", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
