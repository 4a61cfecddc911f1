package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/auth/authtest"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/ledger/ledgertest"
)

type memLogins struct {
	mu   sync.Mutex
	next int64
	list []LoginRecord
}

func (m *memLogins) Record(_ context.Context, userID int64, device, ip string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.list = append([]LoginRecord{{ID: m.next, UserID: userID, Device: device, IP: ip, CreatedAt: time.Now()}}, m.list...)
	var kept []LoginRecord
	n := 0
	for _, r := range m.list {
		if r.UserID == userID {
			n++
			if n > keep {
				continue
			}
		}
		kept = append(kept, r)
	}
	m.list = kept
	return nil
}

func (m *memLogins) List(_ context.Context, userID int64) ([]LoginRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LoginRecord
	for _, r := range m.list {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixture struct {
	svc      *Service
	store    *ledgertest.Store
	sessions *authtest.Sessions
	logins   *memLogins
	actions  []string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    ledgertest.New(),
		sessions: authtest.NewSessions(),
		logins:   &memLogins{},
	}
	rec := activity.RecorderFunc(func(_ context.Context, _, action, _ string) {
		f.actions = append(f.actions, action)
	})
	f.svc = NewService(f.store, f.logins, f.sessions, rec, time.Hour, time.Now)
	return f
}

func (f *fixture) register(t *testing.T, phone, invite string) *ledger.Account {
	t.Helper()
	acc, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "User " + phone, Phone: phone, Password: "secret123", InviteCode: invite,
	})
	require.NoError(t, err)
	return acc
}

func TestRegisterAndLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	acc := f.register(t, "9876543210", "")
	assert.Len(t, acc.ReferralCode, 6)
	assert.Equal(t, StartingChances, acc.LuckyDrawChances)
	assert.True(t, acc.IsActive)
	assert.True(t, acc.AppAccess)
	assert.Equal(t, "en", acc.Language)
	assert.True(t, acc.Balance.IsZero())

	txs, err := f.store.Transactions(ctx, acc.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, WelcomeMessage, txs[0].Description)
	assert.Equal(t, ledger.KindSystem, txs[0].Kind)

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Again", Phone: "9876543210", Password: "secret123"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	sess, err := f.svc.Login(ctx, "9876543210", "secret123", "Android 14", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, acc.ID, sess.Account.ID)

	byID, err := f.svc.Login(ctx, strconv.FormatInt(acc.ID, 10), "secret123", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, byID.Token)

	_, err = f.svc.Login(ctx, "9876543210", "wrong", "", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "0000000000", "secret123", "", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	who, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, who.ID)

	require.NoError(t, f.svc.Logout(ctx, sess.Token))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	assert.Contains(t, f.actions, activity.ActionRegister)
	assert.Contains(t, f.actions, activity.ActionLogin)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"no name", RegisterInput{Phone: "9876543210", Password: "secret123"}},
		{"short phone", RegisterInput{Name: "A", Phone: "98765", Password: "secret123"}},
		{"letters in phone", RegisterInput{Name: "A", Phone: "98765abcde", Password: "secret123"}},
		{"short password", RegisterInput{Name: "A", Phone: "9876543210", Password: "123"}},
	}
	f := setup(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.in)
			assert.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}
}

func TestRegisterWithInviteCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	referrer := f.register(t, "9000000001", "")

	_, err := f.svc.Register(ctx, RegisterInput{Name: "B", Phone: "9000000002", Password: "secret123", InviteCode: "NOPE99"})
	assert.ErrorIs(t, err, common.ErrInvalidInviteCode)

	invited := f.register(t, "9000000003", strings.ToLower(referrer.ReferralCode))
	require.NotNil(t, invited.ReferrerID)
	assert.Equal(t, referrer.ID, *invited.ReferrerID)
}

func TestReferralCodeCollisionRetries(t *testing.T) {
	f := setup(t)
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	f.svc.newCode = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	first := f.register(t, "9000000001", "")
	second := f.register(t, "9000000002", "")
	assert.Equal(t, "AAAAAA", first.ReferralCode)
	assert.Equal(t, "BBBBBB", second.ReferralCode)
}

func TestAccessIsCheckedBeforeBlock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acc := f.register(t, "9876543210", "")
	sess, err := f.svc.Login(ctx, "9876543210", "secret123", "", "")
	require.NoError(t, err)

	no := false
	_, err = f.svc.Update(ctx, acc.ID, UpdateInput{IsActive: &no}, "admin")
	require.NoError(t, err)
	_, err = f.svc.SetAppAccess(ctx, acc.ID, false, "admin")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "9876543210", "secret123", "", "")
	assert.ErrorIs(t, err, common.ErrAppAccessRevoked)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrAppAccessRevoked)

	_, err = f.svc.SetAppAccess(ctx, acc.ID, true, "admin")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "9876543210", "secret123", "", "")
	assert.ErrorIs(t, err, common.ErrAccountBlocked)

	assert.Contains(t, f.actions, activity.ActionUninstall)
	assert.Contains(t, f.actions, activity.ActionRestore)
}

func TestUninstallAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "9000000001", "")
	f.register(t, "9000000002", "")

	n, err := f.svc.SetAppAccessAll(ctx, false, "admin")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	_, err = f.svc.Login(ctx, "9000000002", "secret123", "", "")
	assert.ErrorIs(t, err, common.ErrAppAccessRevoked)

	_, err = f.svc.SetAppAccessAll(ctx, true, "admin")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "9000000002", "secret123", "", "")
	assert.NoError(t, err)
}

func TestLoginHistoryKeepsLastTwenty(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acc := f.register(t, "9876543210", "")

	for i := range 25 {
		_, err := f.svc.Login(ctx, "9876543210", "secret123", "device-"+strconv.Itoa(i), "1.1.1.1")
		require.NoError(t, err)
	}

	list, err := f.svc.LoginActivity(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, LoginHistorySize)
	assert.Equal(t, "device-24", list[0].Device)
	assert.Equal(t, "device-5", list[LoginHistorySize-1].Device)
}

func TestAdminUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.store.Seed(ledger.Account{Name: "Ravi", Balance: decimal.NewFromInt(100), IsActive: true, AppAccess: true})

	name := "Ravi Kumar"
	chances := 3
	balance := decimal.NewFromInt(250)
	acc, err := f.svc.Update(ctx, u.ID, UpdateInput{Name: &name, LuckyDrawChances: &chances, Balance: &balance}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", acc.Name)
	assert.Equal(t, 3, acc.LuckyDrawChances)
	assert.True(t, acc.Balance.Equal(balance))

	txs, err := f.store.Transactions(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Balance adjusted by admin", txs[0].Description)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(150)))

	negative := -1
	_, err = f.svc.Update(ctx, u.ID, UpdateInput{LuckyDrawChances: &negative}, "admin")
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	fraction := decimal.RequireFromString("10.005")
	_, err = f.svc.Update(ctx, u.ID, UpdateInput{Balance: &fraction}, "admin")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestDeleteUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acc := f.register(t, "9876543210", "")
	sess, err := f.svc.Login(ctx, "9876543210", "secret123", "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, acc.ID, "admin"))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.ErrorIs(t, f.svc.Delete(ctx, acc.ID, "admin"), common.ErrUserNotFound)
}

func TestPasswords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acc := f.register(t, "9876543210", "")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, acc.ID, "wrong", "newsecret"), common.ErrWrongPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, acc.ID, "secret123", "newsecret"))
	_, err := f.svc.Login(ctx, "9876543210", "newsecret", "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.SetFundPassword(ctx, acc.ID, "", "4321"))
	p, err := f.svc.Profile(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, p.HasFundPwd)

	assert.ErrorIs(t, f.svc.SetFundPassword(ctx, acc.ID, "0000", "5555"), common.ErrBadFundPassword)
	require.NoError(t, f.svc.SetFundPassword(ctx, acc.ID, "4321", "5555"))

	sess, err := f.svc.Login(ctx, "9876543210", "newsecret", "", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, acc.ID, "reset-pass", "admin"))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	_, err = f.svc.Login(ctx, "9876543210", "reset-pass", "", "")
	assert.NoError(t, err)
}

func TestBankAccountValidation(t *testing.T) {
	f := setup(t)
	u := f.store.Seed(ledger.Account{Name: "Ravi"})
	cases := []struct {
		name string
		bank ledger.BankAccount
		ok   bool
	}{
		{"valid", ledger.BankAccount{Holder: "Ravi", Number: "123456789012", IFSC: "sbin0001234"}, true},
		{"no holder", ledger.BankAccount{Number: "123456789012", IFSC: "SBIN0001234"}, false},
		{"short number", ledger.BankAccount{Holder: "Ravi", Number: "1234", IFSC: "SBIN0001234"}, false},
		{"bad ifsc fifth char", ledger.BankAccount{Holder: "Ravi", Number: "123456789012", IFSC: "SBIN1001234"}, false},
		{"digits in bank prefix", ledger.BankAccount{Holder: "Ravi", Number: "123456789012", IFSC: "SB1N0001234"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc, err := f.svc.SetBankAccount(context.Background(), u.ID, tc.bank)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "SBIN0001234", acc.BankAccount.IFSC)
		})
	}
}

func TestTeamMasksPhones(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	referrer := f.register(t, "9000000001", "")
	f.register(t, "9876543210", referrer.ReferralCode)

	team, err := f.svc.Team(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, team.Count)
	assert.Equal(t, "98******10", team.Members[0].Phone)
	assert.Equal(t, referrer.ReferralCode, team.Code)
}

func TestRegisterAndLoginHandlers(t *testing.T) {
	f := setup(t)
	r := mux.NewRouter()
	NewHandler(f.svc).RegisterPublic(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"name":"Ravi","phone":"9876543210","password":"secret123"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "argon2id", "hash must not leak")

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"identifier":"9876543210","password":"secret123"}`))
	req.Header.Set("User-Agent", "WealthFund/Android")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"identifier":"9876543210","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	list, err := f.logins.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "WealthFund/Android", list[0].Device)
}
