// Package ledgertest — хранилище ledger.Store в памяти для тестов сервисов.
// Один мьютекс на всё хранилище: единицы работы строго последовательны.
package ledgertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// Store реализует ledger.Store в памяти.
type Store struct {
	mu sync.Mutex

	Now common.Clock

	accounts    map[int64]*ledger.Account
	investments map[int64][]*ledger.Investment
	txs         []*ledger.Transaction
	commissions []*ledger.Commission

	nextUser       int64
	nextInvestment int64
	nextCommission int64

	// FailSettle, если задан, возвращается из SettleCommission до вызова fn.
	FailSettle error
}

// New создаёт пустое хранилище с реальными часами.
func New() *Store {
	return &Store{
		Now:         time.Now,
		accounts:    make(map[int64]*ledger.Account),
		investments: make(map[int64][]*ledger.Investment),
	}
}

var _ ledger.Store = (*Store)(nil)

// Seed кладёт аккаунт как есть, без приветственной транзакции.
func (s *Store) Seed(acc ledger.Account) *ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUser++
	acc.ID = s.nextUser
	if acc.ReferralCode == "" {
		acc.ReferralCode = strings.ToUpper(uuid.NewString()[:6])
	}
	acc.CreatedAt = s.Now()
	s.accounts[acc.ID] = copyAccount(&acc)
	return copyAccount(&acc)
}

// Commissions возвращает все строки outbox.
func (s *Store) Commissions() []ledger.Commission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Commission, 0, len(s.commissions))
	for _, c := range s.commissions {
		out = append(out, *c)
	}
	return out
}

func (s *Store) Create(_ context.Context, acc *ledger.Account, welcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Phone == acc.Phone {
			return common.ErrDuplicateIdentity
		}
		if a.ReferralCode == acc.ReferralCode {
			return ledger.ErrReferralCodeTaken
		}
	}

	s.nextUser++
	acc.ID = s.nextUser
	acc.CreatedAt = s.Now()
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.ID] = copyAccount(acc)

	b := ledger.NewBook(copyAccount(acc), nil, acc.CreatedAt)
	b.Note(ledger.KindSystem, decimal.Zero, welcome)
	s.txs = append(s.txs, b.NewTransactions()...)
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) GetByPhone(_ context.Context, phone string) (*ledger.Account, error) {
	return s.find(func(a *ledger.Account) bool { return a.Phone == phone })
}

func (s *Store) GetByReferralCode(_ context.Context, code string) (*ledger.Account, error) {
	code = strings.ToUpper(code)
	return s.find(func(a *ledger.Account) bool { return a.ReferralCode == code })
}

func (s *Store) find(match func(*ledger.Account) bool) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if match(a) {
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (s *Store) List(_ context.Context, f ledger.ListFilter) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Account
	for _, a := range s.accounts {
		if f.Search != "" && !strings.Contains(a.Name, f.Search) && !strings.Contains(a.Phone, f.Search) {
			continue
		}
		out = append(out, *copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return common.ErrUserNotFound
	}
	delete(s.accounts, id)
	delete(s.investments, id)
	kept := s.txs[:0]
	for _, t := range s.txs {
		if t.UserID != id {
			kept = append(kept, t)
		}
	}
	s.txs = kept
	for _, a := range s.accounts {
		if a.ReferrerID != nil && *a.ReferrerID == id {
			a.ReferrerID = nil
		}
	}
	return nil
}

func (s *Store) Update(_ context.Context, userID int64, fn func(b *ledger.Book) error) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.open(userID)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := s.commit(b); err != nil {
		return nil, err
	}
	return copyAccount(b.Account), nil
}

func (s *Store) UpdateRequest(_ context.Context, requestID string, fn func(b *ledger.Book, req *ledger.Transaction) error) (*ledger.Account, *ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.request(requestID)
	if stored == nil {
		return nil, nil, common.ErrRequestNotFound
	}
	b, err := s.open(stored.UserID)
	if err != nil {
		return nil, nil, err
	}
	req := *stored
	if err := fn(b, &req); err != nil {
		return nil, nil, err
	}
	if err := s.commit(b); err != nil {
		return nil, nil, err
	}
	return copyAccount(b.Account), &req, nil
}

func (s *Store) SetAppAccessAll(_ context.Context, access bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		a.AppAccess = access
	}
	return int64(len(s.accounts)), nil
}

func (s *Store) Investments(_ context.Context, userID int64) ([]ledger.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.investments[userID]
	out := make([]ledger.Investment, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, *list[i])
	}
	return out, nil
}

func (s *Store) InvestorIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, list := range s.investments {
		if len(list) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) Transactions(_ context.Context, userID int64, limit int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			out = append(out, *s.txs[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.txs {
		if t.UserID == userID && !t.Read {
			t.Read = true
			n++
		}
	}
	return n, nil
}

func (s *Store) Requests(_ context.Context, f ledger.RequestFilter) ([]ledger.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Request
	for i := len(s.txs) - 1; i >= 0; i-- {
		t := s.txs[i]
		if !t.Kind.IsRequest() {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		req := s.toRequest(t)
		if f.Search != "" && !strings.Contains(req.UserName, f.Search) &&
			!strings.Contains(req.UserPhone, f.Search) && !strings.Contains(t.ID, f.Search) {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*ledger.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.request(id)
	if t == nil {
		return nil, common.ErrRequestNotFound
	}
	req := s.toRequest(t)
	return &req, nil
}

func (s *Store) PendingCommissions(_ context.Context, limit int) ([]ledger.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Commission
	for _, c := range s.commissions {
		if c.Status == ledger.CommissionPending {
			out = append(out, *c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SettleCommission(_ context.Context, id int64, fn func(b *ledger.Book, c *ledger.Commission) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.commission(id)
	if c == nil || c.Status != ledger.CommissionPending {
		return nil
	}
	if s.FailSettle != nil {
		return s.FailSettle
	}
	acc, ok := s.accounts[c.ReferrerID]
	if !ok {
		return common.ErrUserNotFound
	}

	b := ledger.NewBook(copyAccount(acc), nil, s.Now())
	cc := *c
	if err := fn(b, &cc); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return err
	}
	now := s.Now()
	c.Status = ledger.CommissionPaid
	c.Attempts++
	c.LastError = ""
	c.SettledAt = &now
	return nil
}

func (s *Store) FailCommission(_ context.Context, id int64, reason string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.commission(id)
	if c == nil || c.Status != ledger.CommissionPending {
		return nil
	}
	c.Attempts++
	c.LastError = reason
	if c.Attempts >= maxAttempts {
		c.Status = ledger.CommissionFailed
	}
	return nil
}

func (s *Store) Team(_ context.Context, referrerID int64) ([]ledger.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.TeamMember
	for _, a := range s.accounts {
		if a.ReferrerID == nil || *a.ReferrerID != referrerID {
			continue
		}
		m := ledger.TeamMember{ID: a.ID, Name: a.Name, Phone: a.Phone, JoinedAt: a.CreatedAt}
		for _, inv := range s.investments[a.ID] {
			m.Invested = m.Invested.Add(inv.InvestedAmount)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Totals(_ context.Context) (ledger.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t ledger.Totals
	for _, a := range s.accounts {
		t.TotalUsers++
		if a.IsActive {
			t.ActiveUsers++
		}
		t.PlatformBalance = t.PlatformBalance.Add(a.Balance)
	}
	for _, list := range s.investments {
		for _, inv := range list {
			t.TotalInvestments = t.TotalInvestments.Add(inv.InvestedAmount)
		}
	}
	for _, tx := range s.txs {
		if tx.Kind.IsRequest() && tx.Status == ledger.StatusPending {
			t.PendingRequests++
		}
	}
	return t, nil
}

// open копирует аккаунт и инвестиции, чтобы ошибка в fn ничего не меняла.
func (s *Store) open(userID int64) (*ledger.Book, error) {
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	var invs []*ledger.Investment
	for _, inv := range s.investments[userID] {
		cp := *inv
		invs = append(invs, &cp)
	}
	return ledger.NewBook(copyAccount(acc), invs, s.Now()), nil
}

func (s *Store) commit(b *ledger.Book) error {
	for _, t := range b.NewTransactions() {
		for _, existing := range s.txs {
			if existing.ID == t.ID {
				return common.ErrDuplicateRequest
			}
		}
	}
	if b.Account.Balance.IsNegative() {
		return common.StorageError("update user", errNegativeBalance)
	}

	for _, inv := range b.NewInvestments() {
		s.nextInvestment++
		inv.ID = s.nextInvestment
	}
	b.BindCommissions()

	s.accounts[b.Account.ID] = copyAccount(b.Account)
	list := make([]*ledger.Investment, 0, len(b.Investments))
	for _, inv := range b.Investments {
		cp := *inv
		list = append(list, &cp)
	}
	s.investments[b.Account.ID] = list

	for _, t := range b.NewTransactions() {
		cp := *t
		s.txs = append(s.txs, &cp)
	}
	for _, req := range b.Settled() {
		if stored := s.request(req.ID); stored != nil {
			stored.Status = req.Status
			stored.UpdatedAt = req.UpdatedAt
		}
	}
	for _, c := range b.Commissions() {
		s.nextCommission++
		c.ID = s.nextCommission
		cp := *c
		s.commissions = append(s.commissions, &cp)
	}
	return nil
}

func (s *Store) request(id string) *ledger.Transaction {
	for _, t := range s.txs {
		if t.ID == id && t.Kind.IsRequest() {
			return t
		}
	}
	return nil
}

func (s *Store) commission(id int64) *ledger.Commission {
	for _, c := range s.commissions {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) toRequest(t *ledger.Transaction) ledger.Request {
	req := ledger.Request{Transaction: *t}
	if a, ok := s.accounts[t.UserID]; ok {
		req.UserName, req.UserPhone = a.Name, a.Phone
	}
	return req
}

type storeError string

func (e storeError) Error() string { return string(e) }

// Та же проверка, что CHECK (balance >= 0) в схеме.
const errNegativeBalance = storeError("balance violates check constraint")

func copyAccount(a *ledger.Account) *ledger.Account {
	cp := *a
	if a.BankAccount != nil {
		bank := *a.BankAccount
		cp.BankAccount = &bank
	}
	if a.FundPasswordHash != nil {
		h := *a.FundPasswordHash
		cp.FundPasswordHash = &h
	}
	if a.ReferrerID != nil {
		id := *a.ReferrerID
		cp.ReferrerID = &id
	}
	return &cp
}
