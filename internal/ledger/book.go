package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
)

// Book — единица работы над одним аккаунтом. Store создаёт её под
// блокировкой строки пользователя, сервис меняет аккаунт через её
// методы, после чего Store сохраняет всё одной транзакцией БД.
//
// Каждый метод, меняющий баланс, пишет ровно одну транзакцию в историю.
// Исключение — Settle: зеркалом изменения служит сама заявка.
type Book struct {
	Account     *Account
	Investments []*Investment

	now time.Time

	newTx       []*Transaction
	newInv      []*Investment
	touched     map[*Investment]bool
	settled     []*Transaction
	commissions []*Commission
}

// NewBook собирает Book. Нужна хранилищам, сервисы получают Book от Store.
func NewBook(acc *Account, investments []*Investment, now time.Time) *Book {
	return &Book{
		Account:     acc,
		Investments: investments,
		now:         now,
		touched:     make(map[*Investment]bool),
	}
}

// Now — время открытия единицы работы.
func (b *Book) Now() time.Time { return b.now }

// Credit зачисляет amount и пишет успешную транзакцию.
func (b *Book) Credit(kind Kind, amount decimal.Decimal, description string) *Transaction {
	amount = common.Round2(amount)
	b.setBalance(b.Account.Balance.Add(amount))
	return b.record(kind, amount, description, StatusSuccess)
}

// Debit списывает amount. Если денег не хватает — ErrInsufficientBalance
// и аккаунт не меняется.
func (b *Book) Debit(kind Kind, amount decimal.Decimal, description string) (*Transaction, error) {
	amount = common.Round2(amount)
	if b.Account.Balance.LessThan(amount) {
		return nil, common.ErrInsufficientBalance
	}
	b.setBalance(b.Account.Balance.Sub(amount))
	return b.record(kind, amount.Neg(), description, StatusSuccess), nil
}

// Note пишет информационную транзакцию без изменения баланса.
func (b *Book) Note(kind Kind, amount decimal.Decimal, description string) *Transaction {
	return b.record(kind, common.Round2(amount), description, StatusSuccess)
}

// Request создаёт заявку на пополнение со статусом pending.
// Баланс не меняется до одобрения.
func (b *Book) Request(id string, amount decimal.Decimal, description, proofKey string) *Transaction {
	tx := b.record(KindDeposit, common.Round2(amount), description, StatusPending)
	if id != "" {
		tx.ID = id
	}
	tx.ProofKey = proofKey
	return tx
}

// Hold списывает gross сразу и создаёт заявку на вывод со статусом pending.
func (b *Book) Hold(gross, fee, net decimal.Decimal, description string) (*Transaction, error) {
	gross = common.Round2(gross)
	if b.Account.Balance.LessThan(gross) {
		return nil, common.ErrInsufficientBalance
	}
	b.setBalance(b.Account.Balance.Sub(gross))
	tx := b.record(KindWithdrawal, gross.Neg(), description, StatusPending)
	tx.Fee = common.Round2(fee)
	tx.Net = common.Round2(net)
	return tx, nil
}

// Settle переводит заявку в конечный статус и применяет delta к балансу.
// Проверку, что заявка ещё pending, делает вызывающий.
func (b *Book) Settle(req *Transaction, status Status, delta decimal.Decimal) {
	req.Status = status
	req.UpdatedAt = b.now
	if !delta.IsZero() {
		b.setBalance(b.Account.Balance.Add(common.Round2(delta)))
	}
	b.settled = append(b.settled, req)
}

// SetBalance ставит баланс админом. Разница пишется системной транзакцией.
func (b *Book) SetBalance(target decimal.Decimal, description string) *Transaction {
	target, _ = common.ClampNonNegative(common.Round2(target))
	delta := target.Sub(b.Account.Balance)
	if delta.IsZero() {
		return nil
	}
	b.setBalance(target)
	return b.record(KindSystem, delta, description, StatusSuccess)
}

// AddInvestment добавляет новую инвестицию аккаунту.
func (b *Book) AddInvestment(inv *Investment) {
	inv.UserID = b.Account.ID
	if inv.StartDate.IsZero() {
		inv.StartDate = b.now
	}
	inv.CreatedAt = b.now
	b.Investments = append(b.Investments, inv)
	b.newInv = append(b.newInv, inv)
}

// Touch отмечает, что инвестицию надо сохранить.
func (b *Book) Touch(inv *Investment) {
	b.touched[inv] = true
}

// EnqueueCommission ставит комиссию в outbox. Выплата произойдёт
// после коммита, отдельно от блокировки инвестора.
func (b *Book) EnqueueCommission(referrerID int64, inv *Investment, amount decimal.Decimal) *Commission {
	c := &Commission{
		ReferrerID:   referrerID,
		InvestorID:   b.Account.ID,
		InvestorName: b.Account.Name,
		Amount:       common.Round2(amount),
		Status:       CommissionPending,
		CreatedAt:    b.now,
		investment:   inv,
	}
	b.commissions = append(b.commissions, c)
	return c
}

// Pending-списки для хранилищ.

func (b *Book) NewTransactions() []*Transaction { return b.newTx }
func (b *Book) NewInvestments() []*Investment   { return b.newInv }
func (b *Book) Settled() []*Transaction         { return b.settled }
func (b *Book) Commissions() []*Commission      { return b.commissions }

// TouchedInvestments возвращает изменённые, но не новые инвестиции.
func (b *Book) TouchedInvestments() []*Investment {
	isNew := make(map[*Investment]bool, len(b.newInv))
	for _, inv := range b.newInv {
		isNew[inv] = true
	}
	var out []*Investment
	for _, inv := range b.Investments {
		if b.touched[inv] && !isNew[inv] {
			out = append(out, inv)
		}
	}
	return out
}

// BindCommissions проставляет ID инвестиций в комиссии после их вставки.
func (b *Book) BindCommissions() {
	for _, c := range b.commissions {
		if c.investment != nil {
			c.InvestmentID = c.investment.ID
		}
	}
}

func (b *Book) setBalance(v decimal.Decimal) {
	v, clamped := common.ClampNonNegative(common.Round2(v))
	if clamped {
		log.WithFields(log.Fields{
			"user_id": b.Account.ID,
			"balance": b.Account.Balance.String(),
		}).Warn("Баланс ушёл бы в минус, обрезан до нуля")
	}
	b.Account.Balance = v
}

func (b *Book) record(kind Kind, amount decimal.Decimal, description string, status Status) *Transaction {
	// Транзакции одной единицы работы различаются на микросекунду,
	// чтобы порядок "новые сверху" был стабильным
	at := b.now.Add(time.Duration(len(b.newTx)) * time.Microsecond)
	tx := &Transaction{
		ID:          uuid.NewString(),
		UserID:      b.Account.ID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Status:      status,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	b.newTx = append(b.newTx, tx)
	return tx
}
