// Package ledger хранит аккаунты, инвестиции и транзакции.
// Любое изменение баланса идёт через Book под блокировкой строки аккаунта.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind — тип транзакции.
type Kind string

const (
	KindInvestment Kind = "investment"
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindReward     Kind = "reward"
	KindPrize      Kind = "prize"
	KindCommission Kind = "commission"
	KindSystem     Kind = "system"
)

// IsRequest — депозиты и выводы проходят через одобрение админом.
func (k Kind) IsRequest() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Status — статус транзакции. pending бывает только у заявок.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// BankAccount — реквизиты для вывода.
type BankAccount struct {
	Holder string `json:"holder"`
	Number string `json:"number"`
	IFSC   string `json:"ifsc"`
}

// Account — аккаунт пользователя. Все деньги в рупиях с двумя знаками.
type Account struct {
	ID           int64  `json:"id"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`

	Balance        decimal.Decimal `json:"balance"`
	TotalReturns   decimal.Decimal `json:"totalReturns"`   // Всего начислено по планам
	RechargeAmount decimal.Decimal `json:"rechargeAmount"` // Сумма одобренных пополнений
	Withdrawals    decimal.Decimal `json:"withdrawals"`    // Сумма одобренных выводов (gross)
	TeamIncome     decimal.Decimal `json:"teamIncome"`     // Реферальные комиссии

	IsActive  bool `json:"isActive"`  // false = заблокирован админом
	AppAccess bool `json:"appAccess"` // false = приложение "удалено" удалённо

	BankAccount      *BankAccount `json:"bankAccount,omitempty"`
	FundPasswordHash *string      `json:"-"`

	LuckyDrawChances int    `json:"luckyDrawChances"`
	ReferralCode     string `json:"referralCode"`
	ReferrerID       *int64 `json:"referrerId,omitempty"` // Не меняется после регистрации

	CheckInStreak   int    `json:"checkInStreak"`
	LastCheckInDate string `json:"lastCheckInDate"` // 2006-01-02 или пусто
	Language        string `json:"language"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasFundPassword — установлен ли платёжный пароль.
func (a *Account) HasFundPassword() bool {
	return a.FundPasswordHash != nil && *a.FundPasswordHash != ""
}

// Investment — купленный план. Условия плана копируются в момент покупки,
// правки каталога на неё не влияют. Никогда не удаляется.
type Investment struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"userId"`
	PlanID              int64           `json:"planId"`
	PlanName            string          `json:"planName"`
	Category            string          `json:"category"`
	InvestedAmount      decimal.Decimal `json:"investedAmount"`
	DailyEarnings       decimal.Decimal `json:"dailyEarnings"`
	RevenueDays         int             `json:"revenueDays"`
	Quantity            int             `json:"quantity"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	StartDate           time.Time       `json:"startDate"`
	LastDistributedDate string          `json:"lastDistributedDate"` // Дата последнего начисления, ключ идемпотентности
	CreatedAt           time.Time       `json:"createdAt"`
}

// EndDate — момент, после которого начисления прекращаются навсегда.
func (i *Investment) EndDate() time.Time {
	return i.StartDate.AddDate(0, 0, i.RevenueDays)
}

// Expired — срок плана истёк к моменту now.
func (i *Investment) Expired(now time.Time) bool {
	return now.After(i.EndDate())
}

// Transaction — запись в истории пользователя. Для депозитов и выводов
// это одновременно и заявка в очереди админа.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"userId"`
	Kind        Kind            `json:"type"`
	Amount      decimal.Decimal `json:"amount"` // Со знаком: списание < 0
	Fee         decimal.Decimal `json:"fee"`
	Net         decimal.Decimal `json:"net"`
	Description string          `json:"description"`
	Status      Status          `json:"status"`
	ProofKey    string          `json:"proofKey,omitempty"` // Ключ скриншота оплаты в S3
	Read        bool            `json:"read"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Request — заявка вместе с именем и телефоном владельца для админки.
type Request struct {
	Transaction
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
}

// CommissionStatus — статус реферальной комиссии в outbox.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
	CommissionFailed  CommissionStatus = "failed"
)

// Commission — строка outbox: комиссия пригласившему за инвестицию реферала.
// Пишется в транзакции инвестора, выплачивается отдельно под блокировкой реферера.
type Commission struct {
	ID           int64            `json:"id"`
	ReferrerID   int64            `json:"referrerId"`
	InvestorID   int64            `json:"investorId"`
	InvestorName string           `json:"investorName"`
	InvestmentID int64            `json:"investmentId"`
	Amount       decimal.Decimal  `json:"amount"`
	Status       CommissionStatus `json:"status"`
	Attempts     int              `json:"attempts"`
	LastError    string           `json:"lastError,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	SettledAt    *time.Time       `json:"settledAt,omitempty"`

	investment *Investment
}

// TeamMember — приглашённый пользователь в разделе "Команда".
type TeamMember struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Phone    string          `json:"phone"`
	Invested decimal.Decimal `json:"invested"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// Totals — сводка для дашборда админки.
type Totals struct {
	TotalUsers       int64           `json:"totalUsers"`
	ActiveUsers      int64           `json:"activeUsers"`
	TotalInvestments decimal.Decimal `json:"totalInvestments"`
	PlatformBalance  decimal.Decimal `json:"platformBalance"`
	PendingRequests  int64           `json:"pendingRequests"`
}

// ListFilter — фильтр списка пользователей.
type ListFilter struct {
	Search string // Подстрока имени или телефона
	Limit  int
	Offset int
}

// RequestFilter — фильтр очереди и истории заявок.
type RequestFilter struct {
	Status Status // Пусто = любой
	Kind   Kind   // Пусто = депозиты и выводы
	Search string
	Limit  int
}
