package ledger

import "context"

// Store — хранилище аккаунтов. Реализации: Repository (PostgreSQL)
// и ledgertest.Store (в памяти, для тестов).
//
// Порядок блокировок: аккаунт → заявка; строка комиссии → реферер.
// Блокировка инвестора никогда не держится во время работы с реферером.
type Store interface {
	// Create вставляет аккаунт и приветственную транзакцию одной транзакцией БД.
	// Телефон занят — ErrDuplicateIdentity.
	Create(ctx context.Context, acc *Account, welcome string) error
	Get(ctx context.Context, id int64) (*Account, error)
	GetByPhone(ctx context.Context, phone string) (*Account, error)
	GetByReferralCode(ctx context.Context, code string) (*Account, error)
	List(ctx context.Context, f ListFilter) ([]Account, error)
	Delete(ctx context.Context, id int64) error

	// Update — единица работы над одним аккаунтом под блокировкой его строки.
	// Если fn вернула ошибку, ничего не сохраняется.
	Update(ctx context.Context, userID int64, fn func(b *Book) error) (*Account, error)
	// UpdateRequest блокирует владельца заявки, затем саму заявку.
	UpdateRequest(ctx context.Context, requestID string, fn func(b *Book, req *Transaction) error) (*Account, *Transaction, error)
	SetAppAccessAll(ctx context.Context, access bool) (int64, error)

	Investments(ctx context.Context, userID int64) ([]Investment, error)
	InvestorIDs(ctx context.Context) ([]int64, error)

	Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error)
	MarkRead(ctx context.Context, userID int64) (int64, error)
	Requests(ctx context.Context, f RequestFilter) ([]Request, error)
	GetRequest(ctx context.Context, id string) (*Request, error)

	PendingCommissions(ctx context.Context, limit int) ([]Commission, error)
	// SettleCommission блокирует строку комиссии, затем реферера.
	// Уже выплаченная комиссия пропускается без вызова fn.
	SettleCommission(ctx context.Context, id int64, fn func(b *Book, c *Commission) error) error
	FailCommission(ctx context.Context, id int64, reason string, maxAttempts int) error

	Team(ctx context.Context, referrerID int64) ([]TeamMember, error)
	Totals(ctx context.Context) (Totals, error)
}
