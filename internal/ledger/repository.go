// Package ledger — repository.go: реализация Store поверх PostgreSQL.
// Все денежные операции выполняются в транзакциях БД, строка аккаунта
// блокируется через SELECT ... FOR UPDATE на всё время единицы работы.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
)

// ErrReferralCodeTaken — сгенерированный реферальный код уже занят,
// регистрация повторяет попытку с новым кодом.
var ErrReferralCodeTaken = errors.New("referral code already taken")

const uniqueViolation = "23505"

const accountColumns = `id, phone, password_hash, name, balance, total_returns,
	recharge_amount, withdrawals, team_income, is_active, app_access,
	bank_holder, bank_account_number, bank_ifsc, fund_password_hash,
	lucky_draw_chances, referral_code, referrer_id, check_in_streak,
	last_check_in_date, language, created_at, updated_at`

const investmentColumns = `id, user_id, plan_id, plan_name, category, invested_amount,
	daily_earnings, revenue_days, quantity, total_revenue, start_date,
	last_distributed_date, created_at`

const transactionColumns = `t.id, t.user_id, t.kind, t.amount, t.fee, t.net, t.description,
	t.status, t.proof_key, t.is_read, t.created_at, t.updated_at`

const commissionColumns = `id, referrer_id, investor_id, investor_name, investment_id,
	amount, status, attempts, last_error, created_at, settled_at`

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository предоставляет методы для работы с аккаунтами и деньгами.
type Repository struct {
	db  *pgxpool.Pool
	now common.Clock
}

// NewRepository создаёт новый репозиторий.
func NewRepository(db *pgxpool.Pool, clock common.Clock) *Repository {
	return &Repository{db: db, now: clock}
}

var _ Store = (*Repository)(nil)

// Create вставляет нового пользователя вместе с приветственной транзакцией.
func (r *Repository) Create(ctx context.Context, acc *Account, welcome string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (phone, password_hash, name, balance, is_active, app_access,
			lucky_draw_chances, referral_code, referrer_id, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, acc.Phone, acc.PasswordHash, acc.Name, acc.Balance, acc.IsActive, acc.AppAccess,
		acc.LuckyDrawChances, acc.ReferralCode, acc.ReferrerID, acc.Language,
	).Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "referral_code") {
				return ErrReferralCodeTaken
			}
			return common.ErrDuplicateIdentity
		}
		return common.StorageError("insert user", err)
	}

	b := NewBook(acc, nil, acc.CreatedAt)
	b.Note(KindSystem, decimal.Zero, welcome)
	if err := insertTransactions(ctx, tx, b.NewTransactions()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StorageError("commit", err)
	}
	return nil
}

// Get возвращает аккаунт по ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Account, error) {
	return r.getBy(ctx, "id", id)
}

// GetByPhone возвращает аккаунт по телефону.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (*Account, error) {
	return r.getBy(ctx, "phone", phone)
}

// GetByReferralCode возвращает аккаунт по реферальному коду.
func (r *Repository) GetByReferralCode(ctx context.Context, code string) (*Account, error) {
	return r.getBy(ctx, "referral_code", strings.ToUpper(code))
}

func (r *Repository) getBy(ctx context.Context, column string, value any) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE "+column+" = $1", value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, common.StorageError("get user", err)
	}
	return acc, nil
}

// List возвращает пользователей, новые сверху.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Account, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := "SELECT " + accountColumns + " FROM users"
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += " WHERE name ILIKE $1 OR phone ILIKE $1"
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, common.StorageError("list users", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, common.StorageError("scan user", err)
		}
		out = append(out, *acc)
	}
	return out, common.StorageError("list users", rows.Err())
}

// Delete удаляет пользователя насовсем вместе с историей.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return common.StorageError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// Update — единица работы над аккаунтом userID.
func (r *Repository) Update(ctx context.Context, userID int64, fn func(b *Book) error) (*Account, error) {
	return r.update(ctx, userID, func(_ context.Context, _ pgx.Tx, b *Book) error {
		return fn(b)
	})
}

// UpdateRequest блокирует владельца заявки и саму заявку и передаёт их в fn.
func (r *Repository) UpdateRequest(ctx context.Context, requestID string, fn func(b *Book, req *Transaction) error) (*Account, *Transaction, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, nil, common.ErrRequestNotFound
	}

	var ownerID int64
	err := r.db.QueryRow(ctx, `
		SELECT user_id FROM transactions WHERE id = $1 AND kind IN ('deposit', 'withdrawal')
	`, requestID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, common.ErrRequestNotFound
	}
	if err != nil {
		return nil, nil, common.StorageError("find request", err)
	}

	var req *Transaction
	acc, err := r.update(ctx, ownerID, func(ctx context.Context, tx pgx.Tx, b *Book) error {
		var err error
		req, err = scanTransaction(tx.QueryRow(ctx,
			"SELECT "+transactionColumns+" FROM transactions t WHERE t.id = $1 AND t.user_id = $2 FOR UPDATE",
			requestID, ownerID))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrRequestNotFound
		}
		if err != nil {
			return common.StorageError("lock request", err)
		}
		return fn(b, req)
	})
	if err != nil {
		return nil, nil, err
	}
	return acc, req, nil
}

func (r *Repository) update(ctx context.Context, userID int64, fn func(ctx context.Context, tx pgx.Tx, b *Book) error) (*Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, common.StorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	acc, err := scanAccount(tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = $1 FOR UPDATE", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, common.StorageError("lock user", err)
	}

	investments, err := loadInvestments(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	b := NewBook(acc, investments, r.now())
	if err := fn(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := persist(ctx, tx, b); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, common.StorageError("commit", err)
	}
	return acc, nil
}

// SetAppAccessAll включает или выключает приложение всем пользователям.
func (r *Repository) SetAppAccessAll(ctx context.Context, access bool) (int64, error) {
	tag, err := r.db.Exec(ctx, "UPDATE users SET app_access = $1, updated_at = NOW()", access)
	if err != nil {
		return 0, common.StorageError("set app access", err)
	}
	return tag.RowsAffected(), nil
}

// Investments возвращает инвестиции пользователя, новые сверху.
func (r *Repository) Investments(ctx context.Context, userID int64) ([]Investment, error) {
	list, err := loadInvestments(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Investment, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, *list[i])
	}
	return out, nil
}

// InvestorIDs возвращает ID всех пользователей, у которых есть инвестиции.
func (r *Repository) InvestorIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, "SELECT DISTINCT user_id FROM investments ORDER BY user_id")
	if err != nil {
		return nil, common.StorageError("investor ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, common.StorageError("investor ids", err)
	}
	return ids, nil
}

// Transactions возвращает историю пользователя, новые сверху.
func (r *Repository) Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions t WHERE t.user_id = $1 ORDER BY t.created_at DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, common.StorageError("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, common.StorageError("scan transaction", err)
		}
		out = append(out, *t)
	}
	return out, common.StorageError("list transactions", rows.Err())
}

// MarkRead помечает все уведомления пользователя прочитанными.
func (r *Repository) MarkRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE transactions SET is_read = TRUE WHERE user_id = $1 AND NOT is_read", userID)
	if err != nil {
		return 0, common.StorageError("mark read", err)
	}
	return tag.RowsAffected(), nil
}

// Requests возвращает заявки с именем и телефоном владельца.
func (r *Repository) Requests(ctx context.Context, f RequestFilter) ([]Request, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var (
		where = []string{"t.kind IN ('deposit', 'withdrawal')"}
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("t.kind = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(u.name ILIKE $%d OR u.phone ILIKE $%d OR t.id::text ILIKE $%d)", n, n, n))
	}
	args = append(args, limit)

	query := "SELECT " + transactionColumns + `, u.name, u.phone
		FROM transactions t JOIN users u ON u.id = t.user_id
		WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, common.StorageError("list requests", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, common.StorageError("scan request", err)
		}
		out = append(out, *req)
	}
	return out, common.StorageError("list requests", rows.Err())
}

// GetRequest возвращает одну заявку.
func (r *Repository) GetRequest(ctx context.Context, id string) (*Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrRequestNotFound
	}
	req, err := scanRequest(r.db.QueryRow(ctx, "SELECT "+transactionColumns+`, u.name, u.phone
		FROM transactions t JOIN users u ON u.id = t.user_id
		WHERE t.id = $1 AND t.kind IN ('deposit', 'withdrawal')`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRequestNotFound
	}
	if err != nil {
		return nil, common.StorageError("get request", err)
	}
	return req, nil
}

// PendingCommissions возвращает невыплаченные комиссии, старые первыми.
func (r *Repository) PendingCommissions(ctx context.Context, limit int) ([]Commission, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+commissionColumns+" FROM referral_commissions WHERE status = 'pending' ORDER BY id LIMIT $1",
		limit)
	if err != nil {
		return nil, common.StorageError("pending commissions", err)
	}
	defer rows.Close()

	var out []Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, common.StorageError("scan commission", err)
		}
		out = append(out, *c)
	}
	return out, common.StorageError("pending commissions", rows.Err())
}

// SettleCommission выплачивает комиссию: строка outbox → реферер.
func (r *Repository) SettleCommission(ctx context.Context, id int64, fn func(b *Book, c *Commission) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	c, err := scanCommission(tx.QueryRow(ctx,
		"SELECT "+commissionColumns+" FROM referral_commissions WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		// Реферер или инвестор удалены вместе с outbox
		return nil
	}
	if err != nil {
		return common.StorageError("lock commission", err)
	}
	if c.Status != CommissionPending {
		return nil
	}

	acc, err := scanAccount(tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = $1 FOR UPDATE", c.ReferrerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrUserNotFound
	}
	if err != nil {
		return common.StorageError("lock referrer", err)
	}

	now := r.now()
	b := NewBook(acc, nil, now)
	if err := fn(b, c); err != nil {
		return err
	}
	if err := persist(ctx, tx, b); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE referral_commissions
		SET status = 'paid', attempts = attempts + 1, last_error = '', settled_at = $2
		WHERE id = $1
	`, id, now); err != nil {
		return common.StorageError("mark commission paid", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StorageError("commit", err)
	}
	return nil
}

// FailCommission фиксирует неудачную попытку. После maxAttempts
// комиссия помечается failed и больше не повторяется.
func (r *Repository) FailCommission(ctx context.Context, id int64, reason string, maxAttempts int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE referral_commissions
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE status END
		WHERE id = $1 AND status = 'pending'
	`, id, truncate(reason, 500), maxAttempts)
	if err != nil {
		return common.StorageError("fail commission", err)
	}
	return nil
}

// Team возвращает приглашённых пользователем и сумму их инвестиций.
func (r *Repository) Team(ctx context.Context, referrerID int64) ([]TeamMember, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.name, u.phone, COALESCE(SUM(i.invested_amount), 0), u.created_at
		FROM users u
		LEFT JOIN investments i ON i.user_id = u.id
		WHERE u.referrer_id = $1
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`, referrerID)
	if err != nil {
		return nil, common.StorageError("team", err)
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Invested, &m.JoinedAt); err != nil {
			return nil, common.StorageError("scan team", err)
		}
		out = append(out, m)
	}
	return out, common.StorageError("team", rows.Err())
}

// Totals считает сводку для дашборда.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COALESCE(SUM(invested_amount), 0) FROM investments),
			(SELECT COALESCE(SUM(balance), 0) FROM users),
			(SELECT COUNT(*) FROM transactions WHERE status = 'pending' AND kind IN ('deposit', 'withdrawal'))
	`).Scan(&t.TotalUsers, &t.ActiveUsers, &t.TotalInvestments, &t.PlatformBalance, &t.PendingRequests)
	if err != nil {
		return Totals{}, common.StorageError("totals", err)
	}
	return t, nil
}

// persist сохраняет всё, что накопилось в Book.
func persist(ctx context.Context, tx pgx.Tx, b *Book) error {
	a := b.Account

	var holder, number, ifsc *string
	if a.BankAccount != nil {
		holder, number, ifsc = &a.BankAccount.Holder, &a.BankAccount.Number, &a.BankAccount.IFSC
	}

	_, err := tx.Exec(ctx, `
		UPDATE users SET
			password_hash = $2, name = $3, balance = $4, total_returns = $5,
			recharge_amount = $6, withdrawals = $7, team_income = $8,
			is_active = $9, app_access = $10,
			bank_holder = $11, bank_account_number = $12, bank_ifsc = $13,
			fund_password_hash = $14, lucky_draw_chances = $15,
			check_in_streak = $16, last_check_in_date = $17, language = $18,
			updated_at = $19
		WHERE id = $1
	`, a.ID, a.PasswordHash, a.Name, a.Balance, a.TotalReturns,
		a.RechargeAmount, a.Withdrawals, a.TeamIncome,
		a.IsActive, a.AppAccess,
		holder, number, ifsc,
		a.FundPasswordHash, a.LuckyDrawChances,
		a.CheckInStreak, a.LastCheckInDate, a.Language,
		b.Now())
	if err != nil {
		return common.StorageError("update user", err)
	}
	a.UpdatedAt = b.Now()

	for _, inv := range b.NewInvestments() {
		err := tx.QueryRow(ctx, `
			INSERT INTO investments (user_id, plan_id, plan_name, category, invested_amount,
				daily_earnings, revenue_days, quantity, total_revenue, start_date,
				last_distributed_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, inv.UserID, inv.PlanID, inv.PlanName, inv.Category, inv.InvestedAmount,
			inv.DailyEarnings, inv.RevenueDays, inv.Quantity, inv.TotalRevenue, inv.StartDate,
			inv.LastDistributedDate, inv.CreatedAt,
		).Scan(&inv.ID)
		if err != nil {
			return common.StorageError("insert investment", err)
		}
	}
	b.BindCommissions()

	for _, inv := range b.TouchedInvestments() {
		if _, err := tx.Exec(ctx, `
			UPDATE investments SET total_revenue = $2, last_distributed_date = $3 WHERE id = $1
		`, inv.ID, inv.TotalRevenue, inv.LastDistributedDate); err != nil {
			return common.StorageError("update investment", err)
		}
	}

	if err := insertTransactions(ctx, tx, b.NewTransactions()); err != nil {
		return err
	}

	for _, req := range b.Settled() {
		if _, err := tx.Exec(ctx,
			"UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1",
			req.ID, string(req.Status), req.UpdatedAt); err != nil {
			return common.StorageError("settle request", err)
		}
	}

	for _, c := range b.Commissions() {
		err := tx.QueryRow(ctx, `
			INSERT INTO referral_commissions (referrer_id, investor_id, investor_name,
				investment_id, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, c.ReferrerID, c.InvestorID, c.InvestorName, c.InvestmentID, c.Amount,
			string(c.Status), c.CreatedAt,
		).Scan(&c.ID)
		if err != nil {
			return common.StorageError("enqueue commission", err)
		}
	}
	return nil
}

func insertTransactions(ctx context.Context, tx pgx.Tx, list []*Transaction) error {
	for _, t := range list {
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (id, user_id, kind, amount, fee, net, description,
				status, proof_key, is_read, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, t.ID, t.UserID, string(t.Kind), t.Amount, t.Fee, t.Net, t.Description,
			string(t.Status), t.ProofKey, t.Read, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return common.ErrDuplicateRequest
			}
			return common.StorageError("insert transaction", err)
		}
	}
	return nil
}

func loadInvestments(ctx context.Context, q querier, userID int64) ([]*Investment, error) {
	rows, err := q.Query(ctx,
		"SELECT "+investmentColumns+" FROM investments WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, common.StorageError("load investments", err)
	}
	defer rows.Close()

	var out []*Investment
	for rows.Next() {
		var inv Investment
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.PlanID, &inv.PlanName, &inv.Category,
			&inv.InvestedAmount, &inv.DailyEarnings, &inv.RevenueDays, &inv.Quantity,
			&inv.TotalRevenue, &inv.StartDate, &inv.LastDistributedDate, &inv.CreatedAt); err != nil {
			return nil, common.StorageError("scan investment", err)
		}
		out = append(out, &inv)
	}
	return out, common.StorageError("load investments", rows.Err())
}

func scanAccount(row scanner) (*Account, error) {
	var (
		a                    Account
		holder, number, ifsc *string
	)
	err := row.Scan(&a.ID, &a.Phone, &a.PasswordHash, &a.Name, &a.Balance, &a.TotalReturns,
		&a.RechargeAmount, &a.Withdrawals, &a.TeamIncome, &a.IsActive, &a.AppAccess,
		&holder, &number, &ifsc, &a.FundPasswordHash,
		&a.LuckyDrawChances, &a.ReferralCode, &a.ReferrerID, &a.CheckInStreak,
		&a.LastCheckInDate, &a.Language, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if holder != nil && number != nil && ifsc != nil {
		a.BankAccount = &BankAccount{Holder: *holder, Number: *number, IFSC: *ifsc}
	}
	return &a, nil
}

func scanTransaction(row scanner) (*Transaction, error) {
	var (
		t            Transaction
		kind, status string
	)
	if err := row.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.Fee, &t.Net, &t.Description,
		&status, &t.ProofKey, &t.Read, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Kind, t.Status = Kind(kind), Status(status)
	return &t, nil
}

func scanRequest(row scanner) (*Request, error) {
	var (
		r            Request
		kind, status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &kind, &r.Amount, &r.Fee, &r.Net, &r.Description,
		&status, &r.ProofKey, &r.Read, &r.CreatedAt, &r.UpdatedAt,
		&r.UserName, &r.UserPhone); err != nil {
		return nil, err
	}
	r.Kind, r.Status = Kind(kind), Status(status)
	return &r, nil
}

func scanCommission(row scanner) (*Commission, error) {
	var (
		c      Commission
		status string
	)
	if err := row.Scan(&c.ID, &c.ReferrerID, &c.InvestorID, &c.InvestorName, &c.InvestmentID,
		&c.Amount, &status, &c.Attempts, &c.LastError, &c.CreatedAt, &c.SettledAt); err != nil {
		return nil, err
	}
	c.Status = CommissionStatus(status)
	return &c, nil
}

// truncate для last_error, чтобы не раздувать строку outbox.
// Режет не длиннее n байт и только по границе руны: PostgreSQL не
// примет обрезанный UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
