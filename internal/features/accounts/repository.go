package accounts

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wealthfund.in/platform/internal/common"
)

// LoginHistory — история входов пользователя.
type LoginHistory interface {
	// Record пишет вход и оставляет только keep последних записей.
	Record(ctx context.Context, userID int64, device, ip string, keep int) error
	List(ctx context.Context, userID int64) ([]LoginRecord, error)
}

// LoginRepository хранит историю в таблице login_activity.
type LoginRepository struct {
	db *pgxpool.Pool
}

func NewLoginRepository(db *pgxpool.Pool) *LoginRepository {
	return &LoginRepository{db: db}
}

func (r *LoginRepository) Record(ctx context.Context, userID int64, device, ip string, keep int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO login_activity (user_id, device, ip) VALUES ($1, $2, $3)",
		userID, truncate(device, 255), truncate(ip, 64)); err != nil {
		return common.StorageError("insert login", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM login_activity
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM login_activity WHERE user_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		)`, userID, keep); err != nil {
		return common.StorageError("trim logins", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StorageError("commit", err)
	}
	return nil
}

func (r *LoginRepository) List(ctx context.Context, userID int64) ([]LoginRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, device, ip, created_at FROM login_activity
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, common.StorageError("logins", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[LoginRecord])
	if err != nil {
		return nil, common.StorageError("logins", err)
	}
	return list, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
