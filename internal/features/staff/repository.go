// Package staff — repository.go: сотрудники (gorm) и попытки входа (pgx).
package staff

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"wealthfund.in/platform/internal/common"
)

// Store — хранилище сотрудников.
type Store interface {
	List(ctx context.Context) ([]Employee, error)
	Get(ctx context.Context, id int64) (*Employee, error)
	GetByUsername(ctx context.Context, username string) (*Employee, error)
	Create(ctx context.Context, e *Employee) error
	Save(ctx context.Context, e *Employee) error
	Delete(ctx context.Context, id int64) error
}

// Attempts — журнал попыток входа для защиты от перебора.
type Attempts interface {
	Log(ctx context.Context, username string, success bool) error
	// Failures — число неудачных попыток начиная с since.
	Failures(ctx context.Context, username string, since time.Time) (int, error)
}

// Repository — Store на gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Employee, error) {
	var list []Employee
	if err := r.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, common.StorageError("list employees", err)
	}
	return list, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Employee, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*Employee, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).Where(query, arg).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, common.StorageError("get employee", err)
	}
	return &e, nil
}

func (r *Repository) Create(ctx context.Context, e *Employee) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return common.ErrEmployeeExists
		}
		return common.StorageError("create employee", err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, e *Employee) error {
	if err := r.db.WithContext(ctx).Save(e).Error; err != nil {
		return common.StorageError("save employee", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Employee{}, id)
	if res.Error != nil {
		return common.StorageError("delete employee", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrEmployeeNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// AttemptRepository пишет попытки в staff_login_attempts.
type AttemptRepository struct {
	db *pgxpool.Pool
}

func NewAttemptRepository(db *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Log(ctx context.Context, username string, success bool) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO staff_login_attempts (username, success) VALUES ($1, $2)",
		username, success)
	if err != nil {
		return common.StorageError("log attempt", err)
	}
	return nil
}

func (r *AttemptRepository) Failures(ctx context.Context, username string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM staff_login_attempts
		WHERE username = $1 AND success = FALSE AND attempt_time >= $2
	`, username, since).Scan(&n)
	if err != nil {
		return 0, common.StorageError("count attempts", err)
	}
	return n, nil
}

// Purge удаляет попытки старше before.
func (r *AttemptRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM staff_login_attempts WHERE attempt_time < $1", before)
	if err != nil {
		return 0, common.StorageError("purge attempts", err)
	}
	return tag.RowsAffected(), nil
}
