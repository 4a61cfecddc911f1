// Package activity — журнал действий для админки: регистрации, входы,
// инвестиции, выводы, игры в колесо, удаление/восстановление приложения.
package activity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
)

// Действия журнала
const (
	ActionRegister      = "register"
	ActionLogin         = "login"
	ActionInvest        = "invest"
	ActionDeposit       = "deposit_request"
	ActionWithdraw      = "withdraw_request"
	ActionApprove       = "request_approved"
	ActionReject        = "request_rejected"
	ActionLuckyDraw     = "lucky_draw"
	ActionCheckIn       = "check_in"
	ActionUninstall     = "app_uninstall"
	ActionRestore       = "app_restore"
	ActionDistribution  = "distribution"
	ActionUserUpdated   = "user_updated"
	ActionUserDeleted   = "user_deleted"
	ActionStaffLogin    = "staff_login"
	ActionStaffPassword = "staff_password_changed"
)

// ShowLimit — сколько последних записей показывает админка.
const ShowLimit = 50

// Entry — одна запись журнала.
type Entry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder пишет запись в журнал. Ошибки записи не прерывают операцию.
type Recorder interface {
	Record(ctx context.Context, actor, action, details string)
}

// RecorderFunc — адаптер функции к Recorder.
type RecorderFunc func(ctx context.Context, actor, action, details string)

func (f RecorderFunc) Record(ctx context.Context, actor, action, details string) {
	f(ctx, actor, action, details)
}

// Repository хранит журнал в таблице activity_log.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record пишет запись. Сбой журнала только логируется.
func (r *Repository) Record(ctx context.Context, actor, action, details string) {
	_, err := r.db.Exec(ctx,
		"INSERT INTO activity_log (actor, action, details) VALUES ($1, $2, $3)",
		actor, action, details)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"actor":  actor,
			"action": action,
		}).Warn("Не удалось записать действие в журнал")
	}
}

// Recent возвращает последние записи, новые сверху.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > ShowLimit {
		limit = ShowLimit
	}
	rows, err := r.db.Query(ctx,
		"SELECT id, actor, action, details, created_at FROM activity_log ORDER BY created_at DESC, id DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, common.StorageError("activity", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Entry])
	if err != nil {
		return nil, common.StorageError("activity", err)
	}
	return entries, nil
}
