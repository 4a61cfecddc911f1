package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wealthfund.in/platform/internal/common"
)

// SessionStore хранит сессии по хешу токена.
type SessionStore interface {
	Create(ctx context.Context, tokenHash string, subjectID int64, expiresAt time.Time) error
	// Lookup возвращает владельца живой сессии или ErrSessionExpired.
	Lookup(ctx context.Context, tokenHash string) (int64, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteAll(ctx context.Context, subjectID int64) error
	Purge(ctx context.Context) (int64, error)
}

// Sessions — SessionStore на PostgreSQL. Одна реализация обслуживает
// user_sessions и staff_sessions, отличаются таблица и колонка владельца.
type Sessions struct {
	db      *pgxpool.Pool
	table   string
	subject string
}

// NewUserSessions — сессии пользователей приложения.
func NewUserSessions(db *pgxpool.Pool) *Sessions {
	return &Sessions{db: db, table: "user_sessions", subject: "user_id"}
}

// NewStaffSessions — сессии сотрудников админки.
func NewStaffSessions(db *pgxpool.Pool) *Sessions {
	return &Sessions{db: db, table: "staff_sessions", subject: "employee_id"}
}

func (s *Sessions) Create(ctx context.Context, tokenHash string, subjectID int64, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO "+s.table+" (token_hash, "+s.subject+", expires_at) VALUES ($1, $2, $3)",
		tokenHash, subjectID, expiresAt)
	if err != nil {
		return common.StorageError("create session", err)
	}
	return nil
}

func (s *Sessions) Lookup(ctx context.Context, tokenHash string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		"SELECT "+s.subject+" FROM "+s.table+" WHERE token_hash = $1 AND expires_at > NOW()",
		tokenHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrSessionExpired
	}
	if err != nil {
		return 0, common.StorageError("lookup session", err)
	}
	return id, nil
}

func (s *Sessions) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM "+s.table+" WHERE token_hash = $1", tokenHash); err != nil {
		return common.StorageError("delete session", err)
	}
	return nil
}

func (s *Sessions) DeleteAll(ctx context.Context, subjectID int64) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM "+s.table+" WHERE "+s.subject+" = $1", subjectID); err != nil {
		return common.StorageError("delete sessions", err)
	}
	return nil
}

// Purge удаляет истёкшие сессии. Вызывается кроном.
func (s *Sessions) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM "+s.table+" WHERE expires_at <= NOW()")
	if err != nil {
		return 0, common.StorageError("purge sessions", err)
	}
	return tag.RowsAffected(), nil
}

// Issue создаёт токен и сессию для subjectID. Возвращает сам токен,
// в хранилище попадает только его хеш.
func Issue(ctx context.Context, store SessionStore, subjectID int64, ttl time.Duration, now time.Time) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := store.Create(ctx, HashToken(token), subjectID, now.Add(ttl)); err != nil {
		return "", err
	}
	return token, nil
}
