// Package common — session.go: кто делает запрос.
// Middleware аутентификации кладёт владельца сессии в контекст.
package common

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey int

const (
	userKey ctxKey = iota
	staffKey
	tokenKey
)

// Роли сотрудников
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Staff — сотрудник, выполняющий запрос.
type Staff struct {
	ID       int64
	Username string
	Role     string
}

// IsAdmin — есть ли у сотрудника роль admin.
func (s Staff) IsAdmin() bool { return s.Role == RoleAdmin }

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// UserID возвращает ID пользователя из контекста.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey).(int64)
	return id, ok
}

func WithStaff(ctx context.Context, s Staff) context.Context {
	return context.WithValue(ctx, staffKey, s)
}

// StaffFrom возвращает сотрудника из контекста.
func StaffFrom(ctx context.Context) (Staff, bool) {
	s, ok := ctx.Value(staffKey).(Staff)
	return s, ok
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// Token — bearer-токен текущего запроса.
func Token(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// BearerToken достаёт токен из заголовка Authorization.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ClientIP — адрес клиента из RemoteAddr. Заголовки прокси сюда не
// доходят: доверенный адрес подставляет server.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
