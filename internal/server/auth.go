package server

import (
	"context"
	"net/http"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// UserAuthenticator проверяет токен пользователя вместе с доступом к приложению.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*ledger.Account, error)
}

// StaffAuthenticator проверяет токен сотрудника.
type StaffAuthenticator interface {
	Authenticate(ctx context.Context, token string) (common.Staff, error)
}

// RequireUser пускает только пользователей с живой сессией.
// Удалённое приложение и блокировка проверяются на каждом запросе.
func RequireUser(auth UserAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := common.BearerToken(r)
			acc, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				common.Fail(w, r, err)
				return
			}
			ctx := common.WithUserID(r.Context(), acc.ID)
			ctx = common.WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff пускает только сотрудников с живой сессией.
func RequireStaff(auth StaffAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := common.BearerToken(r)
			s, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				common.Fail(w, r, err)
				return
			}
			ctx := common.WithStaff(r.Context(), s)
			ctx = common.WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
