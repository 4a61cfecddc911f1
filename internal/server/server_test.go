package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/ledger"
)

type userAuthFunc func(ctx context.Context, token string) (*ledger.Account, error)

func (f userAuthFunc) Authenticate(ctx context.Context, token string) (*ledger.Account, error) {
	return f(ctx, token)
}

type staffAuthFunc func(ctx context.Context, token string) (common.Staff, error)

func (f staffAuthFunc) Authenticate(ctx context.Context, token string) (common.Staff, error) {
	return f(ctx, token)
}

func testRouter(t *testing.T, limiter *RateLimiter) http.Handler {
	t.Helper()
	cfg := &config.Config{HTTPMaxInflight: 8}

	users := userAuthFunc(func(_ context.Context, token string) (*ledger.Account, error) {
		switch token {
		case "good":
			return &ledger.Account{ID: 7}, nil
		case "removed":
			return nil, common.ErrAppAccessRevoked
		}
		return nil, common.ErrSessionExpired
	})
	staff := staffAuthFunc(func(_ context.Context, token string) (common.Staff, error) {
		if token == "staff" {
			return common.Staff{ID: 1, Username: "admin", Role: common.RoleAdmin}, nil
		}
		return common.Staff{}, common.ErrSessionExpired
	})

	return NewRouter(cfg, Options{
		Users:   users,
		Staff:   staff,
		Limiter: limiter,
		Routes: Routes{
			Public: []func(*mux.Router){func(r *mux.Router) {
				r.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) { common.OK(w, "public") }).Methods(http.MethodPost)
			}},
			User: []func(*mux.Router){func(r *mux.Router) {
				r.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
					id, _ := common.UserID(r.Context())
					common.OK(w, map[string]any{"id": id, "token": common.Token(r.Context())})
				}).Methods(http.MethodGet)
				r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") }).Methods(http.MethodGet)
			}},
			StaffPublic: []func(*mux.Router){func(r *mux.Router) {
				r.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) { common.OK(w, "staff login") }).Methods(http.MethodPost)
			}},
			Admin: []func(*mux.Router){func(r *mux.Router) {
				r.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
					s, _ := common.StaffFrom(r.Context())
					common.OK(w, s.Username)
				}).Methods(http.MethodGet)
			}},
		},
	})
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterZones(t *testing.T) {
	h := testRouter(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"public without token", http.MethodPost, "/api/login", "", http.StatusOK},
		{"user without token", http.MethodGet, "/api/me", "", http.StatusUnauthorized},
		{"user with token", http.MethodGet, "/api/me", "good", http.StatusOK},
		{"uninstalled app", http.MethodGet, "/api/me", "removed", http.StatusForbidden},
		{"user token on admin", http.MethodGet, "/admin/dashboard", "good", http.StatusUnauthorized},
		{"staff login", http.MethodPost, "/admin/login", "", http.StatusOK},
		{"staff token", http.MethodGet, "/admin/dashboard", "staff", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, tc.token)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(h, http.MethodGet, "/api/me", "good")
	assert.Contains(t, rec.Body.String(), `"id":7`)
	assert.Contains(t, rec.Body.String(), `"token":"good"`)
}

func TestRecoverFromPanic(t *testing.T) {
	h := testRouter(t, nil)
	rec := do(h, http.MethodGet, "/api/boom", "good")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrStorage.Msg)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Close()
	h := testRouter(t, rl)

	for range 2 {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/healthz", "").Code)

	// Без доверенных прокси заголовок не даёт новую корзину
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other client has its own bucket")
}

func TestRealIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	var seen string
	h := RealIP(proxies)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = common.ClientIP(r)
	}))

	cases := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{"direct client spoofing", "198.51.100.7:1000", "1.2.3.4", "", "198.51.100.7"},
		{"trusted proxy", "10.0.0.5:1000", "203.0.113.9", "", "203.0.113.9"},
		{"chain through trusted hops", "10.0.0.5:1000", "1.2.3.4, 203.0.113.9, 10.1.1.1", "", "203.0.113.9"},
		{"real ip header", "10.0.0.5:1000", "", "203.0.113.10", "203.0.113.10"},
		{"trusted proxy without headers", "10.0.0.5:1000", "", "", "10.0.0.5"},
		{"garbage header", "10.0.0.5:1000", "not-an-ip", "", "10.0.0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestRealIPDisabledWithoutProxies(t *testing.T) {
	var seen string
	h := RealIP(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = common.ClientIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Real-IP", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "2001:db8::1", seen)
}

func TestInflightRejectsOverflow(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	h := Inflight(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	require.Equal(t, http.StatusOK, <-done)
}
