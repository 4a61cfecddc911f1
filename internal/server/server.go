package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
)

// Routes — регистраторы маршрутов по зонам доступа.
type Routes struct {
	Public      []func(*mux.Router) // /api без сессии
	User        []func(*mux.Router) // /api с сессией пользователя
	StaffPublic []func(*mux.Router) // /admin без сессии
	Admin       []func(*mux.Router) // /admin с сессией сотрудника
}

// Options — всё, что нужно роутеру.
type Options struct {
	Users   UserAuthenticator
	Staff   StaffAuthenticator
	Limiter *RateLimiter
	Routes  Routes
}

// NewRouter собирает дерево маршрутов:
//
//	/healthz
//	/api/...   публичные, затем под RequireUser
//	/admin/... публичные, затем под RequireStaff
func NewRouter(cfg *config.Config, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(RealIP(cfg.Proxies), Recover, AccessLog(time.Second), Inflight(cfg.HTTPMaxInflight))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.OK(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	for _, register := range opts.Routes.Public {
		register(api)
	}
	user := api.NewRoute().Subrouter()
	user.Use(RequireUser(opts.Users))
	for _, register := range opts.Routes.User {
		register(user)
	}

	admin := r.PathPrefix("/admin").Subrouter()
	for _, register := range opts.Routes.StaffPublic {
		register(admin)
	}
	staff := admin.NewRoute().Subrouter()
	staff.Use(RequireStaff(opts.Staff))
	for _, register := range opts.Routes.Admin {
		register(staff)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusNotFound, common.APIResponse{Message: "route not found"})
	})
	return r
}

// New — http.Server с таймаутами из конфига.
func New(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       time.Minute,
	}
}
