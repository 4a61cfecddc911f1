package accounts

import (
	"net/http"

	"github.com/gorilla/mux"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic — маршруты без сессии.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
}

func (h *Handler) RegisterUser(r *mux.Router) {
	r.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/me", h.profile).Methods(http.MethodGet)
	r.HandleFunc("/me/transactions", h.transactions).Methods(http.MethodGet)
	r.HandleFunc("/me/notifications/read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/me/login-activity", h.loginActivity).Methods(http.MethodGet)
	r.HandleFunc("/me/team", h.team).Methods(http.MethodGet)
	r.HandleFunc("/me/bank-account", h.bankAccount).Methods(http.MethodPut)
	r.HandleFunc("/me/fund-password", h.fundPassword).Methods(http.MethodPut)
	r.HandleFunc("/me/password", h.password).Methods(http.MethodPut)
}

func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)
	r.HandleFunc("/users", h.list).Methods(http.MethodGet)
	r.HandleFunc("/users/uninstall-all", h.accessAll(false)).Methods(http.MethodPost)
	r.HandleFunc("/users/restore-all", h.accessAll(true)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/users/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id:[0-9]+}/transactions", h.userTransactions).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}/uninstall", h.access(false)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/restore", h.access(true)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/reset-password", h.resetPassword).Methods(http.MethodPost)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	acc, err := h.svc.Register(r.Context(), in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, acc)
}

type loginRequest struct {
	Identifier string `json:"identifier"` // Телефон или ID
	Password   string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if req.Identifier == "" || req.Password == "" {
		common.Fail(w, r, common.ErrMissingField)
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Identifier, req.Password, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, sess)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), common.Token(r.Context())); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	p, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, p)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	list, err := h.svc.Transactions(r.Context(), userID, common.QueryInt(r, "limit", 100))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	n, err := h.svc.MarkRead(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, map[string]int64{"updated": n})
}

func (h *Handler) loginActivity(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	list, err := h.svc.LoginActivity(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	t, err := h.svc.Team(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, t)
}

func (h *Handler) bankAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	var bank ledger.BankAccount
	if err := common.DecodeJSON(r, &bank); err != nil {
		common.Fail(w, r, err)
		return
	}
	acc, err := h.svc.SetBankAccount(r.Context(), userID, bank)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, acc)
}

type passwordRequest struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
}

func (h *Handler) fundPassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	var req passwordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.SetFundPassword(r.Context(), userID, req.Current, req.New); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

func (h *Handler) password(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	var req passwordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req.Current, req.New); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

// --- Админка ---

func actor(r *http.Request) string {
	if s, ok := common.StaffFrom(r.Context()); ok {
		return s.Username
	}
	return "staff"
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Dashboard(r.Context())
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, t)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), ledger.ListFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  common.QueryInt(r, "limit", 50),
		Offset: common.QueryInt(r, "offset", 0),
	})
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	p, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, p)
}

func (h *Handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	list, err := h.svc.Transactions(r.Context(), id, common.QueryInt(r, "limit", 100))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	acc, err := h.svc.Update(r.Context(), id, in, actor(r))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, acc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id, actor(r)); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

func (h *Handler) access(allow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.PathID(r, "id")
		if err != nil {
			common.Fail(w, r, err)
			return
		}
		acc, err := h.svc.SetAppAccess(r.Context(), id, allow, actor(r))
		if err != nil {
			common.Fail(w, r, err)
			return
		}
		common.OK(w, acc)
	}
}

func (h *Handler) accessAll(allow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.svc.SetAppAccessAll(r.Context(), allow, actor(r))
		if err != nil {
			common.Fail(w, r, err)
			return
		}
		common.OK(w, map[string]int64{"updated": n})
	}
}

type resetRequest struct {
	Password string `json:"password"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	var req resetRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), id, req.Password, actor(r)); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}
