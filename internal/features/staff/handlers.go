package staff

import (
	"net/http"

	"github.com/gorilla/mux"

	"wealthfund.in/platform/internal/common"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic — вход в админку без сессии.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
}

func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/password", h.password).Methods(http.MethodPut)

	r.HandleFunc("/employees", h.list).Methods(http.MethodGet)
	r.HandleFunc("/employees", h.create).Methods(http.MethodPost)
	r.HandleFunc("/employees/{id:[0-9]+}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/employees/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		common.Fail(w, r, common.ErrMissingField)
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Username, req.Password)
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

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
	common.OK(w, s)
}

type passwordRequest struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
}

func (h *Handler) password(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
	var req passwordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), s.ID, req.Current, req.New, common.Token(r.Context())); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
	list, err := h.svc.List(r.Context(), s)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	e, err := h.svc.Create(r.Context(), s, in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
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
	e, err := h.svc.Update(r.Context(), s, id, in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, e)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	s, _ := common.StaffFrom(r.Context())
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), s, id); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}
