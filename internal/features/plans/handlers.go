package plans

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
)

// Handler — HTTP-обработчики каталога планов.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterUser — маршруты приложения.
func (h *Handler) RegisterUser(r *mux.Router) {
	r.HandleFunc("/plans", h.list).Methods(http.MethodGet)
}

// RegisterAdmin — маршруты админки.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/plans", h.list).Methods(http.MethodGet)
	r.HandleFunc("/plans", h.create).Methods(http.MethodPost)
	r.HandleFunc("/plans/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/plans/{id}", h.delete).Methods(http.MethodDelete)
}

// planView — план в списке вместе с доходом за весь срок.
type planView struct {
	Plan
	TotalReturn decimal.Decimal `json:"totalReturn"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	views := make([]planView, len(list))
	for i := range list {
		views[i] = planView{Plan: list[i], TotalReturn: list[i].TotalReturn()}
	}
	common.OK(w, views)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}
