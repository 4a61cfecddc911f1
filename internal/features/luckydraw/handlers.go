package luckydraw

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

func (h *Handler) RegisterUser(r *mux.Router) {
	r.HandleFunc("/lucky-draw/prizes", h.list).Methods(http.MethodGet)
	r.HandleFunc("/lucky-draw/play", h.play).Methods(http.MethodPost)
}

func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/prizes", h.list).Methods(http.MethodGet)
	r.HandleFunc("/prizes", h.create).Methods(http.MethodPost)
	r.HandleFunc("/prizes/force-win", h.forceWin).Methods(http.MethodPut)
	r.HandleFunc("/prizes/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/prizes/{id}", h.delete).Methods(http.MethodDelete)
}

func (h *Handler) play(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	out, err := h.svc.Play(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, out)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Prizes(r.Context())
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
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

type forceWinRequest struct {
	PrizeIDs []int64 `json:"prizeIds"`
}

func (h *Handler) forceWin(w http.ResponseWriter, r *http.Request) {
	var req forceWinRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.SetForceWin(r.Context(), req.PrizeIDs); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}
