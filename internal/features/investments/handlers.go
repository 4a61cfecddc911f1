package investments

import (
	"net/http"

	"github.com/gorilla/mux"

	"wealthfund.in/platform/internal/common"
)

// Handler — HTTP-обработчики инвестиций.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterUser(r *mux.Router) {
	r.HandleFunc("/investments", h.invest).Methods(http.MethodPost)
	r.HandleFunc("/investments", h.list).Methods(http.MethodGet)
}

type investRequest struct {
	PlanID   int64 `json:"planId"`
	Quantity int   `json:"quantity"`
}

func (h *Handler) invest(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())

	var req investRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	if req.PlanID <= 0 {
		common.Fail(w, r, common.Invalid("planId is required"))
		return
	}

	res, err := h.svc.Invest(r.Context(), userID, req.PlanID, req.Quantity)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}
