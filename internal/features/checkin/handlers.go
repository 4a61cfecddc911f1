package checkin

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
	r.HandleFunc("/check-in", h.checkIn).Methods(http.MethodPost)
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	res, err := h.svc.CheckIn(r.Context(), userID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, res)
}
