package distribution

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

// RegisterAdmin — ручной запуск начисления из админки.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/distribution/run", h.run).Methods(http.MethodPost)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Run(r.Context())
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, res)
}
