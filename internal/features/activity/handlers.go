package activity

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"wealthfund.in/platform/internal/common"
)

// Feed — последние записи журнала.
type Feed interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

type Handler struct {
	feed Feed
}

func NewHandler(feed Feed) *Handler {
	return &Handler{feed: feed}
}

func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/activity", h.recent).Methods(http.MethodGet)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	list, err := h.feed.Recent(r.Context(), common.QueryInt(r, "limit", ShowLimit))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	if list == nil {
		list = []Entry{}
	}
	common.OK(w, list)
}
