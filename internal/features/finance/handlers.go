package finance

import (
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// Расширения, которые принимаем как скриншот оплаты
var proofExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

type Handler struct {
	svc      *Service
	maxProof int64
}

func NewHandler(svc *Service, maxProof int64) *Handler {
	return &Handler{svc: svc, maxProof: maxProof}
}

// RegisterUser — маршруты приложения.
func (h *Handler) RegisterUser(r *mux.Router) {
	r.HandleFunc("/payment-channels", h.activeChannels).Methods(http.MethodGet)
	r.HandleFunc("/deposits/initiate", h.initiateDeposit).Methods(http.MethodPost)
	r.HandleFunc("/deposits", h.submitDeposit).Methods(http.MethodPost)
	r.HandleFunc("/withdrawals", h.withdraw).Methods(http.MethodPost)
}

// RegisterAdmin — маршруты админки.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/requests", h.queue).Methods(http.MethodGet)
	r.HandleFunc("/requests/history", h.history).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}/approve", h.approve).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}/reject", h.reject).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}/proof", h.proof).Methods(http.MethodGet)

	r.HandleFunc("/payment-channels", h.allChannels).Methods(http.MethodGet)
	r.HandleFunc("/payment-channels", h.createChannel).Methods(http.MethodPost)
	r.HandleFunc("/payment-channels/{id}", h.updateChannel).Methods(http.MethodPut)
	r.HandleFunc("/payment-channels/{id}", h.deleteChannel).Methods(http.MethodDelete)
}

type initiateRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	ChannelID int64           `json:"channelId"`
}

func (h *Handler) initiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	out, err := h.svc.InitiateDeposit(r.Context(), req.Amount, req.ChannelID)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, out)
}

// submitDeposit принимает multipart: transaction_id, amount, proof.
func (h *Handler) submitDeposit(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxProof+64<<10)
	if err := r.ParseMultipartForm(h.maxProof); err != nil {
		common.Fail(w, r, common.Invalid("invalid form or proof image is too large"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	amount, err := common.ParseAmount(r.FormValue("amount"))
	if err != nil {
		common.Fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		common.Fail(w, r, common.ErrProofRequired)
		return
	}
	defer file.Close()

	if !proofExtensions[strings.ToLower(path.Ext(header.Filename))] {
		common.Fail(w, r, common.Invalid("proof must be a png, jpg or webp image"))
		return
	}

	req, err := h.svc.SubmitDeposit(r.Context(), userID, r.FormValue("transaction_id"), amount, &Proof{
		Filename: strings.ToLower(header.Filename),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, req)
}

type withdrawRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	FundPassword string          `json:"fundPassword"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())

	var req withdrawRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.Fail(w, r, err)
		return
	}
	tx, err := h.svc.Withdraw(r.Context(), userID, req.Amount, req.FundPassword)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, tx)
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Queue(r.Context(), ledger.Kind(r.URL.Query().Get("kind")))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.History(r.Context(), ledger.RequestFilter{
		Status: ledger.Status(q.Get("status")),
		Kind:   ledger.Kind(q.Get("kind")),
		Search: q.Get("search"),
		Limit:  common.QueryInt(r, "limit", 100),
	})
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Approve(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, d)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Reject(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, d)
}

func (h *Handler) proof(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.ProofURL(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, map[string]string{"url": url})
}

func (h *Handler) activeChannels(w http.ResponseWriter, r *http.Request) {
	h.listChannels(w, r, true)
}

func (h *Handler) allChannels(w http.ResponseWriter, r *http.Request) {
	h.listChannels(w, r, false)
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	list, err := h.svc.Channels(r.Context(), activeOnly)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, list)
}

func (h *Handler) createChannel(w http.ResponseWriter, r *http.Request) {
	var in ChannelInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	c, err := h.svc.CreateChannel(r.Context(), in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.Created(w, c)
}

func (h *Handler) updateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	var in ChannelInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.Fail(w, r, err)
		return
	}
	c, err := h.svc.UpdateChannel(r.Context(), id, in)
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, c)
}

func (h *Handler) deleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.Fail(w, r, err)
		return
	}
	if err := h.svc.DeleteChannel(r.Context(), id); err != nil {
		common.Fail(w, r, err)
		return
	}
	common.OK(w, nil)
}

// actor — имя сотрудника для журнала действий.
func actor(r *http.Request) string {
	if s, ok := common.StaffFrom(r.Context()); ok {
		return s.Username
	}
	return "staff"
}
