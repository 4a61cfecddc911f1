package finance

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/notify"
	"wealthfund.in/platform/internal/storage"
)

// Service — конвейер заявок на пополнение и вывод.
//
// Пополнение зачисляется только после одобрения. Вывод списывается
// сразу целиком, при отказе возвращается.
type Service struct {
	store    ledger.Store
	channels ChannelStore
	proofs   storage.ProofStore
	notifier notify.Notifier
	activity activity.Recorder
	cfg      *config.Config

	// pick выбирает индекс канала. В тестах детерминирован.
	pick func(n int) int
}

func NewService(store ledger.Store, channels ChannelStore, proofs storage.ProofStore,
	notifier notify.Notifier, rec activity.Recorder, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		channels: channels,
		proofs:   proofs,
		notifier: notifier,
		activity: rec,
		cfg:      cfg,
		pick:     rand.IntN,
	}
}

// DepositInstructions — куда и сколько переводить.
type DepositInstructions struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	ChannelID     int64           `json:"channelId"`
	ChannelName   string          `json:"channelName"`
	UPIID         string          `json:"upiId"`
	QRImageURL    string          `json:"qrImageUrl"`
}

// InitiateDeposit выдаёт реквизиты и новый ID транзакции. Состояние не меняется.
// channelID = 0 — случайный активный канал.
func (s *Service) InitiateDeposit(ctx context.Context, amount decimal.Decimal, channelID int64) (*DepositInstructions, error) {
	if err := s.checkDepositAmount(amount); err != nil {
		return nil, err
	}

	var ch *Channel
	if channelID > 0 {
		c, err := s.channels.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		if !c.IsActive {
			return nil, common.ErrPaymentChannelNotFound
		}
		ch = c
	} else {
		active, err := s.channels.List(ctx, true)
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			return nil, common.ErrNoPaymentChannel
		}
		ch = &active[s.pick(len(active))]
	}

	return &DepositInstructions{
		TransactionID: uuid.NewString(),
		Amount:        common.Round2(amount),
		ChannelID:     ch.ID,
		ChannelName:   ch.Name,
		UPIID:         ch.UPIID,
		QRImageURL:    ch.QRImageURL,
	}, nil
}

// Proof — скриншот оплаты.
type Proof struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// SubmitDeposit сохраняет скриншот и создаёт заявку pending.
// Баланс не меняется до одобрения.
func (s *Service) SubmitDeposit(ctx context.Context, userID int64, txID string, amount decimal.Decimal, proof *Proof) (*ledger.Transaction, error) {
	if err := s.checkDepositAmount(amount); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(txID); err != nil {
		return nil, common.Invalid("invalid transaction id")
	}
	if proof == nil || proof.Body == nil || proof.Size == 0 {
		return nil, common.ErrProofRequired
	}

	// Повтор того же ID отсекаем до загрузки файла
	if _, err := s.store.GetRequest(ctx, txID); err == nil {
		return nil, common.ErrDuplicateRequest
	} else if common.KindOf(err) != common.KindNotFound {
		return nil, err
	}

	key := storage.ProofKey(userID, txID, proof.Filename)
	if err := s.proofs.Put(ctx, key, proof.Body, proof.Size); err != nil {
		return nil, common.StorageError("upload proof", err)
	}

	var req *ledger.Transaction
	acc, err := s.store.Update(ctx, userID, func(b *ledger.Book) error {
		req = b.Request(txID, amount, "Deposit Request", key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"request_id": req.ID,
		"amount":     req.Amount.String(),
	}).Info("Заявка на пополнение создана")
	s.activity.Record(ctx, acc.Name, activity.ActionDeposit, "Deposit request "+common.FormatRupees(req.Amount))
	s.notifier.RequestCreated(req, acc.Name, acc.Phone)
	return req, nil
}

// Withdraw списывает amount и создаёт заявку на вывод.
func (s *Service) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, fundPassword string) (*ledger.Transaction, error) {
	if err := common.ValidAmount(amount); err != nil {
		return nil, err
	}
	if amount.LessThan(s.cfg.Finance.WithdrawMin) {
		return nil, common.Wrap(common.ErrBelowMinimum, "minimum withdrawal is %s", common.FormatRupees(s.cfg.Finance.WithdrawMin))
	}

	fee, net := common.SplitFee(amount, s.cfg.Finance.WithdrawFeeRate)
	desc := fmt.Sprintf("Withdraw: %s | Fee: %s | Net: %s",
		common.FormatRupees(amount), common.FormatRupees(fee), common.FormatRupees(net))

	var req *ledger.Transaction
	acc, err := s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if b.Account.BankAccount == nil {
			return common.ErrBankAccountRequired
		}
		switch {
		case b.Account.HasFundPassword():
			if !auth.VerifyPassword(fundPassword, *b.Account.FundPasswordHash) {
				return common.ErrBadFundPassword
			}
		case s.cfg.WithdrawRequireFundPassword:
			return common.ErrFundPasswordRequired
		}

		var err error
		req, err = b.Hold(amount, fee, net, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"request_id": req.ID,
		"gross":      amount.String(),
		"fee":        fee.String(),
	}).Info("Заявка на вывод создана")
	s.activity.Record(ctx, acc.Name, activity.ActionWithdraw, desc)
	s.notifier.RequestCreated(req, acc.Name, acc.Phone)
	return req, nil
}

// Decision — итог обработки заявки.
type Decision struct {
	Request *ledger.Transaction `json:"request"`
	Account *ledger.Account     `json:"account"`
}

// Approve одобряет заявку. Повторное решение — ErrRequestSettled.
func (s *Service) Approve(ctx context.Context, requestID, actor string) (*Decision, error) {
	acc, req, err := s.store.UpdateRequest(ctx, requestID, func(b *ledger.Book, req *ledger.Transaction) error {
		if req.Status != ledger.StatusPending {
			return common.ErrRequestSettled
		}
		switch req.Kind {
		case ledger.KindDeposit:
			b.Settle(req, ledger.StatusSuccess, req.Amount)
			b.Account.RechargeAmount = b.Account.RechargeAmount.Add(req.Amount)
		case ledger.KindWithdrawal:
			// Деньги списаны при создании заявки
			b.Settle(req, ledger.StatusSuccess, decimal.Zero)
			b.Account.Withdrawals = b.Account.Withdrawals.Add(req.Amount.Abs())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logDecision(ctx, actor, activity.ActionApprove, req, acc)
	return &Decision{Request: req, Account: acc}, nil
}

// Reject отклоняет заявку. Вывод возвращается на баланс целиком.
func (s *Service) Reject(ctx context.Context, requestID, actor string) (*Decision, error) {
	acc, req, err := s.store.UpdateRequest(ctx, requestID, func(b *ledger.Book, req *ledger.Transaction) error {
		if req.Status != ledger.StatusPending {
			return common.ErrRequestSettled
		}
		switch req.Kind {
		case ledger.KindDeposit:
			b.Settle(req, ledger.StatusFailed, decimal.Zero)
		case ledger.KindWithdrawal:
			b.Settle(req, ledger.StatusFailed, req.Amount.Abs())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logDecision(ctx, actor, activity.ActionReject, req, acc)
	return &Decision{Request: req, Account: acc}, nil
}

func (s *Service) logDecision(ctx context.Context, actor, action string, req *ledger.Transaction, acc *ledger.Account) {
	log.WithFields(log.Fields{
		"request_id": req.ID,
		"user_id":    acc.ID,
		"kind":       req.Kind,
		"status":     req.Status,
		"actor":      actor,
	}).Info("Заявка обработана")
	s.activity.Record(ctx, actor, action,
		fmt.Sprintf("%s %s of %s for %s", req.Status, req.Kind, common.FormatRupees(req.Amount.Abs()), acc.Name))
}

// Queue — заявки, ждущие решения. kind пустой — все.
func (s *Service) Queue(ctx context.Context, kind ledger.Kind) ([]ledger.Request, error) {
	return s.store.Requests(ctx, ledger.RequestFilter{Status: ledger.StatusPending, Kind: kind})
}

// History — все заявки с фильтрами.
func (s *Service) History(ctx context.Context, f ledger.RequestFilter) ([]ledger.Request, error) {
	return s.store.Requests(ctx, f)
}

// ProofURL — временная ссылка на скриншот заявки.
func (s *Service) ProofURL(ctx context.Context, requestID string) (string, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.ProofKey == "" {
		return "", common.Invalid("request has no payment proof")
	}
	url, err := s.proofs.URL(ctx, req.ProofKey)
	if err != nil {
		return "", common.StorageError("presign proof", err)
	}
	return url, nil
}

func (s *Service) checkDepositAmount(amount decimal.Decimal) error {
	if err := common.ValidAmount(amount); err != nil {
		return err
	}
	if amount.LessThan(s.cfg.Finance.DepositMin) {
		return common.Wrap(common.ErrBelowMinimum, "minimum deposit is %s", common.FormatRupees(s.cfg.Finance.DepositMin))
	}
	return nil
}

// --- Платёжные каналы ---

func (s *Service) Channels(ctx context.Context, activeOnly bool) ([]Channel, error) {
	return s.channels.List(ctx, activeOnly)
}

func (s *Service) CreateChannel(ctx context.Context, in ChannelInput) (*Channel, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c := Channel{IsActive: true}
	in.apply(&c)
	if err := s.channels.Create(ctx, &c); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"channel_id": c.ID, "name": c.Name}).Info("Платёжный канал создан")
	return &c, nil
}

func (s *Service) UpdateChannel(ctx context.Context, id int64, in ChannelInput) (*Channel, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c, err := s.channels.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	if err := s.channels.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteChannel(ctx context.Context, id int64) error {
	return s.channels.Delete(ctx, id)
}
