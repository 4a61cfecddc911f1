// Package notify отправляет админам уведомления о новых заявках в Telegram.
package notify

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// Notifier — получатель событий о заявках.
type Notifier interface {
	RequestCreated(req *ledger.Transaction, userName, userPhone string)
}

// Nop ничего не отправляет. Используется, когда бот не настроен.
type Nop struct{}

func (Nop) RequestCreated(*ledger.Transaction, string, string) {}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram пишет в админский чат.
type Telegram struct {
	bot    sender
	chatID int64
	loc    *time.Location
}

// NewTelegram подключается к Bot API. Пустой токен или чат — Nop.
func NewTelegram(token string, chatID int64, loc *time.Location, debug bool) (Notifier, error) {
	if token == "" || chatID == 0 {
		log.Info("Уведомления в Telegram выключены")
		return Nop{}, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	api.Debug = debug
	log.Infof("Уведомления идут через бота @%s", api.Self.UserName)
	return &Telegram{bot: api, chatID: chatID, loc: loc}, nil
}

func (t *Telegram) RequestCreated(req *ledger.Transaction, userName, userPhone string) {
	loc := t.loc
	if loc == nil {
		loc = time.UTC
	}
	text := requestText(req, userName, userPhone)
	if !req.CreatedAt.IsZero() {
		text += "\nTime: " + common.FormatDateTime(req.CreatedAt, loc)
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		log.WithError(err).WithField("request_id", req.ID).Error("Ошибка отправки уведомления")
	}
}

func requestText(req *ledger.Transaction, userName, userPhone string) string {
	switch req.Kind {
	case ledger.KindWithdrawal:
		return fmt.Sprintf("💸 New withdrawal request\n\nUser: %s (%s)\nAmount: %s\nFee: %s\nNet: %s\nID: %s",
			userName, userPhone, common.FormatRupees(req.Amount.Abs()),
			common.FormatRupees(req.Fee), common.FormatRupees(req.Net), req.ID)
	default:
		return fmt.Sprintf("💰 New deposit request\n\nUser: %s (%s)\nAmount: %s\nID: %s",
			userName, userPhone, common.FormatRupees(req.Amount), req.ID)
	}
}
