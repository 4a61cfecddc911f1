package notify

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/ledger"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestWithdrawalMessage(t *testing.T) {
	fs := &fakeSender{}
	n := &Telegram{bot: fs, chatID: 42}

	n.RequestCreated(&ledger.Transaction{
		ID:     "abc",
		Kind:   ledger.KindWithdrawal,
		Amount: decimal.NewFromInt(-1000),
		Fee:    decimal.NewFromInt(50),
		Net:    decimal.NewFromInt(950),
	}, "Ravi", "98******10")

	require.Len(t, fs.sent, 1)
	assert.Equal(t, int64(42), fs.sent[0].ChatID)
	assert.Contains(t, fs.sent[0].Text, "Amount: ₹1,000")
	assert.Contains(t, fs.sent[0].Text, "Net: ₹950")
	assert.NotContains(t, fs.sent[0].Text, "Time:")
}

func TestDepositMessageAndSendError(t *testing.T) {
	fs := &fakeSender{err: errors.New("chat not found")}
	n := &Telegram{bot: fs, chatID: 1}

	// Ошибка только логируется
	n.RequestCreated(&ledger.Transaction{ID: "d1", Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(500)}, "Meena", "9000000001")
	require.Len(t, fs.sent, 1)
	assert.Contains(t, fs.sent[0].Text, "New deposit request")
}

func TestMessageTimeInPlatformZone(t *testing.T) {
	fs := &fakeSender{}
	ist := time.FixedZone("IST", 5*3600+1800)
	n := &Telegram{bot: fs, chatID: 1, loc: ist}

	n.RequestCreated(&ledger.Transaction{
		ID:        "d2",
		Kind:      ledger.KindDeposit,
		Amount:    decimal.NewFromInt(200),
		CreatedAt: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC),
	}, "Meena", "9000000001")
	require.Len(t, fs.sent, 1)
	assert.Contains(t, fs.sent[0].Text, "Time: 02 Mar 2024 01:30")
}

func TestNewTelegramWithoutToken(t *testing.T) {
	n, err := NewTelegram("", 0, time.UTC, false)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
}
