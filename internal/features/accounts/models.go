// Package accounts — регистрация, вход, профиль пользователя и
// управление пользователями из админки.
package accounts

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

const (
	// WelcomeMessage — первая транзакция каждого аккаунта.
	WelcomeMessage = "Welcome to Wealth Fund!"
	// StartingChances — бесплатные попытки колеса при регистрации.
	StartingChances = 1
	// LoginHistorySize — сколько последних входов храним.
	LoginHistorySize = 20

	minPasswordLen     = 6
	minFundPasswordLen = 4
	referralCodeLen    = 6
	maxCodeAttempts    = 5
)

// RegisterInput — данные формы регистрации.
type RegisterInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.InviteCode = strings.ToUpper(strings.TrimSpace(in.InviteCode))
}

func (in RegisterInput) Validate() error {
	if in.Name == "" {
		return common.Invalid("name is required")
	}
	if !validPhone(in.Phone) {
		return common.Invalid("phone must be 10 to 15 digits")
	}
	if len(in.Password) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func validPhone(p string) bool {
	if len(p) < 10 || len(p) > 15 {
		return false
	}
	return allDigits(p)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// validBank проверяет реквизиты: номер 9-18 цифр, IFSC вида ABCD0123456.
func validBank(b ledger.BankAccount) error {
	if strings.TrimSpace(b.Holder) == "" {
		return common.Invalid("account holder name is required")
	}
	if len(b.Number) < 9 || len(b.Number) > 18 || !allDigits(b.Number) {
		return common.Invalid("account number must be 9 to 18 digits")
	}
	ifsc := b.IFSC
	if len(ifsc) != 11 || ifsc[4] != '0' {
		return common.Invalid("invalid IFSC code")
	}
	for i, r := range ifsc {
		letter := r >= 'A' && r <= 'Z'
		digit := r >= '0' && r <= '9'
		if (i < 4 && !letter) || (!letter && !digit) {
			return common.Invalid("invalid IFSC code")
		}
	}
	return nil
}

// Session — выданный при входе токен.
type Session struct {
	Token   string          `json:"token"`
	Account *ledger.Account `json:"account"`
}

// Profile — экран "Мой аккаунт".
type Profile struct {
	Account     *ledger.Account     `json:"account"`
	Investments []ledger.Investment `json:"investments"`
	HasFundPwd  bool                `json:"hasFundPassword"`
}

// Team — приглашённые пользователем.
type Team struct {
	Members    []ledger.TeamMember `json:"members"`
	Count      int                 `json:"count"`
	TeamIncome decimal.Decimal     `json:"teamIncome"`
	Code       string              `json:"referralCode"`
}

// LoginRecord — одна запись истории входов.
type LoginRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Device    string    `json:"device"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpdateInput — частичное изменение пользователя админом.
// nil-поле не трогаем.
type UpdateInput struct {
	Name             *string          `json:"name"`
	Language         *string          `json:"language"`
	IsActive         *bool            `json:"isActive"`
	AppAccess        *bool            `json:"appAccess"`
	LuckyDrawChances *int             `json:"luckyDrawChances"`
	Balance          *decimal.Decimal `json:"balance"`
}

func (in UpdateInput) Validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return common.Invalid("name cannot be empty")
	}
	if in.Language != nil && (len(*in.Language) < 2 || len(*in.Language) > 8) {
		return common.Invalid("invalid language code")
	}
	if in.LuckyDrawChances != nil && *in.LuckyDrawChances < 0 {
		return common.Invalid("lucky draw chances cannot be negative")
	}
	if in.Balance != nil {
		if in.Balance.IsNegative() {
			return common.Invalid("balance cannot be negative")
		}
		if !in.Balance.Equal(common.Round2(*in.Balance)) {
			return common.ErrInvalidAmount
		}
	}
	return nil
}
