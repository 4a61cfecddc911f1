// Package luckydraw — колесо призов. Попытки начисляются за каждую
// купленную единицу плана и за регистрацию.
// models.go описывает приз и данные для его создания.
package luckydraw

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/ledger"
)

// PrizeType — что получает победитель.
type PrizeType string

const (
	PrizeMoney    PrizeType = "money"    // Деньги на баланс
	PrizeBonus    PrizeType = "bonus"    // Тоже на баланс
	PrizePhysical PrizeType = "physical" // Вручается вне платформы
	PrizeNothing  PrizeType = "nothing"
)

// Credits — зачисляется ли приз на баланс.
func (t PrizeType) Credits() bool {
	return t == PrizeMoney || t == PrizeBonus
}

// Prize — элемент колеса.
type Prize struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Type      PrizeType       `gorm:"size:16;not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	ImageURL  string          `gorm:"column:image_url" json:"imageUrl"`
	ForceWin  bool            `gorm:"not null" json:"forceWin"` // Если есть такие призы, выпадают только они
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Prize) TableName() string {
	return "prizes"
}

// Outcome — результат одной попытки.
type Outcome struct {
	Prize   Prize           `json:"prize"`
	Account *ledger.Account `json:"account"`
}

// Input — поля приза от админа.
type Input struct {
	Name     string          `json:"name"`
	Type     PrizeType       `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	ImageURL string          `json:"imageUrl"`
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return common.Invalid("prize name is required")
	}
	switch in.Type {
	case PrizeMoney, PrizeBonus:
		if in.Amount.IsNegative() || !in.Amount.Equal(common.Round2(in.Amount)) {
			return common.ErrInvalidAmount
		}
	case PrizePhysical, PrizeNothing:
		if !in.Amount.IsZero() {
			return common.Invalid("only money and bonus prizes carry an amount")
		}
	default:
		return common.Invalid("unknown prize type %q", in.Type)
	}
	return nil
}

func (in *Input) apply(p *Prize) {
	p.Name = strings.TrimSpace(in.Name)
	p.Type = in.Type
	p.Amount = in.Amount
	p.ImageURL = in.ImageURL
}
