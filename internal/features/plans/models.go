// Package plans — каталог инвестиционных планов.
// models.go описывает план и данные для его создания/изменения.
package plans

import (
	"time"

	"github.com/shopspring/decimal"

	"wealthfund.in/platform/internal/common"
)

// Категории планов
const (
	CategoryVIP     = "vip"
	CategoryWelfare = "welfare" // Краткосрочные акции, обычно со сроком продажи
)

// Plan — шаблон, по которому покупаются инвестиции.
type Plan struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Category      string          `gorm:"size:32;not null" json:"category"`
	MinInvestment decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"minInvestment"` // Цена одной единицы
	DailyReturn   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"dailyReturn"`   // Доход в день за единицу
	DurationDays  int             `gorm:"not null" json:"durationDays"`
	VIPLevel      int             `gorm:"column:vip_level" json:"vipLevel"`
	ImageURL      string          `gorm:"column:image_url" json:"imageUrl"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"` // После этой даты купить нельзя
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (Plan) TableName() string {
	return "plans"
}

// Purchasable проверяет срок продажи на момент покупки.
// Истёкшие планы остаются в списке для истории.
func (p *Plan) Purchasable(now time.Time) error {
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return common.ErrPlanExpired
	}
	return nil
}

// TotalReturn — сколько принесёт одна единица за весь срок.
func (p *Plan) TotalReturn() decimal.Decimal {
	return p.DailyReturn.Mul(decimal.NewFromInt(int64(p.DurationDays)))
}

// Input — поля плана от админа.
type Input struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	MinInvestment decimal.Decimal `json:"minInvestment"`
	DailyReturn   decimal.Decimal `json:"dailyReturn"`
	DurationDays  int             `json:"durationDays"`
	VIPLevel      int             `json:"vipLevel"`
	ImageURL      string          `json:"imageUrl"`
	ExpiresAt     *time.Time      `json:"expiresAt"`
}

// Validate проверяет поля плана.
func (in *Input) Validate() error {
	if in.Name == "" {
		return common.Invalid("plan name is required")
	}
	if in.Category != CategoryVIP && in.Category != CategoryWelfare {
		return common.Invalid("category must be %q or %q", CategoryVIP, CategoryWelfare)
	}
	if err := common.ValidAmount(in.MinInvestment); err != nil {
		return common.Invalid("minInvestment must be a positive amount")
	}
	if err := common.ValidAmount(in.DailyReturn); err != nil {
		return common.Invalid("dailyReturn must be a positive amount")
	}
	if in.DurationDays <= 0 {
		return common.Invalid("durationDays must be positive")
	}
	if in.VIPLevel < 0 {
		return common.Invalid("vipLevel must not be negative")
	}
	return nil
}

func (in *Input) apply(p *Plan) {
	p.Name = in.Name
	p.Category = in.Category
	p.MinInvestment = in.MinInvestment
	p.DailyReturn = in.DailyReturn
	p.DurationDays = in.DurationDays
	p.VIPLevel = in.VIPLevel
	p.ImageURL = in.ImageURL
	p.ExpiresAt = in.ExpiresAt
}
