// Package finance — пополнения, выводы и их одобрение админом.
// channels.go — платёжные каналы (UPI), на которые пользователи переводят деньги.
package finance

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"wealthfund.in/platform/internal/common"
)

// Channel — реквизиты для перевода при пополнении.
type Channel struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	UPIID      string    `gorm:"column:upi_id;size:100;not null" json:"upiId"`
	QRImageURL string    `gorm:"column:qr_image_url" json:"qrImageUrl"`
	IsActive   bool      `gorm:"not null" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Channel) TableName() string {
	return "payment_channels"
}

// ChannelInput — поля канала от админа.
type ChannelInput struct {
	Name       string `json:"name"`
	UPIID      string `json:"upiId"`
	QRImageURL string `json:"qrImageUrl"`
	IsActive   *bool  `json:"isActive"`
}

func (in *ChannelInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return common.Invalid("channel name is required")
	}
	if !strings.Contains(in.UPIID, "@") {
		return common.Invalid("upiId must look like name@bank")
	}
	return nil
}

func (in *ChannelInput) apply(c *Channel) {
	c.Name = strings.TrimSpace(in.Name)
	c.UPIID = strings.TrimSpace(in.UPIID)
	c.QRImageURL = in.QRImageURL
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}

// ChannelStore — хранилище каналов.
type ChannelStore interface {
	List(ctx context.Context, activeOnly bool) ([]Channel, error)
	Get(ctx context.Context, id int64) (*Channel, error)
	Create(ctx context.Context, c *Channel) error
	Save(ctx context.Context, c *Channel) error
	Delete(ctx context.Context, id int64) error
}

// ChannelRepository — ChannelStore на gorm.
type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) List(ctx context.Context, activeOnly bool) ([]Channel, error) {
	q := r.db.WithContext(ctx).Order("id")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []Channel
	if err := q.Find(&list).Error; err != nil {
		return nil, common.StorageError("list payment channels", err)
	}
	return list, nil
}

func (r *ChannelRepository) Get(ctx context.Context, id int64) (*Channel, error) {
	var c Channel
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrPaymentChannelNotFound
	}
	if err != nil {
		return nil, common.StorageError("get payment channel", err)
	}
	return &c, nil
}

func (r *ChannelRepository) Create(ctx context.Context, c *Channel) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return common.StorageError("create payment channel", err)
	}
	return nil
}

func (r *ChannelRepository) Save(ctx context.Context, c *Channel) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return common.StorageError("save payment channel", err)
	}
	return nil
}

func (r *ChannelRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Channel{}, id)
	if res.Error != nil {
		return common.StorageError("delete payment channel", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrPaymentChannelNotFound
	}
	return nil
}
