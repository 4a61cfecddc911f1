// Package plans — repository.go работает с таблицей plans через gorm.
package plans

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"wealthfund.in/platform/internal/common"
)

// Store — хранилище планов.
type Store interface {
	List(ctx context.Context) ([]Plan, error)
	Get(ctx context.Context, id int64) (*Plan, error)
	Create(ctx context.Context, p *Plan) error
	Save(ctx context.Context, p *Plan) error
	Delete(ctx context.Context, id int64) error
}

// Repository — Store на gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Plan, error) {
	var list []Plan
	if err := r.db.WithContext(ctx).Order("category, vip_level, id").Find(&list).Error; err != nil {
		return nil, common.StorageError("list plans", err)
	}
	return list, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Plan, error) {
	var p Plan
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrPlanNotFound
	}
	if err != nil {
		return nil, common.StorageError("get plan", err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *Plan) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return common.StorageError("create plan", err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, p *Plan) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return common.StorageError("save plan", err)
	}
	return nil
}

// Delete удаляет план. Купленные инвестиции хранят свою копию условий
// и не затрагиваются.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Plan{}, id)
	if res.Error != nil {
		return common.StorageError("delete plan", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrPlanNotFound
	}
	return nil
}
