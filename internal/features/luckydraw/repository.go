// Package luckydraw — repository.go работает с таблицей prizes через gorm.
package luckydraw

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"wealthfund.in/platform/internal/common"
)

// Store — хранилище призов.
type Store interface {
	List(ctx context.Context) ([]Prize, error)
	Get(ctx context.Context, id int64) (*Prize, error)
	Create(ctx context.Context, p *Prize) error
	Save(ctx context.Context, p *Prize) error
	Delete(ctx context.Context, id int64) error
	SetForceWin(ctx context.Context, ids []int64) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Prize, error) {
	var list []Prize
	if err := r.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, common.StorageError("list prizes", err)
	}
	return list, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Prize, error) {
	var p Prize
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrPrizeNotFound
	}
	if err != nil {
		return nil, common.StorageError("get prize", err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *Prize) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return common.StorageError("create prize", err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, p *Prize) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return common.StorageError("save prize", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Prize{}, id)
	if res.Error != nil {
		return common.StorageError("delete prize", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrPrizeNotFound
	}
	return nil
}

// SetForceWin помечает ровно эти призы как выигрышные, остальные снимает.
// Пустой список выключает режим.
func (r *Repository) SetForceWin(ctx context.Context, ids []int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			var found int64
			if err := tx.Model(&Prize{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
				return err
			}
			if int(found) != len(ids) {
				return common.ErrPrizeNotFound
			}
		}
		if err := tx.Model(&Prize{}).Where("force_win = ?", true).Update("force_win", false).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&Prize{}).Where("id IN ?", ids).Update("force_win", true).Error
	})
	if errors.Is(err, common.ErrPrizeNotFound) {
		return err
	}
	if err != nil {
		return common.StorageError("set force win", err)
	}
	return nil
}
