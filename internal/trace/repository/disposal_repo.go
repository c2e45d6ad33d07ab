package repository

import (
	"context"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"gorm.io/gorm"
)

type DisposalRepository struct {
	db *gorm.DB
}

func NewDisposalRepository(db *gorm.DB) *DisposalRepository {
	return &DisposalRepository{db: db}
}

func (r *DisposalRepository) FindByID(ctx context.Context, orgID, id string) (*entity.Disposal, error) {
	var d entity.Disposal
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&d).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &d, nil
}

type DisposalListParams struct {
	OrgID  string
	ItemID string
	Status string
	Reason string
	Page   int
	Size   int
}

func (r *DisposalRepository) List(ctx context.Context, params DisposalListParams) ([]entity.Disposal, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Disposal{}).
		Where("organization_id = ?", params.OrgID)
	if params.ItemID != "" {
		query = query.Where("inventory_item_id = ?", params.ItemID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Reason != "" {
		query = query.Where("reason = ?", params.Reason)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var disposals []entity.Disposal
	err := query.Preload("Item").Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&disposals).Error
	return disposals, total, err
}
