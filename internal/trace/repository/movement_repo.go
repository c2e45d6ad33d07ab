package repository

import (
	"context"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"gorm.io/gorm"
)

type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) FindByID(ctx context.Context, orgID, id string) (*entity.Movement, error) {
	var m entity.Movement
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

type MovementListParams struct {
	OrgID  string
	ItemID string
	Type   string
	Status string
	Batch  string
	Page   int
	Size   int
}

func (r *MovementRepository) List(ctx context.Context, params MovementListParams) ([]entity.Movement, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Movement{}).
		Where("organization_id = ?", params.OrgID)
	if params.ItemID != "" {
		query = query.Where("inventory_item_id = ?", params.ItemID)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Batch != "" {
		query = query.Where("batch_number = ?", params.Batch)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var movements []entity.Movement
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&movements).Error
	return movements, total, err
}

// ListByItem the full ledger for one item, oldest first (chain of custody)
func (r *MovementRepository) ListByItem(ctx context.Context, orgID, itemID string) ([]entity.Movement, error) {
	var movements []entity.Movement
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND inventory_item_id = ?", orgID, itemID).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}

// NetCompleted the net signed sum of all completed movements for an item.
// An item's quantity must always reconcile against this value.
func (r *MovementRepository) NetCompleted(ctx context.Context, orgID, itemID string) (float64, error) {
	var result struct{ Net float64 }
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE type
			WHEN 'in' THEN quantity
			WHEN 'production' THEN quantity
			WHEN 'out' THEN -quantity
			WHEN 'consumption' THEN -quantity
			WHEN 'adjustment' THEN quantity
			ELSE 0 END), 0) AS net
		FROM trace_movements
		WHERE organization_id = ? AND inventory_item_id = ? AND status IN ('completed', 'documented')
	`, orgID, itemID).Scan(&result).Error
	return result.Net, err
}
