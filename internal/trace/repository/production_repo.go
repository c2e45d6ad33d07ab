package repository

import (
	"context"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductionRepository struct {
	db *gorm.DB
}

func NewProductionRepository(db *gorm.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

func (r *ProductionRepository) FindOrderByID(ctx context.Context, orgID, id string) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Materials").
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&order).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &order, nil
}

// FindOrderByIDForUpdate loads the order inside tx holding a row lock,
// so concurrent step advances and status changes on the same order
// serialize and each sees the previous one's step counts.
func (r *ProductionRepository) FindOrderByIDForUpdate(tx *gorm.DB, orgID, id string) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&order).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &order, nil
}

type OrderListParams struct {
	OrgID     string
	ProductID string
	Status    string
	Batch     string
	Keyword   string
	Page      int
	Size      int
}

func (r *ProductionRepository) ListOrders(ctx context.Context, params OrderListParams) ([]entity.ProductionOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ProductionOrder{}).
		Where("organization_id = ?", params.OrgID)
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Batch != "" {
		query = query.Where("batch_number = ?", params.Batch)
	}
	if params.Keyword != "" {
		query = query.Where("code ILIKE ?", "%"+params.Keyword+"%")
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var orders []entity.ProductionOrder
	err := query.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&orders).Error
	return orders, total, err
}

// ListUnallocatedMaterials materials of an order awaiting consumption,
// loaded inside tx so consumeAllocations stays idempotent under races.
func (r *ProductionRepository) ListUnallocatedMaterials(tx *gorm.DB, orgID, orderID string) ([]entity.ProductionMaterial, error) {
	var materials []entity.ProductionMaterial
	err := tx.
		Where("organization_id = ? AND order_id = ? AND allocated = false", orgID, orderID).
		Order("created_at ASC").
		Find(&materials).Error
	return materials, err
}

func (r *ProductionRepository) ListMaterials(ctx context.Context, orgID, orderID string) ([]entity.ProductionMaterial, error) {
	var materials []entity.ProductionMaterial
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND order_id = ?", orgID, orderID).
		Order("created_at ASC").
		Find(&materials).Error
	return materials, err
}
