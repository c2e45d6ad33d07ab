package repository

import (
	"context"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) FindByID(ctx context.Context, orgID, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&item).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &item, nil
}

// FindByIDForUpdate loads the item inside tx holding a row lock, so
// concurrent quantity checks against the same item serialize.
func (r *InventoryRepository) FindByIDForUpdate(tx *gorm.DB, orgID, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&item).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &item, nil
}

type InventoryListParams struct {
	OrgID    string
	ItemType string
	Status   string
	Location string
	Batch    string
	Keyword  string
	Page     int
	Size     int
}

func (r *InventoryRepository) List(ctx context.Context, params InventoryListParams) ([]entity.InventoryItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("organization_id = ?", params.OrgID)
	if params.ItemType != "" {
		query = query.Where("item_type = ?", params.ItemType)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Location != "" {
		query = query.Where("location = ?", params.Location)
	}
	if params.Batch != "" {
		query = query.Where("batch_number = ?", params.Batch)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var items []entity.InventoryItem
	err := query.Order("updated_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&items).Error
	return items, total, err
}

// LowStock items whose quantity fell below their minimum threshold
func (r *InventoryRepository) LowStock(ctx context.Context, orgID string) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND min_threshold > 0 AND quantity < min_threshold", orgID).
		Find(&items).Error
	return items, err
}

// Expiring items whose expiry date falls within the given window
func (r *InventoryRepository) Expiring(ctx context.Context, orgID string, within time.Duration) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", orgID, time.Now().Add(within)).
		Find(&items).Error
	return items, err
}

// DB returns the underlying handle for transactional work
func (r *InventoryRepository) DB() *gorm.DB {
	return r.db
}
