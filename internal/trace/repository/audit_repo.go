package repository

import (
	"context"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"gorm.io/gorm"
)

// AuditRepository append-only: exposes Create and reads, nothing else.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends inside the caller's transaction so audit rows commit
// and roll back together with the mutation they describe.
func (r *AuditRepository) Create(tx *gorm.DB, row *entity.AuditTrail) error {
	return tx.Create(row).Error
}

type AuditListParams struct {
	OrgID      string
	Category   string
	EntityType string
	EntityID   string
	UserID     string
	Batch      string
	From       *time.Time
	To         *time.Time
	Page       int
	Size       int
}

func (r *AuditRepository) List(ctx context.Context, params AuditListParams) ([]entity.AuditTrail, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.AuditTrail{}).
		Where("organization_id = ?", params.OrgID)
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.EntityType != "" {
		query = query.Where("entity_type = ?", params.EntityType)
	}
	if params.EntityID != "" {
		query = query.Where("entity_id = ?", params.EntityID)
	}
	if params.UserID != "" {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.Batch != "" {
		query = query.Where("batch_number = ?", params.Batch)
	}
	if params.From != nil {
		query = query.Where("timestamp >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("timestamp <= ?", *params.To)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 50
	}
	var rows []entity.AuditTrail
	err := query.Order("timestamp DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&rows).Error
	return rows, total, err
}

// CountByEntity rows recorded for one entity, used by reconciliation checks
func (r *AuditRepository) CountByEntity(ctx context.Context, orgID, entityType, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.AuditTrail{}).
		Where("organization_id = ? AND entity_type = ? AND entity_id = ?", orgID, entityType, entityID).
		Count(&count).Error
	return count, err
}
