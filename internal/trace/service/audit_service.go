package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/sse"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AuditService owns the append-only trail. Every mutating operation in
// the other services appends through it inside the same transaction, so
// a rolled-back mutation leaves no audit row and a committed mutation
// always leaves exactly one per entity touched.
type AuditService struct {
	repo *repository.AuditRepository
	hub  *sse.Hub
}

func NewAuditService(repo *repository.AuditRepository, hub *sse.Hub) *AuditService {
	return &AuditService{repo: repo, hub: hub}
}

// entry builds a trail row for one mutated entity.
func entry(actor Actor, category, entityType, entityID, entityName, action, details string) *entity.AuditTrail {
	return &entity.AuditTrail{
		ID:             uuid.New().String()[:32],
		OrganizationID: actor.OrgID,
		Timestamp:      time.Now(),
		Category:       category,
		EntityType:     entityType,
		EntityID:       entityID,
		EntityName:     entityName,
		Action:         action,
		Details:        details,
		UserID:         actor.UserID,
		UserName:       actor.UserName,
		UserIP:         actor.IP,
	}
}

// append writes the row inside tx. A failed audit write fails the whole
// business operation, never silently skipped.
func (s *AuditService) append(tx *gorm.DB, row *entity.AuditTrail) error {
	if err := s.repo.Create(tx, row); err != nil {
		return fmt.Errorf("%w: audit write: %v", ErrPersistence, err)
	}
	return nil
}

// notify publishes a committed entry to the tenant's event stream.
// Called only after the owning transaction has committed.
func (s *AuditService) notify(row *entity.AuditTrail) {
	if s.hub != nil {
		s.hub.PublishAudit(row.OrganizationID, row.EntityType, row.EntityID, row.Action)
	}
}

func (s *AuditService) List(ctx context.Context, params repository.AuditListParams) ([]entity.AuditTrail, int64, error) {
	return s.repo.List(ctx, params)
}

func (s *AuditService) CountByEntity(ctx context.Context, orgID, entityType, entityID string) (int64, error) {
	return s.repo.CountByEntity(ctx, orgID, entityType, entityID)
}

// Export renders the trail to a spreadsheet for regulatory submission.
func (s *AuditService) Export(ctx context.Context, params repository.AuditListParams) (*excelize.File, error) {
	params.Page = 1
	params.Size = 10000
	rows, _, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}

	f := excelize.NewFile()
	sheet := "AuditTrail"
	f.SetSheetName("Sheet1", sheet)
	headers := []string{"Timestamp", "Category", "Entity Type", "Entity ID", "Entity Name", "Action", "Details", "User", "IP", "Batch"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.Timestamp.Format(time.RFC3339),
			row.Category,
			row.EntityType,
			row.EntityID,
			row.EntityName,
			row.Action,
			row.Details,
			row.UserName,
			row.UserIP,
			row.BatchNumber,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}
