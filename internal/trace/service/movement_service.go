package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// movementTransitions the movement lifecycle:
// pending → approved|canceled, approved → completed|canceled, completed → documented
var movementTransitions = map[string][]string{
	entity.MovementStatusPending:   {entity.MovementStatusApproved, entity.MovementStatusCanceled},
	entity.MovementStatusApproved:  {entity.MovementStatusCompleted, entity.MovementStatusCanceled},
	entity.MovementStatusCompleted: {entity.MovementStatusDocumented},
}

func movementTransitionAllowed(from, to string) bool {
	for _, s := range movementTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type MovementService struct {
	repo     *repository.MovementRepository
	items    *repository.InventoryRepository
	audit    *AuditService
	db       *gorm.DB
	notifier *Notifier
}

func NewMovementService(repo *repository.MovementRepository, items *repository.InventoryRepository, audit *AuditService, db *gorm.DB) *MovementService {
	return &MovementService{repo: repo, items: items, audit: audit, db: db}
}

func (s *MovementService) SetNotifier(n *Notifier) {
	s.notifier = n
}

func (s *MovementService) Get(ctx context.Context, orgID, id string) (*entity.Movement, error) {
	return s.repo.FindByID(ctx, orgID, id)
}

func (s *MovementService) List(ctx context.Context, params repository.MovementListParams) ([]entity.Movement, int64, error) {
	return s.repo.List(ctx, params)
}

// Ledger the full chain of custody for one item, oldest first.
func (s *MovementService) Ledger(ctx context.Context, orgID, itemID string) ([]entity.Movement, error) {
	if _, err := s.items.FindByID(ctx, orgID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListByItem(ctx, orgID, itemID)
}

type RecordMovementRequest struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	Type            string  `json:"type" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required"`
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	Reason          string  `json:"reason"`
	ReferenceType   string  `json:"reference_type"`
	ReferenceID     string  `json:"reference_id"`
}

// Record creates a pending movement. No quantity changes until Complete.
func (s *MovementService) Record(ctx context.Context, actor Actor, req RecordMovementRequest) (*entity.Movement, error) {
	switch req.Type {
	case entity.MovementTypeIn, entity.MovementTypeOut, entity.MovementTypeTransfer,
		entity.MovementTypeAdjustment, entity.MovementTypeConsumption, entity.MovementTypeProduction:
	default:
		return nil, fmt.Errorf("%w: unknown movement type %q", ErrValidation, req.Type)
	}
	if req.Type != entity.MovementTypeAdjustment && req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if req.Type == entity.MovementTypeTransfer && req.Destination == "" {
		return nil, fmt.Errorf("%w: transfer requires a destination", ErrValidation)
	}

	item, err := s.items.FindByID(ctx, actor.OrgID, req.InventoryItemID)
	if err != nil {
		return nil, err
	}

	movement := &entity.Movement{
		ID:              uuid.New().String()[:32],
		OrganizationID:  actor.OrgID,
		InventoryItemID: item.ID,
		Type:            req.Type,
		Quantity:        req.Quantity,
		Unit:            item.Unit,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Reason:          req.Reason,
		BatchNumber:     item.BatchNumber,
		Status:          entity.MovementStatusPending,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		RequestedBy:     actor.UserID,
	}

	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("%w: create movement: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, item.Code, "create",
			fmt.Sprintf("%s %.4f %s requested", req.Type, req.Quantity, item.Unit))
		row.BatchNumber = item.BatchNumber
		row.RelatedIDs = entity.JSONBArray{item.ID}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return movement, nil
}

// Approve marks a pending movement ready for execution.
func (s *MovementService) Approve(ctx context.Context, actor Actor, movementID string) (*entity.Movement, error) {
	return s.transition(ctx, actor, movementID, entity.MovementStatusApproved, "approve", nil)
}

// Cancel voids a movement that has not yet been completed. Completed
// movements are immutable; corrections go through AdjustQuantity.
func (s *MovementService) Cancel(ctx context.Context, actor Actor, movementID, reason string) (*entity.Movement, error) {
	return s.transition(ctx, actor, movementID, entity.MovementStatusCanceled, "cancel", func(m *entity.Movement) {
		if reason != "" {
			m.Reason = reason
		}
	})
}

// Document marks a completed movement as having its paperwork filed.
func (s *MovementService) Document(ctx context.Context, actor Actor, movementID string) (*entity.Movement, error) {
	return s.transition(ctx, actor, movementID, entity.MovementStatusDocumented, "document", nil)
}

func (s *MovementService) transition(ctx context.Context, actor Actor, movementID, target, action string, mutate func(*entity.Movement)) (*entity.Movement, error) {
	var movement *entity.Movement
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m entity.Movement
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, movementID).First(&m).Error; err != nil {
			return translatePersistence(err)
		}
		if !movementTransitionAllowed(m.Status, target) {
			return fmt.Errorf("%w: movement %s → %s", ErrInvalidStateTransition, m.Status, target)
		}

		oldStatus := m.Status
		m.Status = target
		if mutate != nil {
			mutate(&m)
		}
		if target == entity.MovementStatusCanceled {
			now := time.Now()
			m.ProcessedBy = actor.UserID
			m.ProcessedAt = &now
		}
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("%w: update movement: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryMovement, "movement", m.ID, m.BatchNumber, action, m.Reason)
		row.BatchNumber = m.BatchNumber
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": target}}
		row.RelatedIDs = entity.JSONBArray{m.InventoryItemID}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		movement = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return movement, nil
}

// Complete executes an approved movement: the item's quantity changes by
// SignedQuantity under a row lock, and transfers relocate the item.
func (s *MovementService) Complete(ctx context.Context, actor Actor, movementID string) (*entity.Movement, error) {
	var movement *entity.Movement
	var lowStockItem *entity.InventoryItem
	var mvRow *entity.AuditTrail

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m entity.Movement
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, movementID).First(&m).Error; err != nil {
			return translatePersistence(err)
		}
		if !movementTransitionAllowed(m.Status, entity.MovementStatusCompleted) {
			return fmt.Errorf("%w: movement %s → completed", ErrInvalidStateTransition, m.Status)
		}

		item, err := s.items.FindByIDForUpdate(tx, actor.OrgID, m.InventoryItemID)
		if err != nil {
			return err
		}

		delta := m.SignedQuantity()
		newQty := item.Quantity + delta
		if newQty < 0 {
			return fmt.Errorf("%w: movement needs %.4f, item holds %.4f", ErrInsufficientStock, -delta, item.Quantity)
		}
		if newQty < item.ReservedQty {
			return fmt.Errorf("%w: %.4f reserved by production, only %.4f would remain", ErrInsufficientStock, item.ReservedQty, newQty)
		}

		updates := map[string]interface{}{"quantity": newQty}
		if m.Type == entity.MovementTypeTransfer && m.Destination != "" {
			updates["location"] = m.Destination
		}
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("%w: apply movement: %v", ErrPersistence, err)
		}

		now := time.Now()
		oldStatus := m.Status
		m.Status = entity.MovementStatusCompleted
		m.ProcessedBy = actor.UserID
		m.ProcessedAt = &now
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("%w: complete movement: %v", ErrPersistence, err)
		}

		mvRow = entry(actor, entity.AuditCategoryMovement, "movement", m.ID, item.Code, "complete", m.Reason)
		mvRow.BatchNumber = m.BatchNumber
		mvRow.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": entity.MovementStatusCompleted}}
		mvRow.RelatedIDs = entity.JSONBArray{item.ID}
		if err := s.audit.append(tx, mvRow); err != nil {
			return err
		}
		itemRow := entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "quantity_change",
			fmt.Sprintf("%s of %.4f %s applied", m.Type, m.Quantity, m.Unit))
		itemRow.BatchNumber = item.BatchNumber
		itemRow.Changes = entity.JSONB{"quantity": map[string]interface{}{"from": item.Quantity, "to": newQty}}
		itemRow.RelatedIDs = entity.JSONBArray{m.ID}
		if err := s.audit.append(tx, itemRow); err != nil {
			return err
		}

		if item.MinThreshold > 0 && newQty <= item.MinThreshold {
			snapshot := *item
			snapshot.Quantity = newQty
			lowStockItem = &snapshot
		}
		movement = &m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.notify(mvRow)
	if lowStockItem != nil && s.notifier != nil {
		s.notifier.LowStock(ctx, lowStockItem)
	}
	return movement, nil
}

// Export the movement ledger as an XLSX workbook.
func (s *MovementService) Export(ctx context.Context, params repository.MovementListParams) (*excelize.File, error) {
	params.Page = 1
	params.Size = 10000
	movements, _, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	f := excelize.NewFile()
	sheet := "Movements"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Item", "Type", "Quantity", "Unit", "Origin", "Destination", "Batch", "Status", "Reason", "Requested By", "Processed At", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, m := range movements {
		processedAt := ""
		if m.ProcessedAt != nil {
			processedAt = m.ProcessedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			m.ID, m.InventoryItemID, m.Type, m.Quantity, m.Unit, m.Origin, m.Destination,
			m.BatchNumber, m.Status, m.Reason, m.RequestedBy, processedAt, m.CreatedAt.Format(time.RFC3339),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}
