package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// itemTransitions the inventory status state machine:
// available ↔ reserved ↔ in_use, available → quarantine → approved|rejected
var itemTransitions = map[string][]string{
	entity.ItemStatusAvailable:  {entity.ItemStatusReserved, entity.ItemStatusQuarantine},
	entity.ItemStatusReserved:   {entity.ItemStatusAvailable, entity.ItemStatusInUse},
	entity.ItemStatusInUse:      {entity.ItemStatusReserved},
	entity.ItemStatusQuarantine: {entity.ItemStatusApproved, entity.ItemStatusRejected},
}

func itemTransitionAllowed(from, to string) bool {
	for _, s := range itemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type InventoryService struct {
	repo     *repository.InventoryRepository
	audit    *AuditService
	db       *gorm.DB
	notifier *Notifier
}

func NewInventoryService(repo *repository.InventoryRepository, audit *AuditService, db *gorm.DB) *InventoryService {
	return &InventoryService{repo: repo, audit: audit, db: db}
}

func (s *InventoryService) SetNotifier(n *Notifier) {
	s.notifier = n
}

func (s *InventoryService) Get(ctx context.Context, orgID, id string) (*entity.InventoryItem, error) {
	return s.repo.FindByID(ctx, orgID, id)
}

func (s *InventoryService) List(ctx context.Context, params repository.InventoryListParams) ([]entity.InventoryItem, int64, error) {
	return s.repo.List(ctx, params)
}

func (s *InventoryService) LowStock(ctx context.Context, orgID string) ([]entity.InventoryItem, error) {
	return s.repo.LowStock(ctx, orgID)
}

func (s *InventoryService) Expiring(ctx context.Context, orgID string, within time.Duration) ([]entity.InventoryItem, error) {
	return s.repo.Expiring(ctx, orgID, within)
}

type ReceiveRequest struct {
	Code         string     `json:"code" binding:"required"`
	Name         string     `json:"name" binding:"required"`
	ItemType     string     `json:"item_type"`
	Quantity     float64    `json:"quantity" binding:"required,gt=0"`
	Unit         string     `json:"unit"`
	Location     string     `json:"location"`
	BatchNumber  string     `json:"batch_number"`
	MinThreshold float64    `json:"min_threshold"`
	MaxThreshold float64    `json:"max_threshold"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	Origin       string     `json:"origin"`
	Notes        string     `json:"notes"`
}

// Receive creates a new item with status available and records the
// inbound movement that establishes its opening quantity, so the ledger
// reconciles from the first gram.
func (s *InventoryService) Receive(ctx context.Context, actor Actor, req ReceiveRequest) (*entity.InventoryItem, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	itemType := req.ItemType
	if itemType == "" {
		itemType = entity.ItemTypeRawMaterial
	}
	unit := req.Unit
	if unit == "" {
		unit = "g"
	}
	batch := req.BatchNumber
	if batch == "" {
		now := time.Now()
		batch = fmt.Sprintf("%s%03d", now.Format("20060102"), now.UnixNano()%1000)
	}

	item := &entity.InventoryItem{
		ID:             uuid.New().String()[:32],
		OrganizationID: actor.OrgID,
		Code:           req.Code,
		Name:           req.Name,
		ItemType:       itemType,
		Quantity:       req.Quantity,
		Unit:           unit,
		Location:       req.Location,
		BatchNumber:    batch,
		Status:         entity.ItemStatusAvailable,
		MinThreshold:   req.MinThreshold,
		MaxThreshold:   req.MaxThreshold,
		ExpiryDate:     req.ExpiryDate,
		Notes:          req.Notes,
		CreatedBy:      actor.UserID,
	}

	now := time.Now()
	movement := &entity.Movement{
		ID:              uuid.New().String()[:32],
		OrganizationID:  actor.OrgID,
		InventoryItemID: item.ID,
		Type:            entity.MovementTypeIn,
		Quantity:        req.Quantity,
		Unit:            unit,
		Origin:          req.Origin,
		Destination:     req.Location,
		Reason:          "initial receipt",
		BatchNumber:     batch,
		Status:          entity.MovementStatusCompleted,
		ReferenceType:   "receipt",
		ReferenceID:     item.ID,
		RequestedBy:     actor.UserID,
		ProcessedBy:     actor.UserID,
		ProcessedAt:     &now,
	}

	var itemRow *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.InventoryItem
		findErr := tx.Where("organization_id = ? AND code = ?", actor.OrgID, req.Code).First(&existing).Error
		if findErr == nil {
			return fmt.Errorf("%w: item code %q already exists", ErrValidation, req.Code)
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ErrPersistence, findErr)
		}

		if err := tx.Create(item).Error; err != nil {
			// A concurrent receive can slip past the lookup above and
			// land on the unique (organization_id, code) index instead.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: item code %q already exists", ErrValidation, req.Code)
			}
			return fmt.Errorf("%w: create item: %v", ErrPersistence, err)
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("%w: create receipt movement: %v", ErrPersistence, err)
		}

		itemRow = entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "create",
			fmt.Sprintf("received %.4f %s of %s", req.Quantity, unit, req.Code))
		itemRow.BatchNumber = batch
		itemRow.RelatedIDs = entity.JSONBArray{movement.ID}
		if err := s.audit.append(tx, itemRow); err != nil {
			return err
		}
		mvRow := entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, req.Code, "create",
			"initial receipt movement")
		mvRow.BatchNumber = batch
		mvRow.RelatedIDs = entity.JSONBArray{item.ID}
		return s.audit.append(tx, mvRow)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(itemRow)
	return item, nil
}

// AdjustQuantity atomically applies a signed correction to the item and
// records the completed adjustment movement that explains it.
func (s *InventoryService) AdjustQuantity(ctx context.Context, actor Actor, itemID string, delta float64, reason string) (*entity.Movement, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta must be non-zero", ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", ErrValidation)
	}

	var movement *entity.Movement
	var itemRow *entity.AuditTrail
	var lowStockItem *entity.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(tx, actor.OrgID, itemID)
		if err != nil {
			return err
		}
		newQty := item.Quantity + delta
		if newQty < 0 {
			return fmt.Errorf("%w: adjustment of %.4f would leave %.4f", ErrInsufficientStock, delta, newQty)
		}
		if newQty < item.ReservedQty {
			return fmt.Errorf("%w: %.4f reserved by production exceeds adjusted quantity %.4f", ErrInsufficientStock, item.ReservedQty, newQty)
		}

		now := time.Now()
		movement = &entity.Movement{
			ID:              uuid.New().String()[:32],
			OrganizationID:  actor.OrgID,
			InventoryItemID: item.ID,
			Type:            entity.MovementTypeAdjustment,
			Quantity:        delta,
			Unit:            item.Unit,
			Reason:          reason,
			BatchNumber:     item.BatchNumber,
			Status:          entity.MovementStatusCompleted,
			ReferenceType:   "manual",
			RequestedBy:     actor.UserID,
			ProcessedBy:     actor.UserID,
			ProcessedAt:     &now,
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("%w: create adjustment movement: %v", ErrPersistence, err)
		}

		oldQty := item.Quantity
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Update("quantity", newQty).Error; err != nil {
			return fmt.Errorf("%w: update quantity: %v", ErrPersistence, err)
		}

		itemRow = entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "adjust", reason)
		itemRow.BatchNumber = item.BatchNumber
		itemRow.Changes = entity.JSONB{"quantity": map[string]interface{}{"from": oldQty, "to": newQty}}
		itemRow.RelatedIDs = entity.JSONBArray{movement.ID}
		if err := s.audit.append(tx, itemRow); err != nil {
			return err
		}
		if item.MinThreshold > 0 && newQty <= item.MinThreshold {
			snapshot := *item
			snapshot.Quantity = newQty
			lowStockItem = &snapshot
		}
		mvRow := entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, item.Code, "create",
			fmt.Sprintf("adjustment %.4f %s: %s", delta, item.Unit, reason))
		mvRow.BatchNumber = item.BatchNumber
		mvRow.RelatedIDs = entity.JSONBArray{item.ID}
		return s.audit.append(tx, mvRow)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(itemRow)
	if lowStockItem != nil && s.notifier != nil {
		s.notifier.LowStock(ctx, lowStockItem)
	}
	return movement, nil
}

// TransitionStatus enforces the item status state machine.
func (s *InventoryService) TransitionStatus(ctx context.Context, actor Actor, itemID, newStatus string) (*entity.InventoryItem, error) {
	var item *entity.InventoryItem
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = s.repo.FindByIDForUpdate(tx, actor.OrgID, itemID)
		if err != nil {
			return err
		}
		if !itemTransitionAllowed(item.Status, newStatus) {
			return fmt.Errorf("%w: inventory item %s → %s", ErrInvalidStateTransition, item.Status, newStatus)
		}

		oldStatus := item.Status
		item.Status = newStatus
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Update("status", newStatus).Error; err != nil {
			return fmt.Errorf("%w: update status: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "status_change", "")
		row.BatchNumber = item.BatchNumber
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": newStatus}}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return item, nil
}
