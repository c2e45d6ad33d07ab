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

// orderTransitions the production order state machine:
// planned → in_progress|canceled, in_progress → paused|completed|canceled,
// paused → in_progress|canceled. Completion itself happens only through
// AdvanceStep when the last step finishes.
var orderTransitions = map[string][]string{
	entity.OrderStatusPlanned:    {entity.OrderStatusInProgress, entity.OrderStatusCanceled},
	entity.OrderStatusInProgress: {entity.OrderStatusPaused, entity.OrderStatusCompleted, entity.OrderStatusCanceled},
	entity.OrderStatusPaused:     {entity.OrderStatusInProgress, entity.OrderStatusCanceled},
}

func orderTransitionAllowed(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ProductionService struct {
	repo     *repository.ProductionRepository
	items    *repository.InventoryRepository
	products *repository.ProductRepository
	audit    *AuditService
	db       *gorm.DB
}

func NewProductionService(repo *repository.ProductionRepository, items *repository.InventoryRepository, products *repository.ProductRepository, audit *AuditService, db *gorm.DB) *ProductionService {
	return &ProductionService{repo: repo, items: items, products: products, audit: audit, db: db}
}

func (s *ProductionService) GetOrder(ctx context.Context, orgID, id string) (*entity.ProductionOrder, error) {
	return s.repo.FindOrderByID(ctx, orgID, id)
}

func (s *ProductionService) ListOrders(ctx context.Context, params repository.OrderListParams) ([]entity.ProductionOrder, int64, error) {
	return s.repo.ListOrders(ctx, params)
}

func (s *ProductionService) ListMaterials(ctx context.Context, orgID, orderID string) ([]entity.ProductionMaterial, error) {
	return s.repo.ListMaterials(ctx, orgID, orderID)
}

type CreateStepRequest struct {
	Name          string `json:"name" binding:"required"`
	ResponsibleID string `json:"responsible_id"`
}

type CreateOrderRequest struct {
	Code          string              `json:"code"`
	ProductID     string              `json:"product_id" binding:"required"`
	Quantity      float64             `json:"quantity" binding:"required,gt=0"`
	Unit          string              `json:"unit"`
	BatchNumber   string              `json:"batch_number"`
	Priority      int                 `json:"priority"`
	DueDate       *time.Time          `json:"due_date"`
	ResponsibleID string              `json:"responsible_id"`
	Notes         string              `json:"notes"`
	Steps         []CreateStepRequest `json:"steps" binding:"required,min=1,dive"`
}

// CreateOrder plans a new run with its ordered steps. Materials are
// allocated separately once the order exists.
func (s *ProductionService) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*entity.ProductionOrder, error) {
	if len(req.Steps) == 0 {
		return nil, fmt.Errorf("%w: an order needs at least one step", ErrValidation)
	}
	if _, err := s.products.FindByID(ctx, actor.OrgID, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s not found", ErrValidation, req.ProductID)
		}
		return nil, err
	}

	code := req.Code
	if code == "" {
		code = fmt.Sprintf("PO-%s-%s", time.Now().Format("20060102"), uuid.New().String()[:4])
	}
	unit := req.Unit
	if unit == "" {
		unit = "g"
	}
	batch := req.BatchNumber
	if batch == "" {
		batch = fmt.Sprintf("B%s-%s", time.Now().Format("20060102"), uuid.New().String()[:4])
	}

	order := &entity.ProductionOrder{
		ID:             uuid.New().String()[:32],
		OrganizationID: actor.OrgID,
		Code:           code,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		Unit:           unit,
		BatchNumber:    batch,
		Status:         entity.OrderStatusPlanned,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		ResponsibleID:  req.ResponsibleID,
		Notes:          req.Notes,
		CreatedBy:      actor.UserID,
	}
	for i, st := range req.Steps {
		order.Steps = append(order.Steps, entity.ProductionStep{
			ID:             uuid.New().String()[:32],
			OrganizationID: actor.OrgID,
			OrderID:        order.ID,
			Name:           st.Name,
			Status:         entity.StepStatusPending,
			SortOrder:      i + 1,
			ResponsibleID:  st.ResponsibleID,
		})
	}

	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.ProductionOrder
		findErr := tx.Where("organization_id = ? AND code = ?", actor.OrgID, code).First(&existing).Error
		if findErr == nil {
			return fmt.Errorf("%w: order code %q already exists", ErrValidation, code)
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ErrPersistence, findErr)
		}
		if err := tx.Create(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: order code %q already exists", ErrValidation, code)
			}
			return fmt.Errorf("%w: create order: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryProduction, "production_order", order.ID, order.Code, "create",
			fmt.Sprintf("planned %.4f %s with %d steps", req.Quantity, unit, len(req.Steps)))
		row.BatchNumber = batch
		row.RelatedIDs = entity.JSONBArray{req.ProductID}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return order, nil
}

// TransitionOrder moves an order between planned, in_progress, paused
// and canceled. Starting an order consumes its allocated materials.
func (s *ProductionService) TransitionOrder(ctx context.Context, actor Actor, orderID, newStatus string) (*entity.ProductionOrder, error) {
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindOrderByIDForUpdate(tx, actor.OrgID, orderID)
		if err != nil {
			return err
		}
		if !orderTransitionAllowed(order.Status, newStatus) {
			return fmt.Errorf("%w: production order %s → %s", ErrInvalidStateTransition, order.Status, newStatus)
		}
		if newStatus == entity.OrderStatusCompleted {
			return fmt.Errorf("%w: orders complete through their final step, not directly", ErrInvalidStateTransition)
		}

		oldStatus := order.Status
		updates := map[string]interface{}{"status": newStatus}
		if err := tx.Model(&entity.ProductionOrder{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, orderID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("%w: update order: %v", ErrPersistence, err)
		}

		// Starting from planned consumes whatever materials were allocated.
		if oldStatus == entity.OrderStatusPlanned && newStatus == entity.OrderStatusInProgress {
			if err := s.consumeAllocations(tx, actor, order); err != nil {
				return err
			}
		}
		// Cancellation releases reservations that were never consumed.
		if newStatus == entity.OrderStatusCanceled {
			if err := s.releaseAllocations(tx, actor, order); err != nil {
				return err
			}
		}

		row = entry(actor, entity.AuditCategoryProduction, "production_order", order.ID, order.Code, "status_change", "")
		row.BatchNumber = order.BatchNumber
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": newStatus}}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return s.repo.FindOrderByID(ctx, actor.OrgID, orderID)
}

type AllocateMaterialRequest struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required,gt=0"`
}

// AllocateMaterial reserves stock for an order under a row lock. The
// reservation holds the quantity without moving it; the consumption
// movement happens when the order starts.
func (s *ProductionService) AllocateMaterial(ctx context.Context, actor Actor, orderID string, req AllocateMaterialRequest) (*entity.ProductionMaterial, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: allocation quantity must be positive", ErrValidation)
	}

	var material *entity.ProductionMaterial
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindOrderByIDForUpdate(tx, actor.OrgID, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderStatusPlanned {
			return fmt.Errorf("%w: materials can only be allocated to planned orders, order is %s", ErrInvalidStateTransition, order.Status)
		}

		item, err := s.items.FindByIDForUpdate(tx, actor.OrgID, req.InventoryItemID)
		if err != nil {
			return err
		}
		if item.AvailableQty() < req.Quantity {
			return fmt.Errorf("%w: %s has %.4f %s available, %.4f requested",
				ErrInsufficientStock, item.Code, item.AvailableQty(), item.Unit, req.Quantity)
		}

		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Update("reserved_qty", item.ReservedQty+req.Quantity).Error; err != nil {
			return fmt.Errorf("%w: reserve stock: %v", ErrPersistence, err)
		}

		material = &entity.ProductionMaterial{
			ID:              uuid.New().String()[:32],
			OrganizationID:  actor.OrgID,
			OrderID:         order.ID,
			InventoryItemID: item.ID,
			Quantity:        req.Quantity,
			Unit:            item.Unit,
			Allocated:       false,
		}
		if err := tx.Create(material).Error; err != nil {
			return fmt.Errorf("%w: create material allocation: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryProduction, "production_material", material.ID, item.Code, "allocate",
			fmt.Sprintf("reserved %.4f %s of %s for %s", req.Quantity, item.Unit, item.Code, order.Code))
		row.BatchNumber = order.BatchNumber
		row.RelatedIDs = entity.JSONBArray{order.ID, item.ID}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return material, nil
}

// consumeAllocations turns every not-yet-allocated material into a
// completed consumption movement and releases its reservation. Only
// rows with allocated = false are touched, so running it twice leaves
// quantities unchanged.
func (s *ProductionService) consumeAllocations(tx *gorm.DB, actor Actor, order *entity.ProductionOrder) error {
	materials, err := s.repo.ListUnallocatedMaterials(tx, actor.OrgID, order.ID)
	if err != nil {
		return fmt.Errorf("%w: load materials: %v", ErrPersistence, err)
	}

	for i := range materials {
		mat := &materials[i]
		item, err := s.items.FindByIDForUpdate(tx, actor.OrgID, mat.InventoryItemID)
		if err != nil {
			return err
		}
		if item.Quantity < mat.Quantity {
			return fmt.Errorf("%w: %s holds %.4f %s, order %s needs %.4f",
				ErrInsufficientStock, item.Code, item.Quantity, item.Unit, order.Code, mat.Quantity)
		}

		now := time.Now()
		movement := &entity.Movement{
			ID:              uuid.New().String()[:32],
			OrganizationID:  actor.OrgID,
			InventoryItemID: item.ID,
			Type:            entity.MovementTypeConsumption,
			Quantity:        mat.Quantity,
			Unit:            mat.Unit,
			Reason:          fmt.Sprintf("consumed by production order %s", order.Code),
			BatchNumber:     order.BatchNumber,
			Status:          entity.MovementStatusCompleted,
			ReferenceType:   "production_order",
			ReferenceID:     order.ID,
			RequestedBy:     actor.UserID,
			ProcessedBy:     actor.UserID,
			ProcessedAt:     &now,
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("%w: create consumption movement: %v", ErrPersistence, err)
		}

		reserved := item.ReservedQty - mat.Quantity
		if reserved < 0 {
			reserved = 0
		}
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Updates(map[string]interface{}{
				"quantity":     item.Quantity - mat.Quantity,
				"reserved_qty": reserved,
			}).Error; err != nil {
			return fmt.Errorf("%w: consume stock: %v", ErrPersistence, err)
		}

		if err := tx.Model(&entity.ProductionMaterial{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, mat.ID).
			Updates(map[string]interface{}{
				"allocated":   true,
				"movement_id": movement.ID,
			}).Error; err != nil {
			return fmt.Errorf("%w: mark material consumed: %v", ErrPersistence, err)
		}

		itemRow := entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "quantity_change",
			fmt.Sprintf("%.4f %s consumed by %s", mat.Quantity, item.Unit, order.Code))
		itemRow.BatchNumber = item.BatchNumber
		itemRow.Changes = entity.JSONB{"quantity": map[string]interface{}{"from": item.Quantity, "to": item.Quantity - mat.Quantity}}
		itemRow.RelatedIDs = entity.JSONBArray{movement.ID, order.ID}
		if err := s.audit.append(tx, itemRow); err != nil {
			return err
		}
		mvRow := entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, item.Code, "create",
			fmt.Sprintf("consumption for %s", order.Code))
		mvRow.BatchNumber = order.BatchNumber
		mvRow.RelatedIDs = entity.JSONBArray{item.ID, order.ID}
		if err := s.audit.append(tx, mvRow); err != nil {
			return err
		}
	}
	return nil
}

// releaseAllocations drops reservations for materials never consumed.
func (s *ProductionService) releaseAllocations(tx *gorm.DB, actor Actor, order *entity.ProductionOrder) error {
	materials, err := s.repo.ListUnallocatedMaterials(tx, actor.OrgID, order.ID)
	if err != nil {
		return fmt.Errorf("%w: load materials: %v", ErrPersistence, err)
	}
	for i := range materials {
		mat := &materials[i]
		item, err := s.items.FindByIDForUpdate(tx, actor.OrgID, mat.InventoryItemID)
		if err != nil {
			return err
		}
		reserved := item.ReservedQty - mat.Quantity
		if reserved < 0 {
			reserved = 0
		}
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Update("reserved_qty", reserved).Error; err != nil {
			return fmt.Errorf("%w: release reservation: %v", ErrPersistence, err)
		}
		row := entry(actor, entity.AuditCategoryProduction, "production_material", mat.ID, item.Code, "release",
			fmt.Sprintf("reservation of %.4f %s released, order %s canceled", mat.Quantity, mat.Unit, order.Code))
		row.BatchNumber = order.BatchNumber
		row.RelatedIDs = entity.JSONBArray{order.ID, item.ID}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceStep moves one step forward: pending → in_progress → completed.
// Progress is recomputed from completed steps, and finishing the last
// step completes the order and books its finished-goods movement.
func (s *ProductionService) AdvanceStep(ctx context.Context, actor Actor, orderID, stepID string) (*entity.ProductionOrder, error) {
	var rows []*entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes concurrent advances on the same order,
		// so the step counts below always include every committed advance
		// and the last finished step reliably completes the order.
		order, err := s.repo.FindOrderByIDForUpdate(tx, actor.OrgID, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderStatusInProgress {
			return fmt.Errorf("%w: steps advance only while the order is in_progress, order is %s", ErrInvalidStateTransition, order.Status)
		}

		var step entity.ProductionStep
		if err := tx.Where("organization_id = ? AND order_id = ? AND id = ?", actor.OrgID, orderID, stepID).
			First(&step).Error; err != nil {
			return translatePersistence(err)
		}

		now := time.Now()
		oldStepStatus := step.Status
		switch step.Status {
		case entity.StepStatusPending:
			step.Status = entity.StepStatusInProgress
			step.StartedAt = &now
		case entity.StepStatusInProgress:
			step.Status = entity.StepStatusCompleted
			step.CompletedAt = &now
			if step.StartedAt != nil {
				step.DurationMinutes = int(now.Sub(*step.StartedAt).Minutes())
			}
		default:
			return fmt.Errorf("%w: step already completed", ErrInvalidStateTransition)
		}
		if actor.UserID != "" && step.ResponsibleID == "" {
			step.ResponsibleID = actor.UserID
		}
		if err := tx.Save(&step).Error; err != nil {
			return fmt.Errorf("%w: update step: %v", ErrPersistence, err)
		}

		stepRow := entry(actor, entity.AuditCategoryProduction, "production_step", step.ID, step.Name, "status_change", "")
		stepRow.BatchNumber = order.BatchNumber
		stepRow.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStepStatus, "to": step.Status}}
		stepRow.RelatedIDs = entity.JSONBArray{order.ID}
		if err := s.audit.append(tx, stepRow); err != nil {
			return err
		}
		rows = append(rows, stepRow)

		var total, completed int64
		if err := tx.Model(&entity.ProductionStep{}).
			Where("organization_id = ? AND order_id = ?", actor.OrgID, orderID).
			Count(&total).Error; err != nil {
			return fmt.Errorf("%w: count steps: %v", ErrPersistence, err)
		}
		if err := tx.Model(&entity.ProductionStep{}).
			Where("organization_id = ? AND order_id = ? AND status = ?", actor.OrgID, orderID, entity.StepStatusCompleted).
			Count(&completed).Error; err != nil {
			return fmt.Errorf("%w: count completed steps: %v", ErrPersistence, err)
		}

		progress := 0
		if total > 0 {
			progress = int(completed * 100 / total)
		}
		updates := map[string]interface{}{"progress": progress}

		allDone := total > 0 && completed == total
		if allDone {
			updates["status"] = entity.OrderStatusCompleted
			updates["completion_date"] = now

			orderRow := entry(actor, entity.AuditCategoryProduction, "production_order", order.ID, order.Code, "complete",
				fmt.Sprintf("all %d steps completed", total))
			orderRow.BatchNumber = order.BatchNumber
			orderRow.Changes = entity.JSONB{"status": map[string]interface{}{"from": order.Status, "to": entity.OrderStatusCompleted}}
			if err := s.audit.append(tx, orderRow); err != nil {
				return err
			}
			rows = append(rows, orderRow)

			if err := s.bookOutput(tx, actor, order, now); err != nil {
				return err
			}
		}

		if err := tx.Model(&entity.ProductionOrder{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, orderID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("%w: update order progress: %v", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.audit.notify(row)
	}
	return s.repo.FindOrderByID(ctx, actor.OrgID, orderID)
}

// bookOutput records the completed run's yield as a finished-goods item
// plus its production movement, under the order's batch number.
func (s *ProductionService) bookOutput(tx *gorm.DB, actor Actor, order *entity.ProductionOrder, now time.Time) error {
	var product entity.Product
	if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, order.ProductID).First(&product).Error; err != nil {
		return translatePersistence(err)
	}

	item := &entity.InventoryItem{
		ID:             uuid.New().String()[:32],
		OrganizationID: actor.OrgID,
		Code:           fmt.Sprintf("%s-%s", product.SKU, order.BatchNumber),
		Name:           product.Name,
		ItemType:       entity.ItemTypeFinished,
		Quantity:       order.Quantity,
		Unit:           order.Unit,
		BatchNumber:    order.BatchNumber,
		Status:         entity.ItemStatusAvailable,
		CreatedBy:      actor.UserID,
	}
	if err := tx.Create(item).Error; err != nil {
		return fmt.Errorf("%w: create output item: %v", ErrPersistence, err)
	}

	movement := &entity.Movement{
		ID:              uuid.New().String()[:32],
		OrganizationID:  actor.OrgID,
		InventoryItemID: item.ID,
		Type:            entity.MovementTypeProduction,
		Quantity:        order.Quantity,
		Unit:            order.Unit,
		Reason:          fmt.Sprintf("output of production order %s", order.Code),
		BatchNumber:     order.BatchNumber,
		Status:          entity.MovementStatusCompleted,
		ReferenceType:   "production_order",
		ReferenceID:     order.ID,
		RequestedBy:     actor.UserID,
		ProcessedBy:     actor.UserID,
		ProcessedAt:     &now,
	}
	if err := tx.Create(movement).Error; err != nil {
		return fmt.Errorf("%w: create production movement: %v", ErrPersistence, err)
	}

	itemRow := entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "create",
		fmt.Sprintf("%.4f %s produced by %s", order.Quantity, order.Unit, order.Code))
	itemRow.BatchNumber = order.BatchNumber
	itemRow.RelatedIDs = entity.JSONBArray{movement.ID, order.ID}
	if err := s.audit.append(tx, itemRow); err != nil {
		return err
	}
	mvRow := entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, item.Code, "create",
		fmt.Sprintf("production output of %s", order.Code))
	mvRow.BatchNumber = order.BatchNumber
	mvRow.RelatedIDs = entity.JSONBArray{item.ID, order.ID}
	return s.audit.append(tx, mvRow)
}
