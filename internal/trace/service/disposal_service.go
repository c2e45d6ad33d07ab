package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// disposalTransitions pending → approved|canceled,
// approved → completed|canceled, completed → documented.
var disposalTransitions = map[string][]string{
	entity.DisposalStatusPending:   {entity.DisposalStatusApproved, entity.DisposalStatusCanceled},
	entity.DisposalStatusApproved:  {entity.DisposalStatusCompleted, entity.DisposalStatusCanceled},
	entity.DisposalStatusCompleted: {entity.DisposalStatusDocumented},
}

func disposalTransitionAllowed(from, to string) bool {
	for _, s := range disposalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type DisposalService struct {
	repo     *repository.DisposalRepository
	items    *repository.InventoryRepository
	audit    *AuditService
	db       *gorm.DB
	store    *storage.Store
	notifier *Notifier
}

func NewDisposalService(repo *repository.DisposalRepository, items *repository.InventoryRepository, audit *AuditService, db *gorm.DB, store *storage.Store) *DisposalService {
	return &DisposalService{repo: repo, items: items, audit: audit, db: db, store: store}
}

func (s *DisposalService) SetNotifier(n *Notifier) {
	s.notifier = n
}

func (s *DisposalService) Get(ctx context.Context, orgID, id string) (*entity.Disposal, error) {
	return s.repo.FindByID(ctx, orgID, id)
}

func (s *DisposalService) List(ctx context.Context, params repository.DisposalListParams) ([]entity.Disposal, int64, error) {
	return s.repo.List(ctx, params)
}

type RequestDisposalRequest struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required,gt=0"`
	Reason          string  `json:"reason" binding:"required"`
	Method          string  `json:"method"`
	Location        string  `json:"location"`
	Cost            string  `json:"cost"`
	Notes           string  `json:"notes"`
}

// Request opens a pending disposal. No stock changes until approval
// and completion; the request only verifies the quantity exists.
func (s *DisposalService) Request(ctx context.Context, actor Actor, req RequestDisposalRequest) (*entity.Disposal, error) {
	switch req.Reason {
	case entity.DisposalReasonExpired, entity.DisposalReasonDamaged, entity.DisposalReasonContaminated,
		entity.DisposalReasonRecalled, entity.DisposalReasonQualityFail, entity.DisposalReasonOther:
	default:
		return nil, fmt.Errorf("%w: unknown disposal reason %q", ErrValidation, req.Reason)
	}

	cost := decimal.Zero
	if req.Cost != "" {
		parsed, err := decimal.NewFromString(req.Cost)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid cost %q", ErrValidation, req.Cost)
		}
		cost = parsed
	}

	item, err := s.items.FindByID(ctx, actor.OrgID, req.InventoryItemID)
	if err != nil {
		return nil, err
	}
	if item.AvailableQty() < req.Quantity {
		return nil, fmt.Errorf("%w: %s has %.4f %s available, %.4f requested for disposal",
			ErrInsufficientStock, item.Code, item.AvailableQty(), item.Unit, req.Quantity)
	}

	disposal := &entity.Disposal{
		ID:              uuid.New().String()[:32],
		OrganizationID:  actor.OrgID,
		InventoryItemID: item.ID,
		Quantity:        req.Quantity,
		Unit:            item.Unit,
		Reason:          req.Reason,
		Method:          req.Method,
		Status:          entity.DisposalStatusPending,
		Location:        req.Location,
		Cost:            cost,
		RequestedBy:     actor.UserID,
		Notes:           req.Notes,
	}

	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(disposal).Error; err != nil {
			return fmt.Errorf("%w: create disposal: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryDisposal, "disposal", disposal.ID, item.Code, "create",
			fmt.Sprintf("disposal of %.4f %s requested, reason %s", req.Quantity, item.Unit, req.Reason))
		row.BatchNumber = item.BatchNumber
		row.RelatedIDs = entity.JSONBArray{item.ID}
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	if s.notifier != nil {
		s.notifier.DisposalRequested(ctx, disposal, item)
	}
	return disposal, nil
}

// Approve gates every disposal behind the approver capability. The
// requester approving their own write-off is allowed only when they
// also hold the role.
func (s *DisposalService) Approve(ctx context.Context, actor Actor, disposalID string) (*entity.Disposal, error) {
	if !actor.HasRole(RoleDisposalApprover) {
		return nil, fmt.Errorf("%w: disposal approval requires the %s role", ErrPermissionDenied, RoleDisposalApprover)
	}

	var disposal *entity.Disposal
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d entity.Disposal
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, disposalID).First(&d).Error; err != nil {
			return translatePersistence(err)
		}
		if !disposalTransitionAllowed(d.Status, entity.DisposalStatusApproved) {
			return fmt.Errorf("%w: disposal %s → approved", ErrInvalidStateTransition, d.Status)
		}

		now := time.Now()
		oldStatus := d.Status
		d.Status = entity.DisposalStatusApproved
		d.ApprovedBy = &actor.UserID
		d.ApprovedAt = &now
		if err := tx.Save(&d).Error; err != nil {
			return fmt.Errorf("%w: approve disposal: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryDisposal, "disposal", d.ID, d.Reason, "approve", "")
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": entity.DisposalStatusApproved}}
		row.RelatedIDs = entity.JSONBArray{d.InventoryItemID}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		disposal = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return disposal, nil
}

// AttachEvidence uploads a destruction certificate or photo to object
// storage and links it to the disposal.
func (s *DisposalService) AttachEvidence(ctx context.Context, actor Actor, disposalID, kind, filename, contentType string, r io.Reader, size int64) (*entity.Disposal, error) {
	if s.store == nil || !s.store.Configured() {
		return nil, fmt.Errorf("%w: object storage is not configured", ErrValidation)
	}
	if kind != "certificate" && kind != "photo" {
		return nil, fmt.Errorf("%w: evidence kind must be certificate or photo", ErrValidation)
	}

	key, err := s.store.Put(ctx, actor.OrgID, "disposals", filename, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: store evidence: %v", ErrPersistence, err)
	}

	var disposal *entity.Disposal
	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d entity.Disposal
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, disposalID).First(&d).Error; err != nil {
			return translatePersistence(err)
		}
		if d.Status == entity.DisposalStatusCanceled {
			return fmt.Errorf("%w: canceled disposals accept no evidence", ErrInvalidStateTransition)
		}

		if kind == "certificate" {
			d.Certificate = key
		} else {
			d.Photos = append(d.Photos, map[string]interface{}{
				"key":      key,
				"taken_at": time.Now().Format(time.RFC3339),
			})
		}
		if err := tx.Save(&d).Error; err != nil {
			return fmt.Errorf("%w: attach evidence: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryDisposal, "disposal", d.ID, d.Reason, "attach_evidence",
			fmt.Sprintf("%s %s attached", kind, filename))
		row.RelatedIDs = entity.JSONBArray{d.InventoryItemID}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		disposal = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return disposal, nil
}

// Complete executes an approved disposal: the destruction certificate
// must already be attached, stock decreases under a row lock, and the
// completed out movement records the write-off.
func (s *DisposalService) Complete(ctx context.Context, actor Actor, disposalID string) (*entity.Disposal, error) {
	var disposal *entity.Disposal
	var rows []*entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d entity.Disposal
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, disposalID).First(&d).Error; err != nil {
			return translatePersistence(err)
		}
		if !disposalTransitionAllowed(d.Status, entity.DisposalStatusCompleted) {
			return fmt.Errorf("%w: disposal %s → completed", ErrInvalidStateTransition, d.Status)
		}
		if d.Certificate == "" {
			return fmt.Errorf("%w: completion requires a destruction certificate", ErrValidation)
		}

		item, err := s.items.FindByIDForUpdate(tx, actor.OrgID, d.InventoryItemID)
		if err != nil {
			return err
		}
		if item.AvailableQty() < d.Quantity {
			return fmt.Errorf("%w: %s has %.4f %s available, disposal needs %.4f",
				ErrInsufficientStock, item.Code, item.AvailableQty(), item.Unit, d.Quantity)
		}

		now := time.Now()
		movement := &entity.Movement{
			ID:              uuid.New().String()[:32],
			OrganizationID:  actor.OrgID,
			InventoryItemID: item.ID,
			Type:            entity.MovementTypeOut,
			Quantity:        d.Quantity,
			Unit:            d.Unit,
			Reason:          fmt.Sprintf("disposal: %s", d.Reason),
			BatchNumber:     item.BatchNumber,
			Status:          entity.MovementStatusCompleted,
			ReferenceType:   "disposal",
			ReferenceID:     d.ID,
			RequestedBy:     d.RequestedBy,
			ProcessedBy:     actor.UserID,
			ProcessedAt:     &now,
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("%w: create disposal movement: %v", ErrPersistence, err)
		}

		newQty := item.Quantity - d.Quantity
		if err := tx.Model(&entity.InventoryItem{}).
			Where("organization_id = ? AND id = ?", actor.OrgID, item.ID).
			Update("quantity", newQty).Error; err != nil {
			return fmt.Errorf("%w: write off stock: %v", ErrPersistence, err)
		}

		oldStatus := d.Status
		d.Status = entity.DisposalStatusCompleted
		d.ProcessedBy = actor.UserID
		d.ProcessedAt = &now
		d.MovementID = &movement.ID
		if err := tx.Save(&d).Error; err != nil {
			return fmt.Errorf("%w: complete disposal: %v", ErrPersistence, err)
		}

		dRow := entry(actor, entity.AuditCategoryDisposal, "disposal", d.ID, d.Reason, "complete",
			fmt.Sprintf("%.4f %s destroyed", d.Quantity, d.Unit))
		dRow.BatchNumber = item.BatchNumber
		dRow.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": entity.DisposalStatusCompleted}}
		dRow.RelatedIDs = entity.JSONBArray{item.ID, movement.ID}
		if err := s.audit.append(tx, dRow); err != nil {
			return err
		}
		rows = append(rows, dRow)

		itemRow := entry(actor, entity.AuditCategoryInventory, "inventory_item", item.ID, item.Name, "quantity_change",
			fmt.Sprintf("%.4f %s written off by disposal", d.Quantity, d.Unit))
		itemRow.BatchNumber = item.BatchNumber
		itemRow.Changes = entity.JSONB{"quantity": map[string]interface{}{"from": item.Quantity, "to": newQty}}
		itemRow.RelatedIDs = entity.JSONBArray{d.ID, movement.ID}
		if err := s.audit.append(tx, itemRow); err != nil {
			return err
		}
		rows = append(rows, itemRow)

		mvRow := entry(actor, entity.AuditCategoryMovement, "movement", movement.ID, item.Code, "create",
			fmt.Sprintf("out movement for disposal %s", d.ID))
		mvRow.BatchNumber = item.BatchNumber
		mvRow.RelatedIDs = entity.JSONBArray{d.ID, item.ID}
		if err := s.audit.append(tx, mvRow); err != nil {
			return err
		}
		rows = append(rows, mvRow)

		disposal = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.audit.notify(row)
	}
	return disposal, nil
}

// Document closes the paperwork loop on a completed disposal.
func (s *DisposalService) Document(ctx context.Context, actor Actor, disposalID string) (*entity.Disposal, error) {
	return s.transition(ctx, actor, disposalID, entity.DisposalStatusDocumented, "document")
}

// Cancel voids a pending or approved disposal. Completed disposals are
// immutable.
func (s *DisposalService) Cancel(ctx context.Context, actor Actor, disposalID string) (*entity.Disposal, error) {
	return s.transition(ctx, actor, disposalID, entity.DisposalStatusCanceled, "cancel")
}

func (s *DisposalService) transition(ctx context.Context, actor Actor, disposalID, target, action string) (*entity.Disposal, error) {
	var disposal *entity.Disposal
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d entity.Disposal
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, disposalID).First(&d).Error; err != nil {
			return translatePersistence(err)
		}
		if !disposalTransitionAllowed(d.Status, target) {
			return fmt.Errorf("%w: disposal %s → %s", ErrInvalidStateTransition, d.Status, target)
		}

		oldStatus := d.Status
		d.Status = target
		if err := tx.Save(&d).Error; err != nil {
			return fmt.Errorf("%w: update disposal: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryDisposal, "disposal", d.ID, d.Reason, action, "")
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": target}}
		row.RelatedIDs = entity.JSONBArray{d.InventoryItemID}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		disposal = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return disposal, nil
}

// EvidenceURL a short-lived presigned link to stored evidence.
func (s *DisposalService) EvidenceURL(ctx context.Context, orgID, disposalID string) (string, error) {
	d, err := s.repo.FindByID(ctx, orgID, disposalID)
	if err != nil {
		return "", err
	}
	if d.Certificate == "" {
		return "", fmt.Errorf("%w: no certificate attached", ErrValidation)
	}
	if s.store == nil || !s.store.Configured() {
		return "", fmt.Errorf("%w: object storage is not configured", ErrValidation)
	}
	url, err := s.store.PresignedURL(ctx, d.Certificate, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("%w: presign certificate: %v", ErrPersistence, err)
	}
	return url, nil
}
