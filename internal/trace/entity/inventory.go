package entity

import (
	"time"
)

// ItemType kinds of physical stock
const (
	ItemTypeRawMaterial = "raw_material"
	ItemTypeInProcess   = "in_process"
	ItemTypeFinished    = "finished_product"
	ItemTypePackaging   = "packaging"
)

// ItemStatus inventory item lifecycle states
const (
	ItemStatusAvailable  = "available"
	ItemStatusReserved   = "reserved"
	ItemStatusInUse      = "in_use"
	ItemStatusQuarantine = "quarantine"
	ItemStatusApproved   = "approved"
	ItemStatusRejected   = "rejected"
)

// InventoryItem a physical stock unit. Never hard-deleted, only status transitions.
type InventoryItem struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID string     `json:"organization_id" gorm:"size:32;not null;uniqueIndex:idx_inv_items_org_code;index"`
	Code           string     `json:"code" gorm:"size:50;not null;uniqueIndex:idx_inv_items_org_code"`
	Name           string     `json:"name" gorm:"size:200;not null"`
	ItemType       string     `json:"item_type" gorm:"size:20;not null;default:raw_material"`
	Quantity       float64    `json:"quantity" gorm:"type:decimal(12,4);not null;default:0"`
	ReservedQty    float64    `json:"reserved_qty" gorm:"type:decimal(12,4);not null;default:0"`
	Unit           string     `json:"unit" gorm:"size:20;not null;default:g"`
	Location       string     `json:"location" gorm:"size:100"`
	BatchNumber    string     `json:"batch_number" gorm:"size:50;index"`
	Status         string     `json:"status" gorm:"size:20;not null;default:available"`
	MinThreshold   float64    `json:"min_threshold" gorm:"type:decimal(12,4);default:0"`
	MaxThreshold   float64    `json:"max_threshold" gorm:"type:decimal(12,4);default:0"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	Notes          string     `json:"notes" gorm:"type:text"`
	CreatedBy      string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "trace_inventory_items"
}

// AvailableQty quantity not reserved by production allocations
func (i *InventoryItem) AvailableQty() float64 {
	return i.Quantity - i.ReservedQty
}

// MovementType directed stock change kinds
const (
	MovementTypeIn          = "in"
	MovementTypeOut         = "out"
	MovementTypeTransfer    = "transfer"
	MovementTypeAdjustment  = "adjustment"
	MovementTypeConsumption = "consumption"
	MovementTypeProduction  = "production"
)

// MovementStatus ledger entry lifecycle
const (
	MovementStatusPending    = "pending"
	MovementStatusApproved   = "approved"
	MovementStatusCompleted  = "completed"
	MovementStatusDocumented = "documented"
	MovementStatusCanceled   = "canceled"
)

// Movement a single directed quantity change against one InventoryItem.
// Immutable once completed; corrections are compensating adjustments.
type Movement struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID  string     `json:"organization_id" gorm:"size:32;not null;index"`
	InventoryItemID string     `json:"inventory_item_id" gorm:"size:32;not null;index"`
	Type            string     `json:"type" gorm:"size:20;not null"`
	Quantity        float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit            string     `json:"unit" gorm:"size:20;not null;default:g"`
	Origin          string     `json:"origin" gorm:"size:100"`
	Destination     string     `json:"destination" gorm:"size:100"`
	Reason          string     `json:"reason" gorm:"type:text"`
	BatchNumber     string     `json:"batch_number" gorm:"size:50;index"`
	Status          string     `json:"status" gorm:"size:20;not null;default:pending"`
	ReferenceType   string     `json:"reference_type" gorm:"size:50"` // production_order, disposal, manual
	ReferenceID     string     `json:"reference_id" gorm:"size:32"`
	RequestedBy     string     `json:"requested_by" gorm:"size:32;not null"`
	ProcessedBy     string     `json:"processed_by" gorm:"size:32"`
	ProcessedAt     *time.Time `json:"processed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Item *InventoryItem `json:"item,omitempty" gorm:"foreignKey:InventoryItemID"`
}

func (Movement) TableName() string {
	return "trace_movements"
}

// SignedQuantity the net effect a movement has on its item's quantity
// once completed. Transfers relocate stock without changing quantity.
func (m *Movement) SignedQuantity() float64 {
	switch m.Type {
	case MovementTypeIn, MovementTypeProduction:
		return m.Quantity
	case MovementTypeOut, MovementTypeConsumption:
		return -m.Quantity
	case MovementTypeAdjustment:
		return m.Quantity // signed as recorded
	default: // transfer
		return 0
	}
}
