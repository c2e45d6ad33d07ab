package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisposalReason regulated write-off reasons
const (
	DisposalReasonExpired      = "expired"
	DisposalReasonDamaged      = "damaged"
	DisposalReasonContaminated = "contaminated"
	DisposalReasonRecalled     = "recalled"
	DisposalReasonQualityFail  = "quality_fail"
	DisposalReasonOther        = "other"
)

// DisposalStatus state machine: pending→approved→completed|documented,
// pending|approved→canceled. No path skips approved en route to completed.
const (
	DisposalStatusPending    = "pending"
	DisposalStatusApproved   = "approved"
	DisposalStatusCompleted  = "completed"
	DisposalStatusDocumented = "documented"
	DisposalStatusCanceled   = "canceled"
)

// Disposal a regulated destruction/write-off of InventoryItem stock
type Disposal struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID  string          `json:"organization_id" gorm:"size:32;not null;index"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:32;not null;index"`
	Quantity        float64         `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit            string          `json:"unit" gorm:"size:20;not null;default:g"`
	Reason          string          `json:"reason" gorm:"size:20;not null"`
	Method          string          `json:"method" gorm:"size:100"` // incineration, composting, ...
	Status          string          `json:"status" gorm:"size:20;not null;default:pending"`
	Location        string          `json:"location" gorm:"size:100"`
	Certificate     string          `json:"certificate" gorm:"size:255"` // object storage key
	Photos          JSONBArray      `json:"photos" gorm:"type:jsonb"`    // [{key, url, taken_at}]
	Cost            decimal.Decimal `json:"cost" gorm:"type:decimal(12,2);default:0"`
	RequestedBy     string          `json:"requested_by" gorm:"size:32;not null"`
	ApprovedBy      *string         `json:"approved_by" gorm:"size:32"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	ProcessedBy     string          `json:"processed_by" gorm:"size:32"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	MovementID      *string         `json:"movement_id" gorm:"size:32"`
	Notes           string          `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Item     *InventoryItem `json:"item,omitempty" gorm:"foreignKey:InventoryItemID"`
	Movement *Movement      `json:"movement,omitempty" gorm:"foreignKey:MovementID"`
}

func (Disposal) TableName() string {
	return "trace_disposals"
}
