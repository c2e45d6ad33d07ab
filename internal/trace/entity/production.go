package entity

import (
	"time"
)

// OrderStatus production order lifecycle
const (
	OrderStatusPlanned    = "planned"
	OrderStatusInProgress = "in_progress"
	OrderStatusPaused     = "paused"
	OrderStatusCompleted  = "completed"
	OrderStatusCanceled   = "canceled"
)

// StepStatus production step lifecycle
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
)

// ProductionOrder a planned-to-completed manufacturing run of a Product
type ProductionOrder struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID string     `json:"organization_id" gorm:"size:32;not null;uniqueIndex:idx_prod_orders_org_code;index"`
	Code           string     `json:"code" gorm:"size:50;not null;uniqueIndex:idx_prod_orders_org_code"`
	ProductID      string     `json:"product_id" gorm:"size:32;not null;index"`
	Quantity       float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit           string     `json:"unit" gorm:"size:20;not null;default:g"`
	BatchNumber    string     `json:"batch_number" gorm:"size:50;index"`
	Status         string     `json:"status" gorm:"size:20;not null;default:planned"`
	Priority       int        `json:"priority" gorm:"default:0"` // 0=normal, 1=high, 2=urgent
	Progress       int        `json:"progress" gorm:"default:0"` // 0-100, derived from completed steps
	DueDate        *time.Time `json:"due_date"`
	CompletionDate *time.Time `json:"completion_date"`
	ResponsibleID  string     `json:"responsible_id" gorm:"size:32"`
	Notes          string     `json:"notes" gorm:"type:text"`
	CreatedBy      string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Steps     []ProductionStep     `json:"steps,omitempty" gorm:"foreignKey:OrderID"`
	Materials []ProductionMaterial `json:"materials,omitempty" gorm:"foreignKey:OrderID"`
}

func (ProductionOrder) TableName() string {
	return "trace_production_orders"
}

// ProductionStep an ordered stage within a ProductionOrder
type ProductionStep struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID  string     `json:"organization_id" gorm:"size:32;not null;index"`
	OrderID         string     `json:"order_id" gorm:"size:32;not null;index"`
	Name            string     `json:"name" gorm:"size:200;not null"`
	Status          string     `json:"status" gorm:"size:20;not null;default:pending"`
	SortOrder       int        `json:"sort_order" gorm:"not null;default:0"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationMinutes int        `json:"duration_minutes" gorm:"default:0"`
	ResponsibleID   string     `json:"responsible_id" gorm:"size:32"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (ProductionStep) TableName() string {
	return "trace_production_steps"
}

// ProductionMaterial an allocation of one InventoryItem to a ProductionOrder.
// Allocated may only be true once the consumption Movement exists.
type ProductionMaterial struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID  string    `json:"organization_id" gorm:"size:32;not null;index"`
	OrderID         string    `json:"order_id" gorm:"size:32;not null;index"`
	InventoryItemID string    `json:"inventory_item_id" gorm:"size:32;not null;index"`
	Quantity        float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit            string    `json:"unit" gorm:"size:20;not null;default:g"`
	Allocated       bool      `json:"allocated" gorm:"not null;default:false"`
	MovementID      *string   `json:"movement_id" gorm:"size:32"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Item     *InventoryItem `json:"item,omitempty" gorm:"foreignKey:InventoryItemID"`
	Movement *Movement      `json:"movement,omitempty" gorm:"foreignKey:MovementID"`
}

func (ProductionMaterial) TableName() string {
	return "trace_production_materials"
}
