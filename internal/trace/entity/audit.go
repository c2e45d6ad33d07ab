package entity

import "time"

// Audit categories group entries for filtering in the transparency portal.
const (
	AuditCategoryInventory  = "inventory"
	AuditCategoryMovement   = "movement"
	AuditCategoryProduction = "production"
	AuditCategoryDisposal   = "disposal"
	AuditCategoryProduct    = "product"
)

// AuditTrail immutable who-did-what-when record. Append-only: rows are
// never updated or deleted, and one row exists per committed mutation.
type AuditTrail struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID string     `json:"organization_id" gorm:"size:32;not null;index:idx_audit_org_time"`
	Timestamp      time.Time  `json:"timestamp" gorm:"not null;index:idx_audit_org_time"`
	Category       string     `json:"category" gorm:"size:20;not null"`
	EntityType     string     `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"`
	EntityID       string     `json:"entity_id" gorm:"size:32;not null;index:idx_audit_entity"`
	EntityName     string     `json:"entity_name" gorm:"size:200"`
	Action         string     `json:"action" gorm:"size:50;not null"` // create/status_change/adjust/approve/complete/...
	Details        string     `json:"details" gorm:"type:text"`
	UserID         string     `json:"user_id" gorm:"size:32;not null"`
	UserName       string     `json:"user_name" gorm:"size:100"`
	UserIP         string     `json:"user_ip" gorm:"size:45"`
	Changes        JSONB      `json:"changes" gorm:"type:jsonb"`     // {field: {from, to}}
	RelatedIDs     JSONBArray `json:"related_ids" gorm:"type:jsonb"` // ids touched alongside the entity
	BatchNumber    string     `json:"batch_number" gorm:"size:50;index"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (AuditTrail) TableName() string {
	return "trace_audit_trail"
}
