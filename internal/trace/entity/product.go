package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus catalog visibility
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
	ProductStatusDraft    = "draft"
)

// Product sellable/catalog representation of output. Commercial metadata
// only; the physical traceability chain references it by ProductID.
type Product struct {
	ID             string          `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID string          `json:"organization_id" gorm:"size:32;not null;uniqueIndex:idx_products_org_sku;index"`
	SKU            string          `json:"sku" gorm:"size:50;not null;uniqueIndex:idx_products_org_sku"`
	Barcode        string          `json:"barcode" gorm:"size:50;index"`
	Name           string          `json:"name" gorm:"size:200;not null"`
	Description    string          `json:"description" gorm:"type:text"`
	Category       string          `json:"category" gorm:"size:50"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(12,2);default:0"`
	Cost           decimal.Decimal `json:"cost" gorm:"type:decimal(12,2);default:0"`
	TaxRate        decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);default:0"`
	WeightGrams    float64         `json:"weight_grams" gorm:"type:decimal(10,2);default:0"`
	Dimensions     JSONB           `json:"dimensions" gorm:"type:jsonb"`   // {width_mm, height_mm, depth_mm}
	Ingredients    JSONBArray      `json:"ingredients" gorm:"type:jsonb"`  // [{name, percentage}]
	Cannabinoids   JSONB           `json:"cannabinoids" gorm:"type:jsonb"` // {thc_pct, cbd_pct, ...}
	Images         JSONBArray      `json:"images" gorm:"type:jsonb"`       // [{key, url, sort_order}]
	Documents      JSONBArray      `json:"documents" gorm:"type:jsonb"`    // [{key, name, url}]
	Status         string          `json:"status" gorm:"size:20;not null;default:active"`
	CreatedBy      string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "trace_products"
}
