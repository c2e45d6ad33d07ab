package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories traceability repository set
type Repositories struct {
	Inventory  *InventoryRepository
	Movement   *MovementRepository
	Production *ProductionRepository
	Disposal   *DisposalRepository
	Audit      *AuditRepository
	Product    *ProductRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Inventory:  NewInventoryRepository(db),
		Movement:   NewMovementRepository(db),
		Production: NewProductionRepository(db),
		Disposal:   NewDisposalRepository(db),
		Audit:      NewAuditRepository(db),
		Product:    NewProductRepository(db),
	}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
