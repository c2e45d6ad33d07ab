package service

import (
	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/shared/whatsapp"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/sse"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services aggregates the traceability domain services.
type Services struct {
	Audit      *AuditService
	Inventory  *InventoryService
	Movement   *MovementService
	Production *ProductionService
	Disposal   *DisposalService
	Product    *ProductService
	Notifier   *Notifier
}

// Deps infrastructure handed in by main. Redis, object storage and the
// WhatsApp client may be nil; the services degrade gracefully.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Store    *storage.Store
	WhatsApp *whatsapp.Client
	ChatID   string
	Hub      *sse.Hub
	Logger   *zap.Logger
}

func NewServices(repos *repository.Repositories, deps Deps) *Services {
	audit := NewAuditService(repos.Audit, deps.Hub)
	notifier := NewNotifier(deps.WhatsApp, deps.ChatID, deps.Logger)

	inventory := NewInventoryService(repos.Inventory, audit, deps.DB)
	inventory.SetNotifier(notifier)

	movement := NewMovementService(repos.Movement, repos.Inventory, audit, deps.DB)
	movement.SetNotifier(notifier)

	production := NewProductionService(repos.Production, repos.Inventory, repos.Product, audit, deps.DB)

	disposal := NewDisposalService(repos.Disposal, repos.Inventory, audit, deps.DB, deps.Store)
	disposal.SetNotifier(notifier)

	product := NewProductService(repos.Product, audit, deps.DB, deps.Redis, deps.Store)

	return &Services{
		Audit:      audit,
		Inventory:  inventory,
		Movement:   movement,
		Production: production,
		Disposal:   disposal,
		Product:    product,
		Notifier:   notifier,
	}
}
