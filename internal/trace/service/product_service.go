package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const productCacheTTL = 5 * time.Minute

type ProductService struct {
	repo  *repository.ProductRepository
	audit *AuditService
	db    *gorm.DB
	rdb   *redis.Client
	store *storage.Store
}

func NewProductService(repo *repository.ProductRepository, audit *AuditService, db *gorm.DB, rdb *redis.Client, store *storage.Store) *ProductService {
	return &ProductService{repo: repo, audit: audit, db: db, rdb: rdb, store: store}
}

func productCacheKey(orgID, id string) string {
	return fmt.Sprintf("product:%s:%s", orgID, id)
}

// Get reads through the cache. Cache misses and redis failures both
// fall back to postgres.
func (s *ProductService) Get(ctx context.Context, orgID, id string) (*entity.Product, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, productCacheKey(orgID, id)).Result(); err == nil {
			var p entity.Product
			if json.Unmarshal([]byte(raw), &p) == nil {
				return &p, nil
			}
		}
	}

	p, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		if raw, err := json.Marshal(p); err == nil {
			s.rdb.Set(ctx, productCacheKey(orgID, id), raw, productCacheTTL)
		}
	}
	return p, nil
}

func (s *ProductService) invalidate(ctx context.Context, orgID, id string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, productCacheKey(orgID, id))
	}
}

func (s *ProductService) List(ctx context.Context, params repository.ProductListParams) ([]entity.Product, int64, error) {
	return s.repo.List(ctx, params)
}

type ProductRequest struct {
	SKU          string            `json:"sku" binding:"required"`
	Barcode      string            `json:"barcode"`
	Name         string            `json:"name" binding:"required"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Price        string            `json:"price"`
	Cost         string            `json:"cost"`
	TaxRate      string            `json:"tax_rate"`
	WeightGrams  float64           `json:"weight_grams"`
	Dimensions   entity.JSONB      `json:"dimensions"`
	Ingredients  entity.JSONBArray `json:"ingredients"`
	Cannabinoids entity.JSONB      `json:"cannabinoids"`
	Status       string            `json:"status"`
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid %s %q", ErrValidation, field, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	}
	return d, nil
}

func (s *ProductService) Create(ctx context.Context, actor Actor, req ProductRequest) (*entity.Product, error) {
	price, err := parseMoney("price", req.Price)
	if err != nil {
		return nil, err
	}
	cost, err := parseMoney("cost", req.Cost)
	if err != nil {
		return nil, err
	}
	taxRate, err := parseMoney("tax_rate", req.TaxRate)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = entity.ProductStatusActive
	}

	product := &entity.Product{
		ID:             uuid.New().String()[:32],
		OrganizationID: actor.OrgID,
		SKU:            req.SKU,
		Barcode:        req.Barcode,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Price:          price,
		Cost:           cost,
		TaxRate:        taxRate,
		WeightGrams:    req.WeightGrams,
		Dimensions:     req.Dimensions,
		Ingredients:    req.Ingredients,
		Cannabinoids:   req.Cannabinoids,
		Status:         status,
		CreatedBy:      actor.UserID,
	}

	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.Product
		findErr := tx.Where("organization_id = ? AND sku = ?", actor.OrgID, req.SKU).First(&existing).Error
		if findErr == nil {
			return fmt.Errorf("%w: SKU %q already exists", ErrValidation, req.SKU)
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ErrPersistence, findErr)
		}
		if err := tx.Create(product).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: SKU %q already exists", ErrValidation, req.SKU)
			}
			return fmt.Errorf("%w: create product: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryProduct, "product", product.ID, product.Name, "create",
			fmt.Sprintf("product %s registered", req.SKU))
		return s.audit.append(tx, row)
	})
	if err != nil {
		return nil, err
	}
	s.audit.notify(row)
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, actor Actor, productID string, req ProductRequest) (*entity.Product, error) {
	price, err := parseMoney("price", req.Price)
	if err != nil {
		return nil, err
	}
	cost, err := parseMoney("cost", req.Cost)
	if err != nil {
		return nil, err
	}
	taxRate, err := parseMoney("tax_rate", req.TaxRate)
	if err != nil {
		return nil, err
	}

	var product *entity.Product
	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p entity.Product
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, productID).First(&p).Error; err != nil {
			return translatePersistence(err)
		}

		if req.SKU != p.SKU {
			var existing entity.Product
			findErr := tx.Where("organization_id = ? AND sku = ? AND id <> ?", actor.OrgID, req.SKU, p.ID).First(&existing).Error
			if findErr == nil {
				return fmt.Errorf("%w: SKU %q already exists", ErrValidation, req.SKU)
			}
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", ErrPersistence, findErr)
			}
		}

		changes := entity.JSONB{}
		if p.SKU != req.SKU {
			changes["sku"] = map[string]interface{}{"from": p.SKU, "to": req.SKU}
		}
		if p.Name != req.Name {
			changes["name"] = map[string]interface{}{"from": p.Name, "to": req.Name}
		}
		if !p.Price.Equal(price) {
			changes["price"] = map[string]interface{}{"from": p.Price.String(), "to": price.String()}
		}
		if req.Status != "" && p.Status != req.Status {
			changes["status"] = map[string]interface{}{"from": p.Status, "to": req.Status}
		}

		p.SKU = req.SKU
		p.Barcode = req.Barcode
		p.Name = req.Name
		p.Description = req.Description
		p.Category = req.Category
		p.Price = price
		p.Cost = cost
		p.TaxRate = taxRate
		p.WeightGrams = req.WeightGrams
		if req.Dimensions != nil {
			p.Dimensions = req.Dimensions
		}
		if req.Ingredients != nil {
			p.Ingredients = req.Ingredients
		}
		if req.Cannabinoids != nil {
			p.Cannabinoids = req.Cannabinoids
		}
		if req.Status != "" {
			p.Status = req.Status
		}
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("%w: update product: %v", ErrPersistence, err)
		}

		row = entry(actor, entity.AuditCategoryProduct, "product", p.ID, p.Name, "update", "")
		row.Changes = changes
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.OrgID, productID)
	s.audit.notify(row)
	return product, nil
}

// Deactivate soft-deletes a product from the catalog. Traceability rows
// keep referencing it by ID.
func (s *ProductService) Deactivate(ctx context.Context, actor Actor, productID string) (*entity.Product, error) {
	var product *entity.Product
	var row *entity.AuditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p entity.Product
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, productID).First(&p).Error; err != nil {
			return translatePersistence(err)
		}
		if p.Status == entity.ProductStatusInactive {
			return fmt.Errorf("%w: product already inactive", ErrInvalidStateTransition)
		}
		oldStatus := p.Status
		p.Status = entity.ProductStatusInactive
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("%w: deactivate product: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryProduct, "product", p.ID, p.Name, "status_change", "")
		row.Changes = entity.JSONB{"status": map[string]interface{}{"from": oldStatus, "to": entity.ProductStatusInactive}}
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.OrgID, productID)
	s.audit.notify(row)
	return product, nil
}

// AttachDocument stores a lab report or regulatory document for the
// product and records it in the Documents list.
func (s *ProductService) AttachDocument(ctx context.Context, actor Actor, productID, filename, contentType string, r io.Reader, size int64) (*entity.Product, error) {
	if s.store == nil || !s.store.Configured() {
		return nil, fmt.Errorf("%w: object storage is not configured", ErrValidation)
	}

	key, err := s.store.Put(ctx, actor.OrgID, "products", filename, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: store document: %v", ErrPersistence, err)
	}

	var product *entity.Product
	var row *entity.AuditTrail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p entity.Product
		if err := tx.Where("organization_id = ? AND id = ?", actor.OrgID, productID).First(&p).Error; err != nil {
			return translatePersistence(err)
		}
		p.Documents = append(p.Documents, map[string]interface{}{
			"key":  key,
			"name": filename,
		})
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("%w: attach document: %v", ErrPersistence, err)
		}
		row = entry(actor, entity.AuditCategoryProduct, "product", p.ID, p.Name, "attach_document", filename)
		if err := s.audit.append(tx, row); err != nil {
			return err
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.OrgID, productID)
	s.audit.notify(row)
	return product, nil
}
