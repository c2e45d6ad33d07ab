package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
)

func TestProductLifecycle(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleOrgAdmin)
	ctx := context.Background()

	p, err := svcs.Product.Create(ctx, actor, ProductRequest{
		SKU:   "SKU-TINC",
		Name:  "CBD Tincture 30ml",
		Price: "49.90",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != entity.ProductStatusActive {
		t.Errorf("Expected active, got %v", p.Status)
	}
	if p.Price.String() != "49.9" {
		t.Errorf("Expected price 49.9, got %v", p.Price)
	}

	// SKU is unique per organization.
	_, err = svcs.Product.Create(ctx, actor, ProductRequest{SKU: "SKU-TINC", Name: "Duplicate"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for duplicate SKU, got %v", err)
	}

	updated, err := svcs.Product.Update(ctx, actor, p.ID, ProductRequest{
		SKU:   "SKU-TINC",
		Name:  "CBD Tincture 30ml Full Spectrum",
		Price: "54.90",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "CBD Tincture 30ml Full Spectrum" {
		t.Errorf("Expected updated name, got %v", updated.Name)
	}

	deactivated, err := svcs.Product.Deactivate(ctx, actor, p.ID)
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if deactivated.Status != entity.ProductStatusInactive {
		t.Errorf("Expected inactive, got %v", deactivated.Status)
	}
	if _, err := svcs.Product.Deactivate(ctx, actor, p.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition deactivating twice, got %v", err)
	}
}

func TestProductRejectsNegativePrice(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleOrgAdmin)

	_, err := svcs.Product.Create(context.Background(), actor, ProductRequest{
		SKU:   "SKU-NEG",
		Name:  "Bad Price",
		Price: "-5",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for negative price, got %v", err)
	}
}
