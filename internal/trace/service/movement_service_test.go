package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
)

func TestMovementLifecycle(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-MV", Name: "Flower", Quantity: 100})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	mv, err := svcs.Movement.Record(ctx, actor, RecordMovementRequest{
		InventoryItemID: item.ID,
		Type:            entity.MovementTypeOut,
		Quantity:        30,
		Reason:          "dispensary shipment",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if mv.Status != entity.MovementStatusPending {
		t.Fatalf("Expected pending, got %v", mv.Status)
	}

	// Pending movements change no stock.
	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 100 {
		t.Errorf("Expected 100 before completion, got %v", got.Quantity)
	}

	// Completing straight from pending is not allowed.
	if _, err := svcs.Movement.Complete(ctx, actor, mv.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition completing pending movement, got %v", err)
	}

	if _, err := svcs.Movement.Approve(ctx, actor, mv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	completed, err := svcs.Movement.Complete(ctx, actor, mv.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.ProcessedAt == nil || completed.ProcessedBy != actor.UserID {
		t.Error("Expected processed stamp on completed movement")
	}

	got, _ = svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 70 {
		t.Errorf("Expected 70 after out of 30, got %v", got.Quantity)
	}

	if _, err := svcs.Movement.Document(ctx, actor, mv.ID); err != nil {
		t.Fatalf("Document: %v", err)
	}
	// Documented movements are immutable.
	if _, err := svcs.Movement.Cancel(ctx, actor, mv.ID, ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition canceling documented movement, got %v", err)
	}
}

func TestCompleteRejectsInsufficientStock(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-NS", Name: "Flower", Quantity: 20})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	mv, err := svcs.Movement.Record(ctx, actor, RecordMovementRequest{
		InventoryItemID: item.ID,
		Type:            entity.MovementTypeOut,
		Quantity:        50,
		Reason:          "oversized shipment",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := svcs.Movement.Approve(ctx, actor, mv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	_, err = svcs.Movement.Complete(ctx, actor, mv.ID)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 20 {
		t.Errorf("Expected quantity unchanged at 20, got %v", got.Quantity)
	}
}

func TestTransferRelocatesWithoutQuantityChange(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-TR", Name: "Flower", Quantity: 40, Location: "vault-1"})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	mv, err := svcs.Movement.Record(ctx, actor, RecordMovementRequest{
		InventoryItemID: item.ID,
		Type:            entity.MovementTypeTransfer,
		Quantity:        40,
		Origin:          "vault-1",
		Destination:     "vault-2",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := svcs.Movement.Approve(ctx, actor, mv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svcs.Movement.Complete(ctx, actor, mv.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 40 {
		t.Errorf("Expected quantity unchanged at 40, got %v", got.Quantity)
	}
	if got.Location != "vault-2" {
		t.Errorf("Expected location vault-2, got %v", got.Location)
	}
}

func TestRecordValidation(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-VAL", Name: "Flower", Quantity: 10})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	cases := []struct {
		name string
		req  RecordMovementRequest
	}{
		{"unknown type", RecordMovementRequest{InventoryItemID: item.ID, Type: "teleport", Quantity: 1}},
		{"non-positive quantity", RecordMovementRequest{InventoryItemID: item.ID, Type: entity.MovementTypeOut, Quantity: 0}},
		{"transfer without destination", RecordMovementRequest{InventoryItemID: item.ID, Type: entity.MovementTypeTransfer, Quantity: 1}},
	}
	for _, tc := range cases {
		if _, err := svcs.Movement.Record(ctx, actor, tc.req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}
