package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
)

func TestReceiveCreatesItemAndOpeningMovement(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{
		Code:     "FLW-001",
		Name:     "OG Kush Flower",
		Quantity: 100,
		Location: "vault-1",
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if item.Quantity != 100 {
		t.Errorf("Expected quantity 100, got %v", item.Quantity)
	}
	if item.Status != entity.ItemStatusAvailable {
		t.Errorf("Expected status available, got %v", item.Status)
	}
	if item.BatchNumber == "" {
		t.Error("Expected a generated batch number")
	}

	// The opening receipt movement must reconcile with the stored quantity.
	moves, err := svcs.Movement.Ledger(ctx, actor.OrgID, item.ID)
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("Expected 1 ledger entry, got %d", len(moves))
	}
	if moves[0].Type != entity.MovementTypeIn || moves[0].Status != entity.MovementStatusCompleted {
		t.Errorf("Expected completed in movement, got %s/%s", moves[0].Type, moves[0].Status)
	}

	count, err := svcs.Audit.CountByEntity(ctx, actor.OrgID, "inventory_item", item.ID)
	if err != nil {
		t.Fatalf("CountByEntity: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 audit entry for the item, got %d", count)
	}
}

func TestReceiveRejectsDuplicateCode(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	req := ReceiveRequest{Code: "FLW-DUP", Name: "Flower", Quantity: 10}
	if _, err := svcs.Inventory.Receive(ctx, actor, req); err != nil {
		t.Fatalf("first Receive: %v", err)
	}
	_, err := svcs.Inventory.Receive(ctx, actor, req)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for duplicate code, got %v", err)
	}
}

func TestConcurrentReceiveDuplicateCode(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	// Simultaneous receives of the same code can all pass the lookup and
	// collide on the unique (organization_id, code) index instead. Losing
	// that race reads the same as failing the lookup.
	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svcs.Inventory.Receive(ctx, actor, ReceiveRequest{
				Code:     "FLW-RACE",
				Name:     "Flower",
				Quantity: 10,
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Expected ErrValidation for duplicate code, got %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("Expected exactly 1 successful receive, got %d", successes)
	}
}

func TestAdjustQuantity(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "OIL-001", Name: "CBD Oil", Quantity: 100})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	mv, err := svcs.Inventory.AdjustQuantity(ctx, actor, item.ID, -30, "spillage during transfer")
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if mv.Type != entity.MovementTypeAdjustment || mv.Quantity != -30 {
		t.Errorf("Expected adjustment movement of -30, got %s/%v", mv.Type, mv.Quantity)
	}

	got, err := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != 70 {
		t.Errorf("Expected quantity 70 after adjustment, got %v", got.Quantity)
	}

	// An adjustment that would leave negative stock must be rejected and
	// must not change the stored quantity.
	_, err = svcs.Inventory.AdjustQuantity(ctx, actor, item.ID, -100, "bad count")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
	var unchanged entity.InventoryItem
	if err := db.Where("id = ?", item.ID).First(&unchanged).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if unchanged.Quantity != 70 {
		t.Errorf("Expected quantity still 70 after rejected adjustment, got %v", unchanged.Quantity)
	}
}

func TestQuantityReconcilesWithLedger(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-REC", Name: "Flower", Quantity: 100})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if _, err := svcs.Inventory.AdjustQuantity(ctx, actor, item.ID, -15, "drying loss"); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if _, err := svcs.Inventory.AdjustQuantity(ctx, actor, item.ID, 5, "recount"); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}

	var net float64
	err = db.Raw(`SELECT COALESCE(SUM(CASE type
			WHEN 'in' THEN quantity
			WHEN 'production' THEN quantity
			WHEN 'out' THEN -quantity
			WHEN 'consumption' THEN -quantity
			WHEN 'adjustment' THEN quantity
			ELSE 0 END), 0)
		FROM trace_movements
		WHERE inventory_item_id = ? AND status IN ('completed', 'documented')`, item.ID).Scan(&net).Error
	if err != nil {
		t.Fatalf("net query: %v", err)
	}

	got, err := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != net {
		t.Errorf("Quantity %v does not reconcile with completed ledger net %v", got.Quantity, net)
	}
	if got.Quantity != 90 {
		t.Errorf("Expected quantity 90, got %v", got.Quantity)
	}
}

func TestItemStatusTransitions(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleInventoryManager)
	ctx := context.Background()

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "FLW-ST", Name: "Flower", Quantity: 10})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	got, err := svcs.Inventory.TransitionStatus(ctx, actor, item.ID, entity.ItemStatusQuarantine)
	if err != nil {
		t.Fatalf("TransitionStatus to quarantine: %v", err)
	}
	if got.Status != entity.ItemStatusQuarantine {
		t.Errorf("Expected quarantine, got %v", got.Status)
	}

	// Quarantined stock cannot go straight back to reserved.
	_, err = svcs.Inventory.TransitionStatus(ctx, actor, item.ID, entity.ItemStatusReserved)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition, got %v", err)
	}

	if _, err := svcs.Inventory.TransitionStatus(ctx, actor, item.ID, entity.ItemStatusApproved); err != nil {
		t.Fatalf("TransitionStatus to approved: %v", err)
	}
}
