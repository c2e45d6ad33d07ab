package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/testutil"
	"gorm.io/gorm"
)

func seedOrderFixture(t *testing.T, svcs *Services, db *gorm.DB, actor Actor, itemQty float64) (*entity.ProductionOrder, *entity.InventoryItem) {
	t.Helper()
	ctx := context.Background()
	testutil.SeedTestProduct(t, db, "prod-001", "SKU-GUMMY", "CBD Gummies")

	item, err := svcs.Inventory.Receive(ctx, actor, ReceiveRequest{Code: "RAW-001", Name: "Distillate", Quantity: itemQty})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	order, err := svcs.Production.CreateOrder(ctx, actor, CreateOrderRequest{
		ProductID: "prod-001",
		Quantity:  50,
		Steps: []CreateStepRequest{
			{Name: "Mixing"},
			{Name: "Molding"},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order, item
}

func TestAllocateAndConsumeMaterials(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, item := seedOrderFixture(t, svcs, db, actor, 100)

	if _, err := svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
		InventoryItemID: item.ID,
		Quantity:        40,
	}); err != nil {
		t.Fatalf("AllocateMaterial: %v", err)
	}

	// Allocation reserves without moving stock.
	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 100 || got.ReservedQty != 40 {
		t.Fatalf("Expected qty 100 / reserved 40 after allocation, got %v / %v", got.Quantity, got.ReservedQty)
	}
	if got.AvailableQty() != 60 {
		t.Errorf("Expected available 60, got %v", got.AvailableQty())
	}

	// Starting the order consumes the allocation.
	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	got, _ = svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 60 || got.ReservedQty != 0 {
		t.Fatalf("Expected qty 60 / reserved 0 after start, got %v / %v", got.Quantity, got.ReservedQty)
	}

	materials, err := svcs.Production.ListMaterials(ctx, actor.OrgID, order.ID)
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("Expected 1 material, got %d", len(materials))
	}
	if !materials[0].Allocated || materials[0].MovementID == nil {
		t.Error("Expected material marked allocated with its consumption movement linked")
	}

	var consumptions int64
	db.Model(&entity.Movement{}).
		Where("inventory_item_id = ? AND type = ? AND reference_id = ?", item.ID, entity.MovementTypeConsumption, order.ID).
		Count(&consumptions)
	if consumptions != 1 {
		t.Errorf("Expected exactly 1 consumption movement, got %d", consumptions)
	}
}

func TestConsumeAllocationsIsIdempotent(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, item := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
		InventoryItemID: item.ID,
		Quantity:        40,
	}); err != nil {
		t.Fatalf("AllocateMaterial: %v", err)
	}
	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	// A second pass sees no unconsumed materials and must change nothing.
	loaded, err := svcs.Production.GetOrder(ctx, actor.OrgID, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return svcs.Production.consumeAllocations(tx, actor, loaded)
	})
	if err != nil {
		t.Fatalf("second consumeAllocations: %v", err)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 60 {
		t.Errorf("Expected quantity still 60, got %v", got.Quantity)
	}
	var consumptions int64
	db.Model(&entity.Movement{}).
		Where("inventory_item_id = ? AND type = ?", item.ID, entity.MovementTypeConsumption).
		Count(&consumptions)
	if consumptions != 1 {
		t.Errorf("Expected exactly 1 consumption movement, got %d", consumptions)
	}
}

func TestConcurrentAllocationRace(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, item := seedOrderFixture(t, svcs, db, actor, 100)

	// Two allocations of 60 against 100 available: under the row lock
	// exactly one must fail with insufficient stock.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
				InventoryItemID: item.ID,
				Quantity:        60,
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, ErrInsufficientStock) {
				t.Fatalf("Expected ErrInsufficientStock, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("Expected exactly 1 failed allocation, got %d", failures)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.ReservedQty != 60 {
		t.Errorf("Expected reserved 60 after the race, got %v", got.ReservedQty)
	}
}

func TestAdvanceStepCompletesOrderAndBooksOutput(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, _ := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	loaded, err := svcs.Production.GetOrder(ctx, actor.OrgID, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(loaded.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(loaded.Steps))
	}

	// Each step advances pending -> in_progress -> completed.
	for _, step := range loaded.Steps {
		if _, err := svcs.Production.AdvanceStep(ctx, actor, order.ID, step.ID); err != nil {
			t.Fatalf("AdvanceStep start %s: %v", step.Name, err)
		}
		loaded, err = svcs.Production.AdvanceStep(ctx, actor, order.ID, step.ID)
		if err != nil {
			t.Fatalf("AdvanceStep finish %s: %v", step.Name, err)
		}
	}

	if loaded.Status != entity.OrderStatusCompleted {
		t.Errorf("Expected completed order, got %v", loaded.Status)
	}
	if loaded.Progress != 100 {
		t.Errorf("Expected progress 100, got %v", loaded.Progress)
	}
	if loaded.CompletionDate == nil {
		t.Error("Expected a completion date")
	}

	// The run's yield lands in stock as a finished item with a production
	// movement under the order's batch.
	var output entity.InventoryItem
	if err := db.Where("code = ?", "SKU-GUMMY-"+order.BatchNumber).First(&output).Error; err != nil {
		t.Fatalf("load output item: %v", err)
	}
	if output.ItemType != entity.ItemTypeFinished || output.Quantity != 50 {
		t.Errorf("Expected finished item of 50, got %s/%v", output.ItemType, output.Quantity)
	}
	var produced int64
	db.Model(&entity.Movement{}).
		Where("inventory_item_id = ? AND type = ? AND status = ?", output.ID, entity.MovementTypeProduction, entity.MovementStatusCompleted).
		Count(&produced)
	if produced != 1 {
		t.Errorf("Expected 1 production movement, got %d", produced)
	}
}

func TestConcurrentAdvanceStepsCompleteOrder(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, _ := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}
	loaded, err := svcs.Production.GetOrder(ctx, actor.OrgID, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(loaded.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(loaded.Steps))
	}

	// Bring both steps to in_progress, then finish them concurrently.
	// The order row lock serializes the advances, so whichever commits
	// second sees both steps completed and must close the order.
	for _, step := range loaded.Steps {
		if _, err := svcs.Production.AdvanceStep(ctx, actor, order.ID, step.ID); err != nil {
			t.Fatalf("AdvanceStep start %s: %v", step.Name, err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(loaded.Steps))
	for i, step := range loaded.Steps {
		wg.Add(1)
		go func(i int, stepID string) {
			defer wg.Done()
			_, errs[i] = svcs.Production.AdvanceStep(ctx, actor, order.ID, stepID)
		}(i, step.ID)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("concurrent AdvanceStep: %v", err)
		}
	}

	got, err := svcs.Production.GetOrder(ctx, actor.OrgID, order.ID)
	if err != nil {
		t.Fatalf("GetOrder after race: %v", err)
	}
	if got.Status != entity.OrderStatusCompleted {
		t.Errorf("Expected completed order after concurrent final advances, got %v", got.Status)
	}
	if got.Progress != 100 {
		t.Errorf("Expected progress 100, got %v", got.Progress)
	}
	if got.CompletionDate == nil {
		t.Error("Expected a completion date")
	}
	var produced int64
	db.Model(&entity.Movement{}).
		Where("type = ? AND reference_id = ?", entity.MovementTypeProduction, order.ID).
		Count(&produced)
	if produced != 1 {
		t.Errorf("Expected exactly 1 production movement, got %d", produced)
	}
}

func TestConcurrentStartConsumesOnce(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, item := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
		InventoryItemID: item.ID,
		Quantity:        40,
	}); err != nil {
		t.Fatalf("AllocateMaterial: %v", err)
	}

	// Two simultaneous starts: the order lock lets only one through,
	// the other sees in_progress and gets rejected.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("Expected exactly 1 rejected start, got %d", failures)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 60 || got.ReservedQty != 0 {
		t.Errorf("Expected qty 60 / reserved 0 after the race, got %v / %v", got.Quantity, got.ReservedQty)
	}
	var consumptions int64
	db.Model(&entity.Movement{}).
		Where("inventory_item_id = ? AND type = ?", item.ID, entity.MovementTypeConsumption).
		Count(&consumptions)
	if consumptions != 1 {
		t.Errorf("Expected exactly 1 consumption movement, got %d", consumptions)
	}
}

func TestOrderCannotCompleteDirectly(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, _ := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusInProgress); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	_, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusCompleted)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition for direct completion, got %v", err)
	}
}

func TestCancelReleasesReservations(t *testing.T) {
	svcs, db := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	order, item := seedOrderFixture(t, svcs, db, actor, 100)
	if _, err := svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
		InventoryItemID: item.ID,
		Quantity:        30,
	}); err != nil {
		t.Fatalf("AllocateMaterial: %v", err)
	}

	if _, err := svcs.Production.TransitionOrder(ctx, actor, order.ID, entity.OrderStatusCanceled); err != nil {
		t.Fatalf("TransitionOrder cancel: %v", err)
	}

	got, _ := svcs.Inventory.Get(ctx, actor.OrgID, item.ID)
	if got.Quantity != 100 || got.ReservedQty != 0 {
		t.Errorf("Expected qty 100 / reserved 0 after cancel, got %v / %v", got.Quantity, got.ReservedQty)
	}

	// Allocations are locked to planned orders.
	_, err := svcs.Production.AllocateMaterial(ctx, actor, order.ID, AllocateMaterialRequest{
		InventoryItemID: item.ID,
		Quantity:        10,
	})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition allocating to canceled order, got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svcs, _ := newTestServices(t)
	actor := testActor(RoleProductionLead)
	ctx := context.Background()

	_, err := svcs.Production.CreateOrder(ctx, actor, CreateOrderRequest{
		ProductID: "missing-product",
		Quantity:  10,
		Steps:     []CreateStepRequest{{Name: "Mixing"}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown product, got %v", err)
	}
}
