package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/cassianoaxe/endurancy/internal/trace/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupMovementTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	store, err := storage.New(storage.Config{})
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}
	repos := repository.NewRepositories(db)
	svcs := service.NewServices(repos, service.Deps{DB: db, Store: store})
	h := NewHandlers(svcs, nil, service.Deps{})

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	movements := api.Group("/movements")
	movements.GET("", h.Movement.List)
	movements.POST("", h.Movement.Record)
	movements.GET("/:id", h.Movement.Get)
	movements.POST("/:id/approve", h.Movement.Approve)
	movements.POST("/:id/complete", h.Movement.Complete)
	movements.POST("/:id/cancel", h.Movement.Cancel)

	return router, db
}

func TestMovementRecordApproveComplete(t *testing.T) {
	router, db := setupMovementTest(t)
	token := testutil.DefaultTestToken()
	item := testutil.SeedTestItem(t, db, "item-mv-001", "FLW-MV-1", 100)

	w := testutil.DoRequest(router, "POST", "/api/v1/movements", map[string]interface{}{
		"inventory_item_id": item.ID,
		"type":              "out",
		"quantity":          30,
		"reason":            "dispensary shipment",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	movement := resp["data"].(map[string]interface{})
	if movement["status"] != "pending" {
		t.Errorf("Expected pending movement, got %v", movement["status"])
	}
	id := movement["id"].(string)

	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/movements/%s/approve", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/movements/%s/complete", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	completed := resp["data"].(map[string]interface{})
	if completed["status"] != "completed" {
		t.Errorf("Expected completed movement, got %v", completed["status"])
	}

	var got entity.InventoryItem
	if err := db.Where("id = ?", item.ID).First(&got).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if got.Quantity != 70 {
		t.Errorf("Expected quantity 70 after completed out movement, got %v", got.Quantity)
	}
}

func TestMovementCompleteWithoutApproval(t *testing.T) {
	router, db := setupMovementTest(t)
	token := testutil.DefaultTestToken()
	item := testutil.SeedTestItem(t, db, "item-mv-002", "FLW-MV-2", 50)

	w := testutil.DoRequest(router, "POST", "/api/v1/movements", map[string]interface{}{
		"inventory_item_id": item.ID,
		"type":              "out",
		"quantity":          10,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	id := resp["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/movements/%s/complete", id), nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 completing a pending movement, got %d: %s", w.Code, w.Body.String())
	}
}
