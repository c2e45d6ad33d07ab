package handler

import (
	"net/http"
	"testing"

	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/cassianoaxe/endurancy/internal/trace/testutil"
	"github.com/gin-gonic/gin"
)

func setupInventoryTest(t *testing.T) *gin.Engine {
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

	inventory := api.Group("/inventory")
	inventory.GET("", h.Inventory.List)
	inventory.POST("", h.Inventory.Receive)
	inventory.GET("/:id", h.Inventory.Get)
	inventory.POST("/:id/adjust", h.Inventory.Adjust)
	inventory.POST("/:id/status", h.Inventory.TransitionStatus)
	inventory.GET("/:id/ledger", h.Movement.Ledger)

	return router
}

func receiveItem(t *testing.T, router *gin.Engine, token, code string, qty float64) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/inventory", map[string]interface{}{
		"code":     code,
		"name":     "Test Flower",
		"quantity": qty,
		"location": "vault-1",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	return resp["data"].(map[string]interface{})
}

func TestInventoryReceive(t *testing.T) {
	router := setupInventoryTest(t)
	token := testutil.DefaultTestToken()

	item := receiveItem(t, router, token, "FLW-API-1", 100)

	if item["id"] == nil || item["id"] == "" {
		t.Error("Expected non-empty id")
	}
	if item["quantity"].(float64) != 100 {
		t.Errorf("Expected quantity 100, got %v", item["quantity"])
	}
	if item["status"] != "available" {
		t.Errorf("Expected status available, got %v", item["status"])
	}
}

func TestInventoryRequiresAuth(t *testing.T) {
	router := setupInventoryTest(t)

	w := testutil.DoRequest(router, "GET", "/api/v1/inventory", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestInventoryAdjustAndLedger(t *testing.T) {
	router := setupInventoryTest(t)
	token := testutil.DefaultTestToken()

	item := receiveItem(t, router, token, "FLW-API-2", 100)
	itemID := item["id"].(string)

	w := testutil.DoRequest(router, "POST", "/api/v1/inventory/"+itemID+"/adjust",
		map[string]interface{}{"delta": -20, "reason": "drying loss"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/inventory/"+itemID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["quantity"].(float64) != 80 {
		t.Errorf("Expected quantity 80, got %v", data["quantity"])
	}

	// Receipt plus adjustment.
	w = testutil.DoRequest(router, "GET", "/api/v1/inventory/"+itemID+"/ledger", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	moves := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(moves) != 2 {
		t.Errorf("Expected 2 ledger entries, got %d", len(moves))
	}
}

func TestInventoryAdjustInsufficientStock(t *testing.T) {
	router := setupInventoryTest(t)
	token := testutil.DefaultTestToken()

	item := receiveItem(t, router, token, "FLW-API-3", 10)
	itemID := item["id"].(string)

	w := testutil.DoRequest(router, "POST", "/api/v1/inventory/"+itemID+"/adjust",
		map[string]interface{}{"delta": -50, "reason": "bad count"}, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 42200 {
		t.Errorf("Expected code 42200, got %v", resp["code"])
	}
}

func TestInventoryInvalidStatusTransition(t *testing.T) {
	router := setupInventoryTest(t)
	token := testutil.DefaultTestToken()

	item := receiveItem(t, router, token, "FLW-API-4", 10)
	itemID := item["id"].(string)

	// available -> approved skips quarantine.
	w := testutil.DoRequest(router, "POST", "/api/v1/inventory/"+itemID+"/status",
		map[string]interface{}{"status": "approved"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInventoryGetNotFound(t *testing.T) {
	router := setupInventoryTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "GET", "/api/v1/inventory/does-not-exist", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
