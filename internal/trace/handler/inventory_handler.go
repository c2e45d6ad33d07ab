package handler

import (
	"strconv"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// List GET /inventory
func (h *InventoryHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	params := repository.InventoryListParams{
		OrgID:    GetOrgID(c),
		ItemType: c.Query("item_type"),
		Status:   c.Query("status"),
		Location: c.Query("location"),
		Batch:    c.Query("batch"),
		Keyword:  c.Query("keyword"),
		Page:     page,
		Size:     size,
	}
	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "pagination": NewPagination(page, size, total)})
}

// Get GET /inventory/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// Receive POST /inventory
func (h *InventoryHandler) Receive(c *gin.Context) {
	var req service.ReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item, err := h.svc.Receive(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, item)
}

type adjustRequest struct {
	Delta  float64 `json:"delta" binding:"required"`
	Reason string  `json:"reason" binding:"required"`
}

// Adjust POST /inventory/:id/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.svc.AdjustQuantity(c.Request.Context(), GetActor(c), c.Param("id"), req.Delta, req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// TransitionStatus POST /inventory/:id/status
func (h *InventoryHandler) TransitionStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item, err := h.svc.TransitionStatus(c.Request.Context(), GetActor(c), c.Param("id"), req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// LowStock GET /inventory/alerts/low-stock
func (h *InventoryHandler) LowStock(c *gin.Context) {
	items, err := h.svc.LowStock(c.Request.Context(), GetOrgID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Expiring GET /inventory/alerts/expiring?days=30
func (h *InventoryHandler) Expiring(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 {
			days = v
		}
	}
	items, err := h.svc.Expiring(c.Request.Context(), GetOrgID(c), time.Duration(days)*24*time.Hour)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}
