package handler

import (
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/gin-gonic/gin"
)

type ProductionHandler struct {
	svc *service.ProductionService
}

func NewProductionHandler(svc *service.ProductionService) *ProductionHandler {
	return &ProductionHandler{svc: svc}
}

// List GET /production/orders
func (h *ProductionHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	params := repository.OrderListParams{
		OrgID:     GetOrgID(c),
		ProductID: c.Query("product_id"),
		Status:    c.Query("status"),
		Batch:     c.Query("batch"),
		Keyword:   c.Query("keyword"),
		Page:      page,
		Size:      size,
	}
	orders, total, err := h.svc.ListOrders(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": orders, "pagination": NewPagination(page, size, total)})
}

// Get GET /production/orders/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, order)
}

// Create POST /production/orders
func (h *ProductionHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.CreateOrder(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, order)
}

// Transition POST /production/orders/:id/status
func (h *ProductionHandler) Transition(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.TransitionOrder(c.Request.Context(), GetActor(c), c.Param("id"), req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, order)
}

// AllocateMaterial POST /production/orders/:id/materials
func (h *ProductionHandler) AllocateMaterial(c *gin.Context) {
	var req service.AllocateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	material, err := h.svc.AllocateMaterial(c.Request.Context(), GetActor(c), c.Param("id"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, material)
}

// ListMaterials GET /production/orders/:id/materials
func (h *ProductionHandler) ListMaterials(c *gin.Context) {
	materials, err := h.svc.ListMaterials(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": materials})
}

// AdvanceStep POST /production/orders/:id/steps/:stepId/advance
func (h *ProductionHandler) AdvanceStep(c *gin.Context) {
	order, err := h.svc.AdvanceStep(c.Request.Context(), GetActor(c), c.Param("id"), c.Param("stepId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, order)
}
