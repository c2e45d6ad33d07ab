package handler

import (
	"fmt"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/gin-gonic/gin"
)

type MovementHandler struct {
	svc *service.MovementService
}

func NewMovementHandler(svc *service.MovementService) *MovementHandler {
	return &MovementHandler{svc: svc}
}

func (h *MovementHandler) listParams(c *gin.Context) repository.MovementListParams {
	page, size := GetPagination(c)
	return repository.MovementListParams{
		OrgID:  GetOrgID(c),
		ItemID: c.Query("item_id"),
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Batch:  c.Query("batch"),
		Page:   page,
		Size:   size,
	}
}

// List GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	params := h.listParams(c)
	movements, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": movements, "pagination": NewPagination(params.Page, params.Size, total)})
}

// Get GET /movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	movement, err := h.svc.Get(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

// Ledger GET /inventory/:id/ledger
func (h *MovementHandler) Ledger(c *gin.Context) {
	movements, err := h.svc.Ledger(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": movements})
}

// Record POST /movements
func (h *MovementHandler) Record(c *gin.Context) {
	var req service.RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.svc.Record(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, movement)
}

// Approve POST /movements/:id/approve
func (h *MovementHandler) Approve(c *gin.Context) {
	movement, err := h.svc.Approve(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

// Complete POST /movements/:id/complete
func (h *MovementHandler) Complete(c *gin.Context) {
	movement, err := h.svc.Complete(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

// Document POST /movements/:id/document
func (h *MovementHandler) Document(c *gin.Context) {
	movement, err := h.svc.Document(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel POST /movements/:id/cancel
func (h *MovementHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.svc.Cancel(c.Request.Context(), GetActor(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, movement)
}

// Export GET /movements/export
func (h *MovementHandler) Export(c *gin.Context) {
	params := h.listParams(c)
	f, err := h.svc.Export(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	filename := fmt.Sprintf("movements_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write workbook: "+err.Error())
	}
}
