package handler

import (
	"fmt"
	"time"

	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) listParams(c *gin.Context) repository.AuditListParams {
	page, size := GetPagination(c)
	params := repository.AuditListParams{
		OrgID:      GetOrgID(c),
		Category:   c.Query("category"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		UserID:     c.Query("user_id"),
		Batch:      c.Query("batch"),
		Page:       page,
		Size:       size,
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}
	return params
}

// List GET /audit
func (h *AuditHandler) List(c *gin.Context) {
	params := h.listParams(c)
	rows, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": rows, "pagination": NewPagination(params.Page, params.Size, total)})
}

// Export GET /audit/export
func (h *AuditHandler) Export(c *gin.Context) {
	params := h.listParams(c)
	f, err := h.svc.Export(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	filename := fmt.Sprintf("audit_trail_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write workbook: "+err.Error())
	}
}
