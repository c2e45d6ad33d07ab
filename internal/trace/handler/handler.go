package handler

import (
	"errors"
	"strconv"

	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/cassianoaxe/endurancy/internal/trace/sse"
	"github.com/gin-gonic/gin"
)

// Handlers groups the traceability HTTP surface.
type Handlers struct {
	Inventory  *InventoryHandler
	Movement   *MovementHandler
	Production *ProductionHandler
	Disposal   *DisposalHandler
	Product    *ProductHandler
	Audit      *AuditHandler
	SSE        *SSEHandler
	WhatsApp   *WhatsAppHandler
}

func NewHandlers(svc *service.Services, hub *sse.Hub, deps service.Deps) *Handlers {
	return &Handlers{
		Inventory:  NewInventoryHandler(svc.Inventory),
		Movement:   NewMovementHandler(svc.Movement),
		Production: NewProductionHandler(svc.Production),
		Disposal:   NewDisposalHandler(svc.Disposal),
		Product:    NewProductHandler(svc.Product),
		Audit:      NewAuditHandler(svc.Audit),
		SSE:        NewSSEHandler(hub),
		WhatsApp:   NewWhatsAppHandler(deps.WhatsApp, deps.Logger),
	}
}

// Response standard envelope for every JSON endpoint
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination list page metadata
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func NewPagination(page, size int, total int64) *Pagination {
	pages := total / int64(size)
	if total%int64(size) > 0 {
		pages++
	}
	return &Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, 42200, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleError maps the service error taxonomy to HTTP responses.
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidStateTransition):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		UnprocessableEntity(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetActor builds the acting identity from the auth middleware context.
func GetActor(c *gin.Context) service.Actor {
	actor := service.Actor{IP: c.ClientIP()}
	if v, ok := c.Get("user_id"); ok {
		actor.UserID, _ = v.(string)
	}
	if v, ok := c.Get("user_name"); ok {
		actor.UserName, _ = v.(string)
	}
	if v, ok := c.Get("org_id"); ok {
		actor.OrgID, _ = v.(string)
	}
	if v, ok := c.Get("roles"); ok {
		actor.Roles, _ = v.([]string)
	}
	return actor
}

func GetOrgID(c *gin.Context) string {
	if v, ok := c.Get("org_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
