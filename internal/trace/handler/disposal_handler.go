package handler

import (
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/gin-gonic/gin"
)

type DisposalHandler struct {
	svc *service.DisposalService
}

func NewDisposalHandler(svc *service.DisposalService) *DisposalHandler {
	return &DisposalHandler{svc: svc}
}

// List GET /disposals
func (h *DisposalHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	params := repository.DisposalListParams{
		OrgID:  GetOrgID(c),
		ItemID: c.Query("item_id"),
		Status: c.Query("status"),
		Reason: c.Query("reason"),
		Page:   page,
		Size:   size,
	}
	disposals, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": disposals, "pagination": NewPagination(page, size, total)})
}

// Get GET /disposals/:id
func (h *DisposalHandler) Get(c *gin.Context) {
	disposal, err := h.svc.Get(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// Request POST /disposals
func (h *DisposalHandler) Request(c *gin.Context) {
	var req service.RequestDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	disposal, err := h.svc.Request(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, disposal)
}

// Approve POST /disposals/:id/approve
func (h *DisposalHandler) Approve(c *gin.Context) {
	disposal, err := h.svc.Approve(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// Complete POST /disposals/:id/complete
func (h *DisposalHandler) Complete(c *gin.Context) {
	disposal, err := h.svc.Complete(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// Document POST /disposals/:id/document
func (h *DisposalHandler) Document(c *gin.Context) {
	disposal, err := h.svc.Document(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// Cancel POST /disposals/:id/cancel
func (h *DisposalHandler) Cancel(c *gin.Context) {
	disposal, err := h.svc.Cancel(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// AttachEvidence POST /disposals/:id/evidence (multipart: file, kind)
func (h *DisposalHandler) AttachEvidence(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required: "+err.Error())
		return
	}
	kind := c.PostForm("kind")
	if kind == "" {
		kind = "certificate"
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "open upload: "+err.Error())
		return
	}
	defer file.Close()

	disposal, err := h.svc.AttachEvidence(
		c.Request.Context(), GetActor(c), c.Param("id"),
		kind, fileHeader.Filename, fileHeader.Header.Get("Content-Type"),
		file, fileHeader.Size,
	)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, disposal)
}

// EvidenceURL GET /disposals/:id/evidence
func (h *DisposalHandler) EvidenceURL(c *gin.Context) {
	url, err := h.svc.EvidenceURL(c.Request.Context(), GetOrgID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}
