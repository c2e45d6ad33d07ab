package handler

import (
	"github.com/cassianoaxe/endurancy/internal/shared/whatsapp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WhatsAppHandler session administration plus the inbound WAHA webhook.
type WhatsAppHandler struct {
	client *whatsapp.Client
	logger *zap.Logger
}

func NewWhatsAppHandler(client *whatsapp.Client, logger *zap.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppHandler{client: client, logger: logger}
}

func (h *WhatsAppHandler) configured(c *gin.Context) bool {
	if h.client == nil {
		Error(c, 50300, "whatsapp integration is not configured")
		return false
	}
	return true
}

// SessionStatus GET /whatsapp/session
func (h *WhatsAppHandler) SessionStatus(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	status, err := h.client.CheckSessionStatus(c.Request.Context())
	if err != nil {
		InternalError(c, "check session: "+err.Error())
		return
	}
	Success(c, status)
}

// StartSession POST /whatsapp/session
func (h *WhatsAppHandler) StartSession(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	if err := h.client.StartSession(c.Request.Context()); err != nil {
		InternalError(c, "start session: "+err.Error())
		return
	}
	Success(c, nil)
}

// Logout DELETE /whatsapp/session
func (h *WhatsAppHandler) Logout(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	if err := h.client.Logout(c.Request.Context()); err != nil {
		InternalError(c, "logout: "+err.Error())
		return
	}
	Success(c, nil)
}

// Webhook POST /webhooks/whatsapp
// WAHA relays session and message events here. Delivery state changes
// are logged; nothing in the traceability chain depends on them.
func (h *WhatsAppHandler) Webhook(c *gin.Context) {
	var payload whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}
	h.logger.Info("whatsapp webhook received",
		zap.String("event", payload.Event),
		zap.String("session", payload.Session))
	Success(c, nil)
}
