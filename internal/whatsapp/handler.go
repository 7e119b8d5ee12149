package whatsapp

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the WhatsApp Business webhook.
type Handler struct {
	service     *Service
	verifyToken string
	logger      *zap.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(service *Service, verifyToken string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, verifyToken: verifyToken, logger: logger}
}

// Serve handles any method on /webhook.
func (h *Handler) Serve(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet:
		h.Verify(c)
	case http.MethodPost:
		h.Receive(c)
	default:
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// Verify handles the GET subscription handshake.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.Warn("whatsapp verification rejected", zap.String("mode", mode))
		c.Status(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive handles POST notifications. Meta retries anything but 200, so
// failures are logged and still acknowledged.
func (h *Handler) Receive(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("whatsapp payload unreadable", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 15*time.Second)
	defer cancel()
	if err := h.service.HandlePayload(ctx, &payload); err != nil {
		h.logger.Error("whatsapp webhook failed", zap.Error(err))
	}
	c.Status(http.StatusOK)
}
