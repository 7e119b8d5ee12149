package emaillogs

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/pkg/response"
)

// Lister reads email logs for a payment.
type Lister interface {
	ListByPayment(ctx context.Context, paymentID string) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByPayment handles GET /admin/payments/:id/emails.
func (h *Handler) ListByPayment(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Param("id"))
	if paymentID == "" {
		response.BadRequest(c, "invalid payment id")
		return
	}
	logs, err := h.repo.ListByPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("payment_id", paymentID))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
