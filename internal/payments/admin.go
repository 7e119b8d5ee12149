package payments

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/pkg/response"
)

// AdminHandler serves manual reconciliation endpoints.
type AdminHandler struct {
	store   Store
	invites InviteSender
	logger  *zap.Logger
}

// NewAdminHandler creates the reconciliation handler.
func NewAdminHandler(store Store, invites InviteSender, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, invites: invites, logger: logger}
}

// GetPayment handles GET /admin/payments/:id.
func (h *AdminHandler) GetPayment(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, p)
}

// ResendInvite handles POST /admin/payments/:id/resend-invite.
func (h *AdminHandler) ResendInvite(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	if p.Status != models.PaymentStatusCaptured {
		response.BadRequest(c, "payment is not captured")
		return
	}
	if p.Email == nil || *p.Email == "" {
		response.BadRequest(c, "payment has no email")
		return
	}
	err := h.invites.SendInvite(c.Request.Context(), mailer.Invite{
		Email:     *p.Email,
		Amount:    p.Amount,
		Currency:  p.Currency,
		PaymentID: p.PaymentID,
	})
	if err != nil {
		h.logger.Error("resend invite failed", zap.Error(err), zap.String("payment_id", p.PaymentID))
		response.Internal(c, "failed to send invite")
		return
	}
	response.OK(c, gin.H{"message": "invite sent", "recipient": *p.Email})
}

func (h *AdminHandler) load(c *gin.Context) (*models.Payment, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.BadRequest(c, "invalid payment id")
		return nil, false
	}
	p, err := h.store.GetPayment(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "payment not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("get payment failed", zap.Error(err), zap.String("payment_id", id))
		response.Internal(c, "failed to load payment")
		return nil, false
	}
	return p, true
}
