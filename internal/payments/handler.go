package payments

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/razorpay"
	"github.com/manav-trails/backend/pkg/response"
)

const (
	// MaxWebhookBody caps the bytes read from a webhook request.
	MaxWebhookBody = 1 << 20
	// EventIDHeader is the Razorpay delivery id, used as the archive object name.
	EventIDHeader = "X-Razorpay-Event-Id"

	processTimeout = 10 * time.Second
	archiveTimeout = 30 * time.Second
)

// Archiver stores raw webhook bodies for audit.
type Archiver interface {
	ArchiveWebhook(ctx context.Context, provider, eventID string, receivedAt time.Time, body []byte) error
}

// WebhookHandler is the Razorpay front door.
type WebhookHandler struct {
	processor *Processor
	secret    string
	archiver  Archiver
	logger    *zap.Logger
}

// NewWebhookHandler creates the webhook handler. archiver may be nil.
func NewWebhookHandler(processor *Processor, secret string, archiver Archiver, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{processor: processor, secret: secret, archiver: archiver, logger: logger}
}

// Handle serves POST /Payment and POST /razorpay-webhook.
// Bad signatures and malformed payloads get a 400; everything past that is
// answered with 200 so Razorpay does not retry failures that are already logged.
func (h *WebhookHandler) Handle(c *gin.Context) {
	receivedAt := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("webhook body unreadable", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WebhookReject(c, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		response.WebhookReject(c, http.StatusBadRequest, "Invalid body")
		return
	}

	signature := c.GetHeader(razorpay.SignatureHeader)
	if signature == "" {
		h.logger.Warn("webhook rejected: missing signature", zap.String("client_ip", c.ClientIP()))
		response.WebhookReject(c, http.StatusBadRequest, "Missing signature")
		return
	}
	if !razorpay.VerifySignature(raw, signature, h.secret) {
		h.logger.Warn("webhook rejected: invalid signature", zap.String("client_ip", c.ClientIP()))
		response.WebhookReject(c, http.StatusBadRequest, "Invalid signature")
		return
	}

	eventID := c.GetHeader(EventIDHeader)
	if eventID == "" {
		eventID = uuid.New().String()
	}
	h.archive(eventID, receivedAt, raw)

	n, err := razorpay.ParseNotification(raw)
	if err != nil {
		h.logger.Warn("webhook rejected: malformed payload", zap.Error(err), zap.String("event_id", eventID))
		response.WebhookReject(c, http.StatusBadRequest, "Malformed payload")
		return
	}

	// Processing must finish even if Razorpay hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), processTimeout)
	defer cancel()
	ack, err := h.processor.Process(ctx, n)
	if err != nil {
		h.logger.Warn("webhook rejected: malformed payment", zap.Error(err), zap.String("event", n.Event), zap.String("event_id", eventID))
		response.WebhookReject(c, http.StatusBadRequest, "Malformed payload")
		return
	}
	response.WebhookAck(c, ack)
}

func (h *WebhookHandler) archive(eventID string, receivedAt time.Time, raw []byte) {
	if h.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.archiver.ArchiveWebhook(ctx, "razorpay", eventID, receivedAt, raw); err != nil {
			h.logger.Warn("webhook archive failed", zap.Error(err), zap.String("event_id", eventID))
		}
	}()
}
