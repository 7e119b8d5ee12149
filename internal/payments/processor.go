package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/internal/razorpay"
)

// Ack statuses returned to Razorpay.
const (
	AckStatusSuccess     = "success"
	AckStatusErrorLogged = "error logged"
)

// Ack is the body answered to the webhook caller.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Outcome of the commit transaction.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeDuplicate
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Capturer finalizes authorized payments at the provider.
type Capturer interface {
	Capture(ctx context.Context, paymentID string, amount int64, currency string) error
}

// InviteSender delivers the workshop access email.
type InviteSender interface {
	SendInvite(ctx context.Context, inv mailer.Invite) error
}

// ProcessorConfig holds the processing switches.
type ProcessorConfig struct {
	// TrackedProduct reports whether a notes.productId is of interest. Nil tracks everything.
	TrackedProduct     func(productID string) bool
	CaptureOnAuthorize bool
	// InviteTimeout bounds one invite delivery. Zero means DefaultInviteTimeout.
	InviteTimeout time.Duration
}

// DefaultInviteTimeout bounds an invite delivery running after the ack.
const DefaultInviteTimeout = 45 * time.Second

// Processor turns verified notifications into ledger rows and side effects.
type Processor struct {
	store    Store
	invites  InviteSender
	capturer Capturer
	cfg      ProcessorConfig
	logger   *zap.Logger

	inflight sync.WaitGroup
}

// NewProcessor creates a payment processor. capturer may be nil when
// CaptureOnAuthorize is off.
func NewProcessor(store Store, invites InviteSender, capturer Capturer, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TrackedProduct == nil {
		cfg.TrackedProduct = func(string) bool { return true }
	}
	if cfg.InviteTimeout <= 0 {
		cfg.InviteTimeout = DefaultInviteTimeout
	}
	return &Processor{store: store, invites: invites, capturer: capturer, cfg: cfg, logger: logger}
}

// Process handles one verified notification. The only error it returns is
// razorpay.ErrMalformedPayload, raised before any storage access; every other
// failure is logged and reported through the Ack.
func (p *Processor) Process(ctx context.Context, n *razorpay.Notification) (Ack, error) {
	switch n.Event {
	case razorpay.EventPaymentAuthorized:
		payment, err := n.Payment()
		if err != nil {
			return Ack{}, err
		}
		p.captureAuthorized(ctx, payment)
		return Ack{Status: AckStatusSuccess}, nil

	case razorpay.EventPaymentCaptured, razorpay.EventPaymentFailed:
		payment, err := n.Payment()
		if err != nil {
			return Ack{}, err
		}
		log := p.logger.With(zap.String("event", n.Event), zap.String("payment_id", payment.ID))

		outcome, err := p.Commit(ctx, n.Event, payment)
		if err != nil {
			log.Error("payment commit failed", zap.Error(err))
			return Ack{Status: AckStatusErrorLogged, Message: "failed to record payment"}, nil
		}
		log.Info("payment processed", zap.Stringer("outcome", outcome), zap.String("status", payment.Status))

		if n.Event == razorpay.EventPaymentCaptured && outcome == OutcomeCreated {
			p.sendInvite(ctx, payment, log)
		}
		return Ack{Status: AckStatusSuccess}, nil

	default:
		p.logger.Info("ignoring webhook event", zap.String("event", n.Event))
		return Ack{Status: AckStatusSuccess}, nil
	}
}

// Commit records the payment at most once and applies its effect on the
// referenced order and user. All reads happen before the first write.
func (p *Processor) Commit(ctx context.Context, event string, payment *razorpay.PaymentEntity) (Outcome, error) {
	userID := payment.Notes.String("userId")
	productID := payment.Notes.String("productId")
	captured := payment.Status == models.PaymentStatusCaptured

	var outcome Outcome
	err := p.store.RunInTx(ctx, func(tx Tx) error {
		outcome = OutcomeCreated

		exists, err := tx.PaymentExists(ctx, payment.ID)
		if err != nil {
			return err
		}
		if exists {
			outcome = OutcomeDuplicate
			return nil
		}

		var order *models.Order
		var user *models.User
		if captured {
			if payment.OrderID != "" {
				if order, err = tx.GetOrder(ctx, payment.OrderID); err != nil {
					return err
				}
			}
			if userID != "" {
				if user, err = tx.GetUser(ctx, userID); err != nil {
					return err
				}
			}
		}

		if productID != "" && !p.cfg.TrackedProduct(productID) {
			outcome = OutcomeSkipped
			return nil
		}

		if err := tx.InsertPayment(ctx, newPaymentRecord(event, payment)); err != nil {
			return err
		}

		if captured {
			if order != nil && !order.Completed() {
				if err := tx.CompleteOrder(ctx, order.ID, payment.ID); err != nil {
					return err
				}
			}
			if user != nil && !user.HasAccess {
				if err := tx.GrantAccess(ctx, user.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit payment %s: %w", payment.ID, err)
	}
	return outcome, nil
}

func newPaymentRecord(event string, payment *razorpay.PaymentEntity) *models.Payment {
	currency := payment.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &models.Payment{
		PaymentID: payment.ID,
		OrderID:   optional(payment.OrderID),
		Amount:    payment.AmountMajor(),
		Currency:  currency,
		Status:    payment.Status,
		Method:    payment.Method,
		Email:     optional(payment.Email),
		Contact:   optional(payment.Contact),
		Notes:     map[string]any(payment.Notes),
		Metadata: models.PaymentMetadata{
			RawResponse:  payment.Raw,
			WebhookEvent: event,
		},
	}
}

func (p *Processor) captureAuthorized(ctx context.Context, payment *razorpay.PaymentEntity) {
	log := p.logger.With(zap.String("event", razorpay.EventPaymentAuthorized), zap.String("payment_id", payment.ID))
	if !p.cfg.CaptureOnAuthorize || p.capturer == nil {
		log.Info("authorized payment left for auto-capture")
		return
	}
	currency := payment.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if err := p.capturer.Capture(ctx, payment.ID, payment.Amount, currency); err != nil {
		log.Error("payment capture failed", zap.Error(err))
		return
	}
	log.Info("payment captured", zap.Int64("amount", payment.Amount), zap.String("currency", currency))
}

// sendInvite delivers the invite in the background so the webhook ack never
// waits on SMTP. The request context is detached; Wait drains pending sends.
func (p *Processor) sendInvite(ctx context.Context, payment *razorpay.PaymentEntity, log *zap.Logger) {
	if payment.Status != models.PaymentStatusCaptured || payment.Email == "" || p.invites == nil {
		return
	}
	inv := mailer.Invite{
		Email:     payment.Email,
		Amount:    payment.AmountMajor(),
		Currency:  payment.Currency,
		PaymentID: payment.ID,
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.InviteTimeout)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer cancel()
		if err := p.invites.SendInvite(sendCtx, inv); err != nil {
			log.Error("invite email failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every background invite delivery has finished.
func (p *Processor) Wait() {
	p.inflight.Wait()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
