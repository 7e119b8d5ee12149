package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/models"
)

// Store is the persistence the safe-return flow needs.
type Store interface {
	AlertIDForMessage(ctx context.Context, messageID string) (string, error)
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
	UserFullName(ctx context.Context, userID string) (string, error)
	CompleteAlert(ctx context.Context, alertID string, at time.Time) error
	InsertWebhookLog(ctx context.Context, l *models.WebhookLog) error
}

// Notifier sends WhatsApp template messages.
type Notifier interface {
	SendTemplate(ctx context.Context, to, name, lang string, bodyParams ...string) error
}

// Service runs the safe-return acknowledgment.
type Service struct {
	store    Store
	notifier Notifier
	template string
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates the safe-return service. templateName is the approved
// confirmation template, which takes the user's name and the trip name.
func NewService(store Store, notifier Notifier, templateName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, template: templateName, now: time.Now, logger: logger}
}

// HandlePayload records the inbound message and, for a safe-return reply,
// completes the alert and confirms to the sender.
func (s *Service) HandlePayload(ctx context.Context, p *Payload) error {
	msg, value, ok := p.FirstMessage()
	if !ok {
		return nil
	}
	s.logMessage(ctx, msg, value)
	if !msg.IsSafeReturn() {
		return nil
	}
	return s.confirmSafeReturn(ctx, msg)
}

func (s *Service) confirmSafeReturn(ctx context.Context, msg *Message) error {
	replyTo := msg.ReplyToID()
	log := s.logger.With(zap.String("message_id", msg.ID), zap.String("reply_to", replyTo))

	alertID, err := s.store.AlertIDForMessage(ctx, replyTo)
	if errors.Is(err, ErrNotFound) {
		log.Info("safe-return reply for unknown message")
		return nil
	}
	if err != nil {
		return err
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("alert %s: %w", alertID, err)
	}
	name, err := s.store.UserFullName(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("user %s: %w", alert.UserID, err)
	}
	if err := s.store.CompleteAlert(ctx, alert.ID, s.now().UTC()); err != nil {
		return err
	}
	log.Info("trip marked complete", zap.String("alert_id", alert.ID), zap.String("trip", alert.TripName))

	if err := s.notifier.SendTemplate(ctx, msg.From, s.template, "en", name, alert.TripName); err != nil {
		return fmt.Errorf("confirmation for alert %s: %w", alert.ID, err)
	}
	log.Info("safe-return confirmation sent", zap.String("alert_id", alert.ID))
	return nil
}

func (s *Service) logMessage(ctx context.Context, msg *Message, value *Value) {
	entry := &models.WebhookLog{
		PhoneNumberID: value.Metadata.PhoneNumberID,
		MessageID:     msg.ID,
		Timestamp:     msg.Timestamp,
	}
	if len(value.Contacts) > 0 {
		entry.WaID = value.Contacts[0].WaID
	}
	if entry.PhoneNumberID == "" || entry.WaID == "" || entry.MessageID == "" || entry.Timestamp == "" {
		s.logger.Debug("webhook log skipped: missing fields", zap.String("message_id", msg.ID))
		return
	}
	if err := s.store.InsertWebhookLog(ctx, entry); err != nil {
		s.logger.Warn("webhook log insert failed", zap.Error(err), zap.String("message_id", msg.ID))
	}
}
