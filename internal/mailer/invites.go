package mailer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/pkg/queue"
)

// LogStore records email delivery state.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Enqueuer hands an email to the background worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Invites sends workshop access emails, either directly over SMTP or through
// the email queue when an Enqueuer is set.
type Invites struct {
	sender Sender
	logs   LogStore
	queue  Enqueuer
	logger *zap.Logger
}

// NewInvites creates the invite service. Pass a nil queue for direct delivery.
func NewInvites(sender Sender, logs LogStore, q Enqueuer, logger *zap.Logger) *Invites {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invites{sender: sender, logs: logs, queue: q, logger: logger}
}

// SendInvite renders and delivers the invite, tracking it in email_logs.
// In queue mode a nil error means the job was accepted, not delivered.
func (s *Invites) SendInvite(ctx context.Context, inv Invite) error {
	msg, err := RenderInvite(inv)
	if err != nil {
		return err
	}

	paymentID := inv.PaymentID
	entry := &models.EmailLog{
		ID:             uuid.New(),
		PaymentID:      &paymentID,
		EmailType:      models.EmailTypeWorkshopInvite,
		RecipientEmail: inv.Email,
		Subject:        msg.Subject,
		Status:         models.EmailLogStatusPending,
	}
	logged := true
	if err := s.logs.Create(ctx, entry); err != nil {
		logged = false
		s.logger.Warn("email log insert failed", zap.Error(err), zap.String("payment_id", inv.PaymentID))
	}

	if s.queue != nil {
		err := s.queue.EnqueueEmail(ctx, queue.EmailPayload{
			EmailLogID:     entry.ID,
			EmailType:      entry.EmailType,
			PaymentID:      inv.PaymentID,
			RecipientEmail: msg.To,
			Subject:        msg.Subject,
			BodyText:       msg.Text,
			BodyHTML:       msg.HTML,
		})
		if err != nil {
			s.markFailed(ctx, logged, entry.ID, err)
			return fmt.Errorf("enqueue invite: %w", err)
		}
		return nil
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		s.markFailed(ctx, logged, entry.ID, err)
		return err
	}
	if logged {
		if err := s.logs.MarkSent(ctx, entry.ID); err != nil {
			s.logger.Warn("email log update failed", zap.Error(err), zap.String("email_log_id", entry.ID.String()))
		}
	}
	s.logger.Info("invite email sent", zap.String("payment_id", inv.PaymentID), zap.String("to", inv.Email))
	return nil
}

func (s *Invites) markFailed(ctx context.Context, logged bool, id uuid.UUID, cause error) {
	if !logged {
		return
	}
	if err := s.logs.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Warn("email log update failed", zap.Error(err), zap.String("email_log_id", id.String()))
	}
}
