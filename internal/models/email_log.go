package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for transactional mail.
const (
	EmailTypeWorkshopInvite = "workshop_invite"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one delivery attempt of a transactional email.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	PaymentID      *string    `json:"payment_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
