package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a safety check-in scheduled for a user on a trip.
type Alert struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	TripName        string     `json:"trip_name"`
	BackAndSafeTime *time.Time `json:"back_and_safe_time,omitempty"`
	IsTripCompleted bool       `json:"is_trip_completed"`
	CreatedAt       time.Time  `json:"created_at"`
}

// WhatsAppLog links an outbound WhatsApp message to the alert it was sent for.
type WhatsAppLog struct {
	MessageID string    `json:"message_id"`
	AlertID   string    `json:"alert_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookLog is an audit row for an inbound WhatsApp message.
type WebhookLog struct {
	ID            uuid.UUID `json:"id"`
	PhoneNumberID string    `json:"phone_number_id"`
	WaID          string    `json:"wa_id"`
	MessageID     string    `json:"message_id"`
	Timestamp     string    `json:"timestamp"`
	StoredAt      time.Time `json:"stored_at"`
}
