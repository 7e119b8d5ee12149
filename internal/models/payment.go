package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Razorpay payment entity statuses.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
)

// DefaultCurrency is stored when the provider omits the currency.
const DefaultCurrency = "INR"

// Payment is the write-once ledger row for a provider payment id.
type Payment struct {
	PaymentID string          `json:"payment_id"`
	OrderID   *string         `json:"order_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"` // major units
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Method    string          `json:"method"`
	Email     *string         `json:"email,omitempty"`
	Contact   *string         `json:"contact,omitempty"`
	Notes     map[string]any  `json:"notes"`
	Metadata  PaymentMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentMetadata keeps the raw provider entity for audit.
type PaymentMetadata struct {
	RawResponse  json.RawMessage `json:"rawResponse,omitempty"`
	WebhookEvent string          `json:"webhookEvent"`
}
