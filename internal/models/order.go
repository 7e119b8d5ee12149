package models

import "time"

// Order payment states.
const (
	OrderPaymentPending   = "pending"
	OrderPaymentCompleted = "completed"
)

// Order is created by the storefront; payment webhooks only complete it.
type Order struct {
	ID            string    `json:"id"`
	UserID        *string   `json:"user_id,omitempty"`
	ProductID     *string   `json:"product_id,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	PaymentID     *string   `json:"payment_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Completed reports whether a captured payment has already been applied.
func (o *Order) Completed() bool {
	return o.PaymentStatus == OrderPaymentCompleted
}
