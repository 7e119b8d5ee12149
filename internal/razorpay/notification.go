package razorpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Webhook event names handled by the payment processor.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
)

// ErrMalformedPayload is returned for bodies that cannot carry a payment.
var ErrMalformedPayload = errors.New("malformed payment notification")

// Notification is the webhook envelope.
type Notification struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	CreatedAt int64    `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity json.RawMessage `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity is payload.payment.entity with every field but ID optional.
type PaymentEntity struct {
	ID       string
	OrderID  string
	Amount   int64 // minor units
	Currency string
	Status   string
	Method   string
	Email    string
	Contact  string
	Notes    Notes
	Raw      json.RawMessage
}

type paymentEntityJSON struct {
	ID       any    `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Notes    Notes  `json:"notes"`
}

// ParseNotification decodes the webhook envelope.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &n, nil
}

// Payment decodes and validates the payment entity. The id must be a non-empty string.
func (n *Notification) Payment() (*PaymentEntity, error) {
	if n.Payload.Payment == nil || len(n.Payload.Payment.Entity) == 0 || bytes.Equal(n.Payload.Payment.Entity, []byte("null")) {
		return nil, fmt.Errorf("%w: missing payment entity", ErrMalformedPayload)
	}
	var body paymentEntityJSON
	if err := json.Unmarshal(n.Payload.Payment.Entity, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	id, ok := body.ID.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: payment id missing or not a string", ErrMalformedPayload)
	}
	return &PaymentEntity{
		ID:       id,
		OrderID:  body.OrderID,
		Amount:   body.Amount,
		Currency: body.Currency,
		Status:   body.Status,
		Method:   body.Method,
		Email:    body.Email,
		Contact:  body.Contact,
		Notes:    body.Notes,
		Raw:      n.Payload.Payment.Entity,
	}, nil
}

// AmountMajor converts paise (or cents) into major units.
func (p *PaymentEntity) AmountMajor() decimal.Decimal {
	return decimal.New(p.Amount, -2)
}

// Notes is the free-form notes object. Razorpay sends [] when it is empty.
type Notes map[string]any

// UnmarshalJSON accepts an object, an empty array or null.
func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []any
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		if len(arr) > 0 {
			return errors.New("notes: expected object or empty array")
		}
		*n = Notes{}
		return nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// String returns the value at key as a string. Numbers are formatted; absent,
// null and empty values return "".
func (n Notes) String(key string) string {
	v, ok := n[key]
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}
