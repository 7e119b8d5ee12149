package payments

import (
	"context"
	"errors"

	"github.com/manav-trails/backend/internal/models"
)

// ErrNotFound is returned by lookups outside a transaction.
var ErrNotFound = errors.New("payment not found")

// Store opens transactions over the payments, orders and users tables.
type Store interface {
	// RunInTx runs fn atomically. fn may be invoked more than once when the
	// transaction conflicts with a concurrent one, so it must not have side
	// effects outside tx.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
}

// Tx is the view of the store inside one transaction. Getters return nil, nil
// when the row does not exist.
type Tx interface {
	PaymentExists(ctx context.Context, paymentID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	InsertPayment(ctx context.Context, p *models.Payment) error
	CompleteOrder(ctx context.Context, orderID, paymentID string) error
	GrantAccess(ctx context.Context, userID string) error
}
