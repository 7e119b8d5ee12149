package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/pkg/database"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewRepository creates a payments repository. maxAttempts bounds retries of
// serialization conflicts.
func NewRepository(pool *pgxpool.Pool, maxAttempts int) *Repository {
	return &Repository{pool: pool, maxAttempts: maxAttempts}
}

// RunInTx runs fn in a serializable transaction, retried on contention.
func (r *Repository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.RunSerializable(ctx, r.pool, r.maxAttempts, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

const paymentColumns = `payment_id, order_id, amount, currency, status, method, email, contact, notes, metadata, created_at`

// GetPayment returns the ledger row or ErrNotFound.
func (r *Repository) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	var p models.Payment
	err := r.pool.QueryRow(ctx, q, paymentID).Scan(
		&p.PaymentID, &p.OrderID, &p.Amount, &p.Currency, &p.Status, &p.Method,
		&p.Email, &p.Contact, &p.Notes, &p.Metadata, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) PaymentExists(ctx context.Context, paymentID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE payment_id = $1)`, paymentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

func (t *pgTx) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	const q = `SELECT id, user_id, product_id, payment_status, payment_id, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`
	var o models.Order
	err := t.tx.QueryRow(ctx, q, orderID).Scan(&o.ID, &o.UserID, &o.ProductID, &o.PaymentStatus, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (t *pgTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const q = `SELECT id, email, full_name, has_access, access_granted_at, created_at
		FROM users WHERE id = $1 FOR UPDATE`
	var u models.User
	err := t.tx.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Email, &u.FullName, &u.HasAccess, &u.AccessGrantedAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (payment_id, order_id, amount, currency, status, method, email, contact, notes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`
	notes := p.Notes
	if notes == nil {
		notes = map[string]any{}
	}
	err := t.tx.QueryRow(ctx, q,
		p.PaymentID, p.OrderID, p.Amount.String(), p.Currency, p.Status, p.Method,
		p.Email, p.Contact, notes, p.Metadata,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *pgTx) CompleteOrder(ctx context.Context, orderID, paymentID string) error {
	const q = `UPDATE orders SET payment_status = $2, payment_id = $3, updated_at = NOW() WHERE id = $1`
	if _, err := t.tx.Exec(ctx, q, orderID, models.OrderPaymentCompleted, paymentID); err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	return nil
}

func (t *pgTx) GrantAccess(ctx context.Context, userID string) error {
	const q = `UPDATE users SET has_access = TRUE, access_granted_at = NOW() WHERE id = $1`
	if _, err := t.tx.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}
