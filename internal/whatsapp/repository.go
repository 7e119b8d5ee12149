package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manav-trails/backend/internal/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles whatsapp_logs, alerts and webhook_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a WhatsApp repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AlertIDForMessage returns the alert an outbound message was sent for.
func (r *Repository) AlertIDForMessage(ctx context.Context, messageID string) (string, error) {
	var alertID string
	err := r.pool.QueryRow(ctx, `SELECT alert_id FROM whatsapp_logs WHERE message_id = $1`, messageID).Scan(&alertID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get whatsapp log: %w", err)
	}
	return alertID, nil
}

// GetAlert returns an alert by id.
func (r *Repository) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	const q = `SELECT id, user_id, trip_name, back_and_safe_time, is_trip_completed, created_at FROM alerts WHERE id = $1`
	var a models.Alert
	err := r.pool.QueryRow(ctx, q, alertID).Scan(&a.ID, &a.UserID, &a.TripName, &a.BackAndSafeTime, &a.IsTripCompleted, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

// UserFullName returns the display name of a user.
func (r *Repository) UserFullName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT full_name FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	return name, nil
}

// CompleteAlert marks the trip finished at the given time.
func (r *Repository) CompleteAlert(ctx context.Context, alertID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET back_and_safe_time = $2, is_trip_completed = TRUE WHERE id = $1`, alertID, at)
	if err != nil {
		return fmt.Errorf("complete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertWebhookLog stores an inbound message audit row.
func (r *Repository) InsertWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	const q = `INSERT INTO webhook_logs (id, phone_number_id, wa_id, message_id, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING stored_at`
	if err := r.pool.QueryRow(ctx, q, l.ID, l.PhoneNumberID, l.WaID, l.MessageID, l.Timestamp).Scan(&l.StoredAt); err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}
