// Package repository implements subscription persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/database"
	apperrors "github.com/allisson/eventbus/internal/errors"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

const subscriptionColumns = `id, service_name, event_type, webhook_url, is_active, retry_count, timeout_seconds,
			  last_delivered_at, last_failed_at, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLSubscriptionRepository implements EventSubscription persistence for PostgreSQL databases.
type PostgreSQLSubscriptionRepository struct {
	db *sql.DB
}

// NewPostgreSQLSubscriptionRepository creates a new PostgreSQL EventSubscription repository instance.
func NewPostgreSQLSubscriptionRepository(db *sql.DB) *PostgreSQLSubscriptionRepository {
	return &PostgreSQLSubscriptionRepository{db: db}
}

// Upsert inserts the subscription or, when one already exists for the same
// service and event type, replaces its delivery settings and reactivates it.
// sub is updated with the stored row.
func (p *PostgreSQLSubscriptionRepository) Upsert(
	ctx context.Context,
	sub *subscriptionDomain.EventSubscription,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO event_subscriptions (id, service_name, event_type, webhook_url, is_active,
			  retry_count, timeout_seconds, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8)
			  ON CONFLICT (service_name, event_type) DO UPDATE
			  SET webhook_url = EXCLUDED.webhook_url,
			      is_active = TRUE,
			      retry_count = EXCLUDED.retry_count,
			      timeout_seconds = EXCLUDED.timeout_seconds,
			      updated_at = EXCLUDED.updated_at
			  RETURNING ` + subscriptionColumns

	stored, err := scanPostgreSQLSubscription(querier.QueryRowContext(
		ctx,
		query,
		sub.ID,
		sub.ServiceName,
		sub.EventType,
		sub.WebhookURL,
		sub.RetryCount,
		sub.TimeoutSeconds,
		sub.CreatedAt,
		sub.UpdatedAt,
	))
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert subscription")
	}

	*sub = *stored
	return nil
}

// Get retrieves a subscription by ID.
func (p *PostgreSQLSubscriptionRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*subscriptionDomain.EventSubscription, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + subscriptionColumns + ` FROM event_subscriptions WHERE id = $1`

	sub, err := scanPostgreSQLSubscription(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscriptionDomain.ErrSubscriptionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get subscription")
	}
	return sub, nil
}

// GetByEventType returns the active subscriptions for an event type.
func (p *PostgreSQLSubscriptionRepository) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
			  FROM event_subscriptions
			  WHERE event_type = $1 AND is_active = TRUE
			  ORDER BY created_at ASC`

	return p.list(ctx, query, eventType)
}

// List returns subscriptions ordered by creation time.
func (p *PostgreSQLSubscriptionRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
			  FROM event_subscriptions
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`

	return p.list(ctx, query, limit, offset)
}

// Deactivate marks a subscription inactive.
func (p *PostgreSQLSubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE event_subscriptions SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate subscription")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return subscriptionDomain.ErrSubscriptionNotFound
	}
	return nil
}

// RecordDeliverySuccess sets last_delivered_at and clears the failure reason.
func (p *PostgreSQLSubscriptionRepository) RecordDeliverySuccess(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE event_subscriptions
			  SET last_delivered_at = $1, failure_reason = NULL, updated_at = $1
			  WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, at, id); err != nil {
		return apperrors.Wrap(err, "failed to record delivery success")
	}
	return nil
}

// RecordDeliveryFailure sets last_failed_at and the failure reason. last_delivered_at is left unchanged.
func (p *PostgreSQLSubscriptionRepository) RecordDeliveryFailure(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
	reason string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE event_subscriptions
			  SET last_failed_at = $1, failure_reason = $2, updated_at = $1
			  WHERE id = $3`

	if _, err := querier.ExecContext(ctx, query, at, reason, id); err != nil {
		return apperrors.Wrap(err, "failed to record delivery failure")
	}
	return nil
}

func (p *PostgreSQLSubscriptionRepository) list(
	ctx context.Context,
	query string,
	args ...any,
) ([]*subscriptionDomain.EventSubscription, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list subscriptions")
	}
	defer rows.Close() //nolint:errcheck

	subs := make([]*subscriptionDomain.EventSubscription, 0)
	for rows.Next() {
		sub, err := scanPostgreSQLSubscription(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan subscription")
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate subscriptions")
	}
	return subs, nil
}

func scanPostgreSQLSubscription(row rowScanner) (*subscriptionDomain.EventSubscription, error) {
	var sub subscriptionDomain.EventSubscription
	err := row.Scan(
		&sub.ID,
		&sub.ServiceName,
		&sub.EventType,
		&sub.WebhookURL,
		&sub.IsActive,
		&sub.RetryCount,
		&sub.TimeoutSeconds,
		&sub.LastDeliveredAt,
		&sub.LastFailedAt,
		&sub.FailureReason,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
