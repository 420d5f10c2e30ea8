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

// MySQLSubscriptionRepository implements EventSubscription persistence for MySQL databases.
// IDs are stored as BINARY(16).
type MySQLSubscriptionRepository struct {
	db *sql.DB
}

// NewMySQLSubscriptionRepository creates a new MySQL EventSubscription repository instance.
func NewMySQLSubscriptionRepository(db *sql.DB) *MySQLSubscriptionRepository {
	return &MySQLSubscriptionRepository{db: db}
}

// Upsert inserts the subscription or updates the existing one for the same
// service and event type, then reloads the stored row into sub. Call it inside
// a transaction so the reload sees the write.
func (m *MySQLSubscriptionRepository) Upsert(
	ctx context.Context,
	sub *subscriptionDomain.EventSubscription,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := sub.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subscription id")
	}

	query := `INSERT INTO event_subscriptions (id, service_name, event_type, webhook_url, is_active,
			  retry_count, timeout_seconds, created_at, updated_at)
			  VALUES (?, ?, ?, ?, TRUE, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			      webhook_url = VALUES(webhook_url),
			      is_active = TRUE,
			      retry_count = VALUES(retry_count),
			      timeout_seconds = VALUES(timeout_seconds),
			      updated_at = VALUES(updated_at)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		sub.ServiceName,
		sub.EventType,
		sub.WebhookURL,
		sub.RetryCount,
		sub.TimeoutSeconds,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert subscription")
	}

	selectQuery := `SELECT ` + subscriptionColumns + `
			  FROM event_subscriptions
			  WHERE service_name = ? AND event_type = ?`

	stored, err := scanMySQLSubscription(querier.QueryRowContext(ctx, selectQuery, sub.ServiceName, sub.EventType))
	if err != nil {
		return apperrors.Wrap(err, "failed to reload subscription")
	}

	*sub = *stored
	return nil
}

// Get retrieves a subscription by ID.
func (m *MySQLSubscriptionRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*subscriptionDomain.EventSubscription, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal subscription id")
	}

	query := `SELECT ` + subscriptionColumns + ` FROM event_subscriptions WHERE id = ?`

	sub, err := scanMySQLSubscription(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscriptionDomain.ErrSubscriptionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get subscription")
	}
	return sub, nil
}

// GetByEventType returns the active subscriptions for an event type.
func (m *MySQLSubscriptionRepository) GetByEventType(
	ctx context.Context,
	eventType string,
) ([]*subscriptionDomain.EventSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
			  FROM event_subscriptions
			  WHERE event_type = ? AND is_active = TRUE
			  ORDER BY created_at ASC`

	return m.list(ctx, query, eventType)
}

// List returns subscriptions ordered by creation time.
func (m *MySQLSubscriptionRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*subscriptionDomain.EventSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
			  FROM event_subscriptions
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	return m.list(ctx, query, limit, offset)
}

// Deactivate marks a subscription inactive.
func (m *MySQLSubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subscription id")
	}

	query := `UPDATE event_subscriptions SET is_active = FALSE, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, at, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate subscription")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		_, err := m.Get(ctx, id)
		return err
	}
	return nil
}

// RecordDeliverySuccess sets last_delivered_at and clears the failure reason.
func (m *MySQLSubscriptionRepository) RecordDeliverySuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subscription id")
	}

	query := `UPDATE event_subscriptions
			  SET last_delivered_at = ?, failure_reason = NULL, updated_at = ?
			  WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, at, at, idBytes); err != nil {
		return apperrors.Wrap(err, "failed to record delivery success")
	}
	return nil
}

// RecordDeliveryFailure sets last_failed_at and the failure reason.
func (m *MySQLSubscriptionRepository) RecordDeliveryFailure(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
	reason string,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subscription id")
	}

	query := `UPDATE event_subscriptions
			  SET last_failed_at = ?, failure_reason = ?, updated_at = ?
			  WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, at, reason, at, idBytes); err != nil {
		return apperrors.Wrap(err, "failed to record delivery failure")
	}
	return nil
}

func (m *MySQLSubscriptionRepository) list(
	ctx context.Context,
	query string,
	args ...any,
) ([]*subscriptionDomain.EventSubscription, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list subscriptions")
	}
	defer rows.Close() //nolint:errcheck

	subs := make([]*subscriptionDomain.EventSubscription, 0)
	for rows.Next() {
		sub, err := scanMySQLSubscription(rows)
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

func scanMySQLSubscription(row rowScanner) (*subscriptionDomain.EventSubscription, error) {
	var sub subscriptionDomain.EventSubscription
	var id []byte

	err := row.Scan(
		&id,
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

	if err := sub.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal subscription id")
	}
	return &sub, nil
}
