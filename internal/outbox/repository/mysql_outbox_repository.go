package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/eventbus/internal/database"
	apperrors "github.com/allisson/eventbus/internal/errors"
	outboxDomain "github.com/allisson/eventbus/internal/outbox/domain"
)

const mysqlOutboxColumns = `id, event_type, event_payload, topic, partition_key, correlation_id,
			  occurred_at, created_at, is_published, published_at, publish_attempts, last_error_message`

// MySQLOutboxEventRepository implements OutboxEvent persistence for MySQL databases.
// IDs are stored as BINARY(16).
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQL OutboxEvent repository instance.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{db: db}
}

// Create inserts a new outbox event.
func (m *MySQLOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO outbox_events (id, event_type, event_payload, topic, partition_key, correlation_id,
			  occurred_at, created_at, is_published, published_at, publish_attempts, last_error_message)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		event.EventType,
		event.EventPayload,
		event.Topic,
		event.PartitionKey,
		event.CorrelationID,
		event.OccurredAt,
		event.CreatedAt,
		event.IsPublished,
		event.PublishedAt,
		event.PublishAttempts,
		event.LastErrorMessage,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// Get retrieves an outbox event by ID.
func (m *MySQLOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlOutboxColumns + ` FROM outbox_events WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	event, err := scanMySQLOutboxEvent(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outboxDomain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return event, nil
}

// GetUnpublished claims up to batchSize unpublished events below the attempt
// ceiling, oldest first. Requires MySQL 8.0 for SKIP LOCKED.
func (m *MySQLOutboxEventRepository) GetUnpublished(
	ctx context.Context,
	batchSize int,
	maxAttempts int,
) ([]*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlOutboxColumns + `
			  FROM outbox_events
			  WHERE is_published = FALSE AND publish_attempts < ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return m.list(ctx, querier, query, maxAttempts, batchSize)
}

// MarkAsPublished flags an event as published. Already published rows are left untouched.
func (m *MySQLOutboxEventRepository) MarkAsPublished(
	ctx context.Context,
	id uuid.UUID,
	publishedAt time.Time,
) error {
	return m.exec(
		ctx,
		"failed to mark outbox event as published",
		`UPDATE outbox_events SET is_published = TRUE, published_at = ? WHERE id = ? AND is_published = FALSE`,
		id,
		publishedAt,
	)
}

// UpdatePublishAttempt records a failed publish attempt.
func (m *MySQLOutboxEventRepository) UpdatePublishAttempt(
	ctx context.Context,
	id uuid.UUID,
	errorMessage string,
) error {
	return m.exec(
		ctx,
		"failed to update outbox publish attempt",
		`UPDATE outbox_events
			  SET publish_attempts = publish_attempts + 1, last_error_message = ?
			  WHERE id = ? AND is_published = FALSE`,
		id,
		errorMessage,
	)
}

// ExhaustPublishAttempts lifts the attempt counter to maxAttempts.
func (m *MySQLOutboxEventRepository) ExhaustPublishAttempts(
	ctx context.Context,
	id uuid.UUID,
	maxAttempts int,
	errorMessage string,
) error {
	return m.exec(
		ctx,
		"failed to exhaust outbox publish attempts",
		`UPDATE outbox_events
			  SET publish_attempts = GREATEST(publish_attempts + 1, ?), last_error_message = ?
			  WHERE id = ? AND is_published = FALSE`,
		id,
		maxAttempts,
		errorMessage,
	)
}

// ListDeadLettered returns unpublished events that reached the attempt ceiling.
func (m *MySQLOutboxEventRepository) ListDeadLettered(
	ctx context.Context,
	maxAttempts int,
	offset int,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlOutboxColumns + `
			  FROM outbox_events
			  WHERE is_published = FALSE AND publish_attempts >= ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ? OFFSET ?`

	return m.list(ctx, querier, query, maxAttempts, limit, offset)
}

// Requeue resets the attempt counter of an unpublished event.
func (m *MySQLOutboxEventRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	query := `UPDATE outbox_events
			  SET publish_attempts = 0, last_error_message = NULL
			  WHERE id = ? AND is_published = FALSE`

	result, err := querier.ExecContext(ctx, query, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to requeue outbox event")
	}

	// MySQL reports matched-but-unchanged rows as 0 affected, so a row that was
	// already at zero attempts is indistinguishable from a missing one here.
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		if _, err := m.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CountPublishedBefore counts published events older than the given time.
func (m *MySQLOutboxEventRepository) CountPublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM outbox_events WHERE is_published = TRUE AND published_at < ?`

	var count int64
	if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count published outbox events")
	}
	return count, nil
}

// DeletePublishedBefore removes published events older than the given time.
func (m *MySQLOutboxEventRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM outbox_events WHERE is_published = TRUE AND published_at < ?`

	result, err := querier.ExecContext(ctx, query, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete published outbox events")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

// exec runs an UPDATE whose last placeholder is the row id; args precede it.
func (m *MySQLOutboxEventRepository) exec(
	ctx context.Context,
	failure string,
	query string,
	id uuid.UUID,
	args ...any,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	if _, err := querier.ExecContext(ctx, query, append(args, idBytes)...); err != nil {
		return apperrors.Wrap(err, failure)
	}
	return nil
}

func (m *MySQLOutboxEventRepository) list(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*outboxDomain.OutboxEvent, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*outboxDomain.OutboxEvent, 0)
	for rows.Next() {
		event, err := scanMySQLOutboxEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}

func scanMySQLOutboxEvent(row rowScanner) (*outboxDomain.OutboxEvent, error) {
	var event outboxDomain.OutboxEvent
	var id []byte

	err := row.Scan(
		&id,
		&event.EventType,
		&event.EventPayload,
		&event.Topic,
		&event.PartitionKey,
		&event.CorrelationID,
		&event.OccurredAt,
		&event.CreatedAt,
		&event.IsPublished,
		&event.PublishedAt,
		&event.PublishAttempts,
		&event.LastErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if err := event.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal outbox event id")
	}
	return &event, nil
}
